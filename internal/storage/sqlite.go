package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/martinsuchenak/deskd/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStorage implements Storage with SQLite backend
type SQLiteStorage struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite-based storage
func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "deskd.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer
	db.SetMaxIdleConns(1)

	ss := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	if err := ss.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return ss, nil
}

// initSchema creates the migrations table
func (ss *SQLiteStorage) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	_, err = ss.db.Exec(string(schema))
	return err
}

// Close closes the database connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// ListProfiles returns all profiles sorted by name
func (ss *SQLiteStorage) ListProfiles() ([]model.Profile, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`SELECT name, document, created_at, updated_at FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// GetProfile retrieves a profile by name
func (ss *SQLiteStorage) GetProfile(name string) (*model.Profile, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	row := ss.db.QueryRow(`SELECT name, document, created_at, updated_at FROM profiles WHERE name = ?`, name)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// SaveProfile creates or replaces a profile
func (ss *SQLiteStorage) SaveProfile(profile *model.Profile) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if profile.Name == "" {
		return ErrInvalidID
	}

	document, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	createdAt := now
	err = tx.QueryRow(`SELECT created_at FROM profiles WHERE name = ?`, profile.Name).Scan(&createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking existing profile: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO profiles (name, schema_version, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			schema_version = excluded.schema_version,
			document = excluded.document,
			updated_at = excluded.updated_at
	`, profile.Name, profile.SchemaVersion, string(document), createdAt, now)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	profile.CreatedAt = createdAt
	profile.UpdatedAt = now
	return nil
}

// DeleteProfile removes a profile; its schedules cascade
func (ss *SQLiteStorage) DeleteProfile(name string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec("DELETE FROM profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// ListOverlays returns all overlays sorted by identity
func (ss *SQLiteStorage) ListOverlays() ([]model.Overlay, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`SELECT identity, kind, nickname, ignored, selected, updated_at FROM overlays ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("querying overlays: %w", err)
	}
	defer rows.Close()

	overlays := make([]model.Overlay, 0)
	for rows.Next() {
		var o model.Overlay
		if err := rows.Scan(&o.Identity, &o.Kind, &o.Nickname, &o.Ignored, &o.Selected, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning overlay: %w", err)
		}
		overlays = append(overlays, o)
	}
	return overlays, rows.Err()
}

// UpdateOverlay applies fn to one overlay inside a transaction
func (ss *SQLiteStorage) UpdateOverlay(id model.DeviceIdentity, kind model.DeviceKind, fn func(*model.Overlay) error) (*model.Overlay, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	overlay := model.Overlay{Identity: id, Kind: kind}
	err = tx.QueryRow(`SELECT kind, nickname, ignored, selected, updated_at FROM overlays WHERE identity = ?`, id).
		Scan(&overlay.Kind, &overlay.Nickname, &overlay.Ignored, &overlay.Selected, &overlay.UpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading overlay: %w", err)
	}

	if err := fn(&overlay); err != nil {
		return nil, err
	}
	overlay.Identity = id
	overlay.UpdatedAt = time.Now().UTC()

	if overlay.IsZero() {
		if _, err := tx.Exec(`DELETE FROM overlays WHERE identity = ?`, id); err != nil {
			return nil, fmt.Errorf("deleting overlay: %w", err)
		}
	} else {
		_, err = tx.Exec(`
			INSERT INTO overlays (identity, kind, nickname, ignored, selected, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(identity) DO UPDATE SET
				kind = excluded.kind,
				nickname = excluded.nickname,
				ignored = excluded.ignored,
				selected = excluded.selected,
				updated_at = excluded.updated_at
		`, overlay.Identity, overlay.Kind, overlay.Nickname, overlay.Ignored, overlay.Selected, overlay.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("saving overlay: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &overlay, nil
}

// ListSchedules returns all schedules sorted by creation time
func (ss *SQLiteStorage) ListSchedules() ([]model.Schedule, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, profile_name, spec, enabled, last_run, last_status, created_at
		FROM schedules
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]model.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// GetSchedule retrieves a schedule by ID
func (ss *SQLiteStorage) GetSchedule(id string) (*model.Schedule, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	row := ss.db.QueryRow(`
		SELECT id, profile_name, spec, enabled, last_run, last_status, created_at
		FROM schedules WHERE id = ?
	`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	return s, err
}

// CreateSchedule adds a schedule for an existing profile
func (ss *SQLiteStorage) CreateSchedule(schedule *model.Schedule) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if schedule.ID == "" {
		return ErrInvalidID
	}

	var exists int
	err := ss.db.QueryRow(`SELECT 1 FROM profiles WHERE name = ?`, schedule.ProfileName).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("checking profile: %w", err)
	}

	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	_, err = ss.db.Exec(`
		INSERT INTO schedules (id, profile_name, spec, enabled, last_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, schedule.ID, schedule.ProfileName, schedule.Spec, schedule.Enabled, schedule.LastStatus, schedule.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.New("schedule already exists")
		}
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes a schedule
func (ss *SQLiteStorage) DeleteSchedule(id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec("DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// RecordScheduleRun stores the outcome of the latest run
func (ss *SQLiteStorage) RecordScheduleRun(id string, at time.Time, status string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`UPDATE schedules SET last_run = ?, last_status = ? WHERE id = ?`, at, status, id)
	if err != nil {
		return fmt.Errorf("recording schedule run: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var (
		name      string
		document  string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&name, &document, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning profile: %w", err)
	}

	var p model.Profile
	if err := json.Unmarshal([]byte(document), &p); err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", name, err)
	}
	p.Name = name
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return &p, nil
}

func scanSchedule(row rowScanner) (*model.Schedule, error) {
	var (
		s       model.Schedule
		lastRun sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.ProfileName, &s.Spec, &s.Enabled, &lastRun, &s.LastStatus, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}
	if lastRun.Valid {
		t := lastRun.Time
		s.LastRun = &t
	}
	return &s, nil
}
