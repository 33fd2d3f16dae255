package storage

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      func(tx *sql.Tx) error
}

var migrations = []migration{
	{1, "create profiles overlays schedules", migrateCreateTables},
	{2, "index overlays by kind", migrateOverlayKindIndex},
}

// migrate applies every migration newer than the recorded schema version
func (ss *SQLiteStorage) migrate() error {
	version, err := ss.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}

		tx, err := ss.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}

		if err := m.up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("setting migration version %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}

	return nil
}

// schemaVersion returns the highest applied migration, 0 for a new database
func (ss *SQLiteStorage) schemaVersion() (int, error) {
	var version sql.NullInt64
	err := ss.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("checking migration version: %w", err)
	}
	return int(version.Int64), nil
}

func migrateCreateTables(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			name TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			document TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS overlays (
			identity TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			nickname TEXT NOT NULL DEFAULT '',
			ignored INTEGER NOT NULL DEFAULT 0,
			selected INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			profile_name TEXT NOT NULL,
			spec TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			last_run TIMESTAMP,
			last_status TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (profile_name) REFERENCES profiles(name) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_profile ON schedules(profile_name)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateOverlayKindIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_overlays_kind ON overlays(kind)`)
	return err
}
