package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/martinsuchenak/deskd/internal/model"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidID        = errors.New("invalid ID")
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"

	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ProfileStorage persists profile documents keyed by name
type ProfileStorage interface {
	ListProfiles() ([]model.Profile, error)
	GetProfile(name string) (*model.Profile, error)
	// SaveProfile replaces any stored profile of the same name. CreatedAt of
	// the replaced profile is kept.
	SaveProfile(profile *model.Profile) error
	DeleteProfile(name string) error
}

// OverlayStorage persists the user overlay table keyed by identity
type OverlayStorage interface {
	ListOverlays() ([]model.Overlay, error)
	// UpdateOverlay runs fn on the current overlay for id, or on a blank one,
	// and writes the result back atomically. Nothing is written when fn
	// returns an error. Overlays left without user data are removed.
	UpdateOverlay(id model.DeviceIdentity, kind model.DeviceKind, fn func(*model.Overlay) error) (*model.Overlay, error)
}

// ScheduleStorage persists cron schedules for profile application
type ScheduleStorage interface {
	ListSchedules() ([]model.Schedule, error)
	GetSchedule(id string) (*model.Schedule, error)
	CreateSchedule(schedule *model.Schedule) error
	DeleteSchedule(id string) error
	RecordScheduleRun(id string, at time.Time, status string) error
}

// Storage is the full persistence surface
type Storage interface {
	ProfileStorage
	OverlayStorage
	ScheduleStorage
	Close() error
}

// NewStorage opens the configured backend under dataDir
func NewStorage(backend, dataDir, format string) (Storage, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteStorage(dataDir)
	case BackendFile:
		return NewFileStorage(dataDir, format)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// FileStorage keeps each collection in one document under dataDir and
// rewrites it on every mutation
type FileStorage struct {
	mu        sync.RWMutex
	dataDir   string
	format    string // "json" or "yaml"
	profiles  map[string]*model.Profile
	overlays  map[model.DeviceIdentity]*model.Overlay
	schedules map[string]*model.Schedule
}

type profileDocument struct {
	Profiles []model.Profile `json:"profiles" yaml:"profiles"`
}

type overlayDocument struct {
	Overlays []model.Overlay `json:"overlays" yaml:"overlays"`
}

type scheduleDocument struct {
	Schedules []model.Schedule `json:"schedules" yaml:"schedules"`
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(dataDir, format string) (*FileStorage, error) {
	if format != FormatJSON && format != FormatYAML {
		format = FormatJSON
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	fs := &FileStorage{
		dataDir:   dataDir,
		format:    format,
		profiles:  make(map[string]*model.Profile),
		overlays:  make(map[model.DeviceIdentity]*model.Overlay),
		schedules: make(map[string]*model.Schedule),
	}

	if err := fs.loadAll(); err != nil {
		return nil, err
	}

	return fs, nil
}

// Close is a no-op; every mutation is already on disk
func (fs *FileStorage) Close() error {
	return nil
}

// ListProfiles returns all profiles sorted by name
func (fs *FileStorage) ListProfiles() ([]model.Profile, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	profiles := make([]model.Profile, 0, len(fs.profiles))
	for _, p := range fs.profiles {
		profiles = append(profiles, cloneProfile(p))
	}
	slices.SortFunc(profiles, func(a, b model.Profile) int { return strings.Compare(a.Name, b.Name) })
	return profiles, nil
}

// GetProfile retrieves a profile by name
func (fs *FileStorage) GetProfile(name string) (*model.Profile, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	p, ok := fs.profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}
	clone := cloneProfile(p)
	return &clone, nil
}

// SaveProfile creates or replaces a profile
func (fs *FileStorage) SaveProfile(profile *model.Profile) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if profile.Name == "" {
		return ErrInvalidID
	}

	now := time.Now().UTC()
	stored := cloneProfile(profile)
	stored.CreatedAt = now
	if existing, ok := fs.profiles[profile.Name]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	stored.UpdatedAt = now

	previous, had := fs.profiles[profile.Name]
	fs.profiles[profile.Name] = &stored
	if err := fs.saveProfiles(); err != nil {
		if had {
			fs.profiles[profile.Name] = previous
		} else {
			delete(fs.profiles, profile.Name)
		}
		return err
	}

	profile.CreatedAt = stored.CreatedAt
	profile.UpdatedAt = stored.UpdatedAt
	return nil
}

// DeleteProfile removes a profile and every schedule that applies it
func (fs *FileStorage) DeleteProfile(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.profiles[name]; !ok {
		return ErrProfileNotFound
	}
	delete(fs.profiles, name)
	if err := fs.saveProfiles(); err != nil {
		return err
	}

	removed := false
	for id, s := range fs.schedules {
		if s.ProfileName == name {
			delete(fs.schedules, id)
			removed = true
		}
	}
	if removed {
		return fs.saveSchedules()
	}
	return nil
}

// ListOverlays returns all overlays sorted by identity
func (fs *FileStorage) ListOverlays() ([]model.Overlay, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	overlays := make([]model.Overlay, 0, len(fs.overlays))
	for _, o := range fs.overlays {
		overlays = append(overlays, *o)
	}
	slices.SortFunc(overlays, func(a, b model.Overlay) int { return strings.Compare(string(a.Identity), string(b.Identity)) })
	return overlays, nil
}

// UpdateOverlay applies fn to one overlay under the write lock
func (fs *FileStorage) UpdateOverlay(id model.DeviceIdentity, kind model.DeviceKind, fn func(*model.Overlay) error) (*model.Overlay, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	overlay := model.Overlay{Identity: id, Kind: kind}
	previous, had := fs.overlays[id]
	if had {
		overlay = *previous
	}

	if err := fn(&overlay); err != nil {
		return nil, err
	}
	overlay.Identity = id
	overlay.UpdatedAt = time.Now().UTC()

	if overlay.IsZero() {
		delete(fs.overlays, id)
	} else {
		fs.overlays[id] = &overlay
	}

	if err := fs.saveOverlays(); err != nil {
		if had {
			fs.overlays[id] = previous
		} else {
			delete(fs.overlays, id)
		}
		return nil, err
	}

	return &overlay, nil
}

// ListSchedules returns all schedules sorted by creation time
func (fs *FileStorage) ListSchedules() ([]model.Schedule, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	schedules := make([]model.Schedule, 0, len(fs.schedules))
	for _, s := range fs.schedules {
		schedules = append(schedules, *s)
	}
	slices.SortFunc(schedules, func(a, b model.Schedule) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return schedules, nil
}

// GetSchedule retrieves a schedule by ID
func (fs *FileStorage) GetSchedule(id string) (*model.Schedule, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	s, ok := fs.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	clone := *s
	return &clone, nil
}

// CreateSchedule adds a schedule for an existing profile
func (fs *FileStorage) CreateSchedule(schedule *model.Schedule) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if schedule.ID == "" {
		return ErrInvalidID
	}
	if _, exists := fs.schedules[schedule.ID]; exists {
		return errors.New("schedule already exists")
	}
	if _, ok := fs.profiles[schedule.ProfileName]; !ok {
		return ErrProfileNotFound
	}

	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}
	stored := *schedule
	fs.schedules[schedule.ID] = &stored
	if err := fs.saveSchedules(); err != nil {
		delete(fs.schedules, schedule.ID)
		return err
	}
	return nil
}

// DeleteSchedule removes a schedule
func (fs *FileStorage) DeleteSchedule(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(fs.schedules, id)
	return fs.saveSchedules()
}

// RecordScheduleRun stores the outcome of the latest run
func (fs *FileStorage) RecordScheduleRun(id string, at time.Time, status string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, ok := fs.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}
	s.LastRun = &at
	s.LastStatus = status
	return fs.saveSchedules()
}

func (fs *FileStorage) collectionPath(name string) string {
	return filepath.Join(fs.dataDir, name+"."+fs.format)
}

func (fs *FileStorage) saveProfiles() error {
	doc := profileDocument{Profiles: make([]model.Profile, 0, len(fs.profiles))}
	for _, p := range fs.profiles {
		doc.Profiles = append(doc.Profiles, *p)
	}
	slices.SortFunc(doc.Profiles, func(a, b model.Profile) int { return strings.Compare(a.Name, b.Name) })
	return fs.saveFile(fs.collectionPath("profiles"), doc)
}

func (fs *FileStorage) saveOverlays() error {
	doc := overlayDocument{Overlays: make([]model.Overlay, 0, len(fs.overlays))}
	for _, o := range fs.overlays {
		doc.Overlays = append(doc.Overlays, *o)
	}
	slices.SortFunc(doc.Overlays, func(a, b model.Overlay) int { return strings.Compare(string(a.Identity), string(b.Identity)) })
	return fs.saveFile(fs.collectionPath("overlays"), doc)
}

func (fs *FileStorage) saveSchedules() error {
	doc := scheduleDocument{Schedules: make([]model.Schedule, 0, len(fs.schedules))}
	for _, s := range fs.schedules {
		doc.Schedules = append(doc.Schedules, *s)
	}
	slices.SortFunc(doc.Schedules, func(a, b model.Schedule) int { return strings.Compare(a.ID, b.ID) })
	return fs.saveFile(fs.collectionPath("schedules"), doc)
}

// loadAll loads every collection present in the data directory
func (fs *FileStorage) loadAll() error {
	var profiles profileDocument
	if err := fs.loadFile(fs.collectionPath("profiles"), &profiles); err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	for i := range profiles.Profiles {
		p := profiles.Profiles[i]
		fs.profiles[p.Name] = &p
	}

	var overlays overlayDocument
	if err := fs.loadFile(fs.collectionPath("overlays"), &overlays); err != nil {
		return fmt.Errorf("loading overlays: %w", err)
	}
	for i := range overlays.Overlays {
		o := overlays.Overlays[i]
		fs.overlays[o.Identity] = &o
	}

	var schedules scheduleDocument
	if err := fs.loadFile(fs.collectionPath("schedules"), &schedules); err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}
	for i := range schedules.Schedules {
		s := schedules.Schedules[i]
		fs.schedules[s.ID] = &s
	}

	return nil
}

// saveFile saves data to a file in the configured format
func (fs *FileStorage) saveFile(path string, data any) error {
	var err error

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	switch fs.format {
	case FormatJSON:
		err = saveJSON(file, data)
	case FormatYAML:
		err = saveYAML(file, data)
	default:
		err = errors.New("unsupported storage format")
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}

// loadFile loads data from a file; a missing file leaves data untouched
func (fs *FileStorage) loadFile(path string, data any) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	switch fs.format {
	case FormatJSON:
		return loadJSON(file, data)
	case FormatYAML:
		return loadYAML(file, data)
	default:
		return errors.New("unsupported storage format")
	}
}

func cloneProfile(p *model.Profile) model.Profile {
	clone := *p
	clone.Monitors = slices.Clone(p.Monitors)
	clone.Audio.Selected = slices.Clone(p.Audio.Selected)
	return clone
}
