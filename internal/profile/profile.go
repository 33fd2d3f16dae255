package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/martinsuchenak/deskd/internal/storage"
)

// MaxNameLength is the longest accepted profile name in runes
const MaxNameLength = 64

var (
	ErrNotFound          = errors.New("profile not found")
	ErrInvalidName       = errors.New("invalid profile name")
	ErrEmptySnapshot     = errors.New("snapshot has no enabled monitor to capture")
	ErrUnsupportedSchema = errors.New("unsupported profile schema version")
)

// SaveResult is a stored profile plus the devices that could not be captured
type SaveResult struct {
	Profile  *model.Profile `json:"profile"`
	Warnings []model.Skip   `json:"warnings"`
}

// ValidateName trims a profile name and checks it
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidName)
	}
	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return "", fmt.Errorf("%w: name is %d characters, maximum is %d", ErrInvalidName, n, MaxNameLength)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: name contains control characters", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: name contains a path separator", ErrInvalidName)
	}
	if strings.Trim(name, ".") == "" {
		return "", fmt.Errorf("%w: name is only dots", ErrInvalidName)
	}
	return name, nil
}

// Capture builds a profile from a registry snapshot. Devices with a session
// only identity are left out and reported as unresolved.
func Capture(name string, snap *model.Snapshot) (*model.Profile, []model.Skip, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		return nil, nil, ErrEmptySnapshot
	}

	p := &model.Profile{
		Name:          name,
		SchemaVersion: model.ProfileSchemaVersion,
		Monitors:      make([]model.ProfileMonitor, 0, len(snap.Monitors)),
		Audio:         model.AudioProfile{Selected: []model.DeviceIdentity{}},
	}
	warnings := []model.Skip{}

	enabled := 0
	for _, m := range snap.Monitors {
		if !m.Persistable {
			warnings = append(warnings, unresolved(m.Identity, m.Label()))
			continue
		}
		p.Monitors = append(p.Monitors, model.ProfileMonitor{
			Identity:    m.Identity,
			DisplayName: m.DisplayName,
			IsPrimary:   m.IsPrimary && m.IsEnabled,
			IsEnabled:   m.IsEnabled,
		})
		if m.IsEnabled {
			enabled++
		}
	}
	if enabled == 0 {
		return nil, warnings, ErrEmptySnapshot
	}

	for _, a := range snap.Audio.Filtered {
		if !a.Persistable {
			if a.IsDefault || a.Selected {
				warnings = append(warnings, unresolved(a.Identity, a.Label()))
			}
			continue
		}
		if a.IsDefault && a.Type == model.AudioOutput {
			p.Audio.DefaultOutputDeviceID = a.Identity
		}
		if a.Selected {
			p.Audio.Selected = append(p.Audio.Selected, a.Identity)
		}
	}
	slices.Sort(p.Audio.Selected)

	return p, warnings, nil
}

func unresolved(id model.DeviceIdentity, label string) model.Skip {
	return model.Skip{
		Identity: id,
		Label:    label,
		Reason:   model.SkipDeviceUnresolved,
		Detail:   "device has no stable identity and was not saved",
	}
}

// Store validates and persists profiles
type Store struct {
	storage storage.ProfileStorage
}

// NewStore creates a profile store over a storage backend
func NewStore(s storage.ProfileStorage) *Store {
	return &Store{storage: s}
}

// Save captures snap under name, replacing any existing profile of that name
func (s *Store) Save(name string, snap *model.Snapshot) (*SaveResult, error) {
	p, warnings, err := Capture(name, snap)
	if err != nil {
		return nil, err
	}

	if err := s.storage.SaveProfile(p); err != nil {
		return nil, fmt.Errorf("saving profile %s: %w", p.Name, err)
	}
	return &SaveResult{Profile: p, Warnings: warnings}, nil
}

// Load retrieves a profile by name
func (s *Store) Load(name string) (*model.Profile, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	p, err := s.storage.GetProfile(name)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("loading profile %s: %w", name, err)
	}
	if p.SchemaVersion != model.ProfileSchemaVersion {
		return nil, fmt.Errorf("%w: %s has version %d", ErrUnsupportedSchema, name, p.SchemaVersion)
	}
	return p, nil
}

// List returns every stored profile sorted by name
func (s *Store) List() ([]model.Profile, error) {
	profiles, err := s.storage.ListProfiles()
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return profiles, nil
}

// Delete removes a profile by name
func (s *Store) Delete(name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteProfile(name); err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("deleting profile %s: %w", name, err)
	}
	return nil
}
