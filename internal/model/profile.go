package model

import "time"

// ProfileSchemaVersion is the canonical profile document version: a full
// monitor snapshot plus the audio default and selection set. Version 1
// documents (audio default only) are only understood by the legacy importer.
const ProfileSchemaVersion = 2

// Profile is a named snapshot of desired device configuration. It never
// records live-only facts such as IsActive or endpoint state.
type Profile struct {
	Name          string           `json:"name" yaml:"name"`
	SchemaVersion int              `json:"schema_version" yaml:"schema_version"`
	Monitors      []ProfileMonitor `json:"monitors" yaml:"monitors"`
	Audio         AudioProfile     `json:"audio" yaml:"audio"`
	CreatedAt     time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" yaml:"updated_at"`
}

// ProfileMonitor is the desired state of one monitor
type ProfileMonitor struct {
	Identity    DeviceIdentity `json:"identity" yaml:"identity"`
	DisplayName string         `json:"display_name" yaml:"display_name"`
	IsPrimary   bool           `json:"is_primary" yaml:"is_primary"`
	IsEnabled   bool           `json:"is_enabled" yaml:"is_enabled"`
}

// AudioProfile is the desired audio configuration
type AudioProfile struct {
	DefaultOutputDeviceID DeviceIdentity   `json:"default_output_device_id,omitempty" yaml:"default_output_device_id,omitempty"`
	Selected              []DeviceIdentity `json:"selected" yaml:"selected"`
}

// PrimaryMonitor returns the monitor the profile wants as primary
func (p *Profile) PrimaryMonitor() (ProfileMonitor, bool) {
	for _, m := range p.Monitors {
		if m.IsPrimary {
			return m, true
		}
	}
	return ProfileMonitor{}, false
}
