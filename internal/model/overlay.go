package model

import "time"

// Overlay is user metadata layered over a live device. It is keyed by
// identity and lives independently of any profile.
type Overlay struct {
	Identity  DeviceIdentity `json:"identity" yaml:"identity"`
	Kind      DeviceKind     `json:"kind" yaml:"kind"`
	Nickname  string         `json:"nickname,omitempty" yaml:"nickname,omitempty"`
	Ignored   bool           `json:"ignored" yaml:"ignored"`
	Selected  bool           `json:"selected" yaml:"selected"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}

// IsZero reports whether the overlay carries no user data and can be dropped
func (o Overlay) IsZero() bool {
	return o.Nickname == "" && !o.Ignored && !o.Selected
}

// OverlayPatch is a partial overlay update; nil fields are left unchanged
type OverlayPatch struct {
	Nickname *string `json:"nickname,omitempty"`
	Ignored  *bool   `json:"ignored,omitempty"`
	Selected *bool   `json:"selected,omitempty"`
}
