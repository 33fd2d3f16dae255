package model

import "fmt"

// MutationKind is one OS-level change the engine can request
type MutationKind string

const (
	MutationEnableMonitor    MutationKind = "enable_monitor"
	MutationDisableMonitor   MutationKind = "disable_monitor"
	MutationSetPrimary       MutationKind = "set_primary"
	MutationSetDefaultOutput MutationKind = "set_default_output"
)

// Mutation is a single planned gateway call
type Mutation struct {
	Kind     MutationKind   `json:"kind"`
	Identity DeviceIdentity `json:"identity"`
	OSHandle string         `json:"os_handle"`
	Label    string         `json:"label"`
}

func (m Mutation) String() string {
	return fmt.Sprintf("%s %s", m.Kind, m.Label)
}

// SkipReason classifies a device action that was not planned
type SkipReason string

const (
	// SkipDeviceUnresolved: the device has no persistable identity
	SkipDeviceUnresolved SkipReason = "device_unresolved"
	// SkipDeviceAbsent: the profile references an identity not currently enumerated
	SkipDeviceAbsent SkipReason = "device_absent"
	// SkipDeviceUnavailable: present, but its state forbids the mutation
	SkipDeviceUnavailable SkipReason = "device_unavailable"
)

// Skip records a device action left out of a plan
type Skip struct {
	Identity DeviceIdentity `json:"identity"`
	Label    string         `json:"label"`
	Reason   SkipReason     `json:"reason"`
	Detail   string         `json:"detail"`
}

// SelectionChange is an overlay update derived from a profile's selected set.
// It never reaches the gateway.
type SelectionChange struct {
	Identity DeviceIdentity `json:"identity"`
	Label    string         `json:"label"`
	Selected bool           `json:"selected"`
}

// MutationPlan is the ordered list of changes computed before any OS call
type MutationPlan struct {
	Profile   string            `json:"profile"`
	Mutations []Mutation        `json:"mutations"`
	Skipped   []Skip            `json:"skipped"`
	Selection []SelectionChange `json:"selection"`
}

// IsEmpty reports whether executing the plan would change nothing
func (p *MutationPlan) IsEmpty() bool {
	return len(p.Mutations) == 0 && len(p.Selection) == 0
}

// Failure is the mutation that halted execution and the gateway's cause
type Failure struct {
	Mutation Mutation `json:"mutation"`
	Cause    string   `json:"cause"`
	Err      error    `json:"-"`
}

// ApplyResult reports exactly how much of a plan reached the OS
type ApplyResult struct {
	Profile   string            `json:"profile"`
	Applied   []Mutation        `json:"applied"`
	Failed    *Failure          `json:"failed,omitempty"`
	Remaining []Mutation        `json:"remaining"`
	Skipped   []Skip            `json:"skipped"`
	Selection []SelectionChange `json:"selection"`
	Snapshot  *Snapshot         `json:"snapshot,omitempty"`
}

// Complete reports whether every planned mutation was applied
func (r *ApplyResult) Complete() bool {
	return r.Failed == nil && len(r.Remaining) == 0
}
