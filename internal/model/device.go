package model

// DeviceIdentity is the stable key of a physical monitor or audio endpoint.
// It never changes with enumeration order or OS handle reuse.
type DeviceIdentity string

// DeviceKind tells monitors and audio endpoints apart in the overlay table
type DeviceKind string

const (
	KindMonitor DeviceKind = "monitor"
	KindAudio   DeviceKind = "audio"
)

// Bounds is the desktop rectangle occupied by a monitor
type Bounds struct {
	X      int32 `json:"x"`
	Y      int32 `json:"y"`
	Width  int32 `json:"width"`
	Height int32 `json:"height"`
}

// MonitorState is a live monitor annotated with its overlay
type MonitorState struct {
	Identity    DeviceIdentity `json:"identity"`
	OSHandle    string         `json:"os_handle"`
	DisplayName string         `json:"display_name"`
	Nickname    string         `json:"nickname,omitempty"`
	IsPrimary   bool           `json:"is_primary"`
	IsEnabled   bool           `json:"is_enabled"`
	IsActive    bool           `json:"is_active"`
	Persistable bool           `json:"persistable"`
	Bounds      Bounds         `json:"bounds"`
}

// Label returns the name a user recognises the monitor by
func (m MonitorState) Label() string {
	return label(m.Nickname, m.DisplayName, m.Identity)
}

// AudioDeviceType is the data-flow direction of an endpoint
type AudioDeviceType string

const (
	AudioOutput AudioDeviceType = "output"
	AudioInput  AudioDeviceType = "input"
)

// EndpointState is the OS-reported state of an audio endpoint
type EndpointState string

const (
	EndpointActive     EndpointState = "active"
	EndpointDisabled   EndpointState = "disabled"
	EndpointNotPresent EndpointState = "notpresent"
	EndpointUnplugged  EndpointState = "unplugged"
)

// IsEnabled reports whether the endpoint can carry audio right now
func (s EndpointState) IsEnabled() bool {
	return s == EndpointActive
}

// AudioDeviceState is a live audio endpoint annotated with its overlay
type AudioDeviceState struct {
	Identity    DeviceIdentity  `json:"identity"`
	OSHandle    string          `json:"os_handle"`
	Name        string          `json:"name"`
	Nickname    string          `json:"nickname,omitempty"`
	Type        AudioDeviceType `json:"type"`
	State       EndpointState   `json:"state"`
	IsDefault   bool            `json:"is_default"`
	IsEnabled   bool            `json:"is_enabled"`
	Selected    bool            `json:"selected"`
	Ignored     bool            `json:"ignored"`
	Persistable bool            `json:"persistable"`
}

// Label returns the name a user recognises the endpoint by
func (a AudioDeviceState) Label() string {
	return label(a.Nickname, a.Name, a.Identity)
}

// CanBeDefault reports whether the endpoint may become the default output
func (a AudioDeviceState) CanBeDefault() bool {
	return a.Type == AudioOutput && !a.Ignored && a.State == EndpointActive
}

func label(nickname, name string, id DeviceIdentity) string {
	if nickname != "" {
		return nickname
	}
	if name != "" {
		return name
	}
	return string(id)
}
