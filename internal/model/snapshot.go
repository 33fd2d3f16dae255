package model

// AudioPartition splits endpoints by the ignored overlay flag
type AudioPartition struct {
	Filtered []AudioDeviceState `json:"filtered"`
	Ignored  []AudioDeviceState `json:"ignored"`
}

// All returns filtered and ignored endpoints together
func (p AudioPartition) All() []AudioDeviceState {
	all := make([]AudioDeviceState, 0, len(p.Filtered)+len(p.Ignored))
	all = append(all, p.Filtered...)
	return append(all, p.Ignored...)
}

// Snapshot is the registry's view of every enumerated device
type Snapshot struct {
	Monitors []MonitorState `json:"monitors"`
	Audio    AudioPartition `json:"audio"`
}

// Monitor looks a monitor up by identity
func (s *Snapshot) Monitor(id DeviceIdentity) (MonitorState, bool) {
	for _, m := range s.Monitors {
		if m.Identity == id {
			return m, true
		}
	}
	return MonitorState{}, false
}

// AudioDevice looks an endpoint up by identity, ignored or not
func (s *Snapshot) AudioDevice(id DeviceIdentity) (AudioDeviceState, bool) {
	for _, a := range s.Audio.Filtered {
		if a.Identity == id {
			return a, true
		}
	}
	for _, a := range s.Audio.Ignored {
		if a.Identity == id {
			return a, true
		}
	}
	return AudioDeviceState{}, false
}
