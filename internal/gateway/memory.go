package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/martinsuchenak/deskd/internal/model"
)

// Call records one mutating request made against a MemoryGateway
type Call struct {
	Op       string
	OSHandle string
	Enabled  bool
}

func (c Call) String() string {
	if c.Op == OpSetMonitorEnabled {
		return fmt.Sprintf("%s(%s,%t)", c.Op, c.OSHandle, c.Enabled)
	}
	return fmt.Sprintf("%s(%s)", c.Op, c.OSHandle)
}

const (
	OpSetMonitorEnabled      = "set_monitor_enabled"
	OpSetMonitorPrimary      = "set_monitor_primary"
	OpSetDefaultOutputDevice = "set_default_output_device"
)

// MemoryGateway simulates the OS device APIs in memory. It keeps the same
// side effects a real desktop has: one primary display, one default output,
// and no way to disable the primary or the last enabled display.
type MemoryGateway struct {
	mu       sync.Mutex
	monitors []RawMonitor
	audio    []RawAudioDevice
	calls    []Call
	failures map[string]error
}

// NewMemoryGateway creates a simulated gateway seeded with devices
func NewMemoryGateway(monitors []RawMonitor, audio []RawAudioDevice) *MemoryGateway {
	return &MemoryGateway{
		monitors: slices.Clone(monitors),
		audio:    slices.Clone(audio),
		failures: make(map[string]error),
	}
}

// ListMonitors returns the simulated monitors in their current order
func (g *MemoryGateway) ListMonitors(ctx context.Context) ([]RawMonitor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.monitors), nil
}

// ListAudioDevices returns the simulated endpoints in their current order
func (g *MemoryGateway) ListAudioDevices(ctx context.Context) ([]RawAudioDevice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.audio), nil
}

// SetMonitorEnabled attaches or detaches a monitor from the desktop
func (g *MemoryGateway) SetMonitorEnabled(ctx context.Context, osHandle string, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: OpSetMonitorEnabled, OSHandle: osHandle, Enabled: enabled})
	if err := g.failure(OpSetMonitorEnabled, osHandle); err != nil {
		return err
	}

	idx := g.monitorIndex(osHandle)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrHandleNotFound, osHandle)
	}

	if !enabled {
		if g.monitors[idx].IsPrimary {
			return errors.New("cannot disable the primary display")
		}
		if g.enabledCount() == 1 && g.monitors[idx].IsEnabled {
			return errors.New("cannot disable the last enabled display")
		}
	}

	g.monitors[idx].IsEnabled = enabled
	return nil
}

// SetMonitorPrimary moves the primary role to an enabled monitor
func (g *MemoryGateway) SetMonitorPrimary(ctx context.Context, osHandle string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: OpSetMonitorPrimary, OSHandle: osHandle})
	if err := g.failure(OpSetMonitorPrimary, osHandle); err != nil {
		return err
	}

	idx := g.monitorIndex(osHandle)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrHandleNotFound, osHandle)
	}
	if !g.monitors[idx].IsEnabled {
		return errors.New("cannot make a disabled display primary")
	}

	for i := range g.monitors {
		g.monitors[i].IsPrimary = i == idx
	}
	return nil
}

// SetDefaultOutputDevice moves the default render role to an active output
func (g *MemoryGateway) SetDefaultOutputDevice(ctx context.Context, osHandle string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, Call{Op: OpSetDefaultOutputDevice, OSHandle: osHandle})
	if err := g.failure(OpSetDefaultOutputDevice, osHandle); err != nil {
		return err
	}

	idx := -1
	for i, a := range g.audio {
		if a.OSHandle == osHandle {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrHandleNotFound, osHandle)
	}
	if g.audio[idx].Type != model.AudioOutput {
		return errors.New("endpoint is not an output device")
	}
	if g.audio[idx].State != model.EndpointActive {
		return fmt.Errorf("endpoint is %s", g.audio[idx].State)
	}

	for i := range g.audio {
		if g.audio[i].Type == model.AudioOutput {
			g.audio[i].IsDefault = i == idx
		}
	}
	return nil
}

// FailOn makes the next call of op against osHandle return err
func (g *MemoryGateway) FailOn(op, osHandle string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op+"|"+osHandle] = err
}

// Calls returns every mutating call made so far
func (g *MemoryGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// ResetCalls clears the call log
func (g *MemoryGateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// SetMonitors replaces the simulated monitor set, e.g. to model re-plugging
func (g *MemoryGateway) SetMonitors(monitors []RawMonitor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.monitors = slices.Clone(monitors)
}

// SetAudioDevices replaces the simulated endpoint set
func (g *MemoryGateway) SetAudioDevices(audio []RawAudioDevice) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.audio = slices.Clone(audio)
}

func (g *MemoryGateway) failure(op, osHandle string) error {
	key := op + "|" + osHandle
	if err, ok := g.failures[key]; ok {
		delete(g.failures, key)
		return err
	}
	return nil
}

func (g *MemoryGateway) monitorIndex(osHandle string) int {
	for i, m := range g.monitors {
		if m.OSHandle == osHandle {
			return i
		}
	}
	return -1
}

func (g *MemoryGateway) enabledCount() int {
	n := 0
	for _, m := range g.monitors {
		if m.IsEnabled {
			n++
		}
	}
	return n
}
