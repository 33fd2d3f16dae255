package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/martinsuchenak/deskd/internal/engine"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/martinsuchenak/deskd/internal/profile"
	"github.com/martinsuchenak/deskd/internal/registry"
	"github.com/martinsuchenak/deskd/internal/storage"
	"github.com/martinsuchenak/deskd/internal/worker"
)

var (
	ErrMutationFailed  = errors.New("device mutation failed")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Manager is the single entry point for every exposed operation. HTTP, MCP
// and the scheduler all go through it, so each mutating call ends with the
// same registry refresh.
type Manager struct {
	registry  *registry.Registry
	engine    *engine.Engine
	profiles  *profile.Store
	storage   storage.Storage
	scheduler *worker.Scheduler
}

// New creates a manager over a registry and the storage backing it
func New(reg *registry.Registry, store storage.Storage) *Manager {
	m := &Manager{
		registry: reg,
		engine:   engine.New(reg),
		profiles: profile.NewStore(store),
		storage:  store,
	}
	m.scheduler = worker.NewScheduler(store, m)
	return m
}

// StartScheduler registers every enabled schedule and starts the cron runner
func (m *Manager) StartScheduler() error {
	return m.scheduler.Start()
}

// Close stops the scheduler and the registry queue
func (m *Manager) Close() {
	m.scheduler.Stop()
	m.registry.Close()
}

// snapshot returns the last snapshot, refreshing first if there is none
func (m *Manager) snapshot(ctx context.Context) (*model.Snapshot, error) {
	if snap := m.registry.Snapshot(); snap != nil {
		return snap, nil
	}
	return m.registry.Refresh(ctx)
}

// GetMonitors returns the monitors of the last refresh
func (m *Manager) GetMonitors(ctx context.Context) ([]model.MonitorState, error) {
	snap, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Monitors, nil
}

// RefreshMonitors re-enumerates devices and returns the monitors
func (m *Manager) RefreshMonitors(ctx context.Context) ([]model.MonitorState, error) {
	snap, err := m.registry.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Monitors, nil
}

// SetMonitorEnabledState attaches or detaches one monitor
func (m *Manager) SetMonitorEnabledState(ctx context.Context, id model.DeviceIdentity, enabled bool) (*model.ApplyResult, error) {
	return m.runSingle(ctx, "monitor-enabled", func(snap *model.Snapshot) (*model.MutationPlan, error) {
		return engine.PlanMonitorEnabled(snap, id, enabled)
	})
}

// SetMonitorPrimary makes one monitor primary, enabling it first if needed
func (m *Manager) SetMonitorPrimary(ctx context.Context, id model.DeviceIdentity) (*model.ApplyResult, error) {
	return m.runSingle(ctx, "monitor-primary", func(snap *model.Snapshot) (*model.MutationPlan, error) {
		return engine.PlanMonitorPrimary(snap, id)
	})
}

// SetMonitorNickname stores a nickname for a monitor. An empty nickname
// clears it.
func (m *Manager) SetMonitorNickname(ctx context.Context, id model.DeviceIdentity, nickname string) (*model.MonitorState, error) {
	snap, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Monitor(id); !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrDeviceNotFound, id)
	}
	if _, err := m.registry.SetOverlay(id, model.OverlayPatch{Nickname: &nickname}); err != nil {
		return nil, err
	}

	snap, err = m.registry.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	mon, ok := snap.Monitor(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrDeviceNotFound, id)
	}
	return &mon, nil
}

// GetAudioDevicesWithIgnoreStatus returns the audio endpoints of the last
// refresh split by their ignored flag
func (m *Manager) GetAudioDevicesWithIgnoreStatus(ctx context.Context) (*model.AudioPartition, error) {
	snap, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &snap.Audio, nil
}

// RefreshAudioDevices re-enumerates devices and returns the audio endpoints
func (m *Manager) RefreshAudioDevices(ctx context.Context) (*model.AudioPartition, error) {
	snap, err := m.registry.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return &snap.Audio, nil
}

// SetPrimaryOutputDevice makes an endpoint the default output
func (m *Manager) SetPrimaryOutputDevice(ctx context.Context, id model.DeviceIdentity) (*model.ApplyResult, error) {
	return m.runSingle(ctx, "default-output", func(snap *model.Snapshot) (*model.MutationPlan, error) {
		return engine.PlanDefaultOutput(snap, id)
	})
}

// IgnoreAudioDevice hides an endpoint from the filtered list
func (m *Manager) IgnoreAudioDevice(ctx context.Context, id model.DeviceIdentity) (*model.AudioPartition, error) {
	ignored := true
	return m.updateAudio(ctx, id, model.OverlayPatch{Ignored: &ignored})
}

// UnignoreAudioDevice returns an endpoint to the filtered list
func (m *Manager) UnignoreAudioDevice(ctx context.Context, id model.DeviceIdentity) (*model.AudioPartition, error) {
	ignored := false
	return m.updateAudio(ctx, id, model.OverlayPatch{Ignored: &ignored})
}

// SetAudioDeviceNickname stores a nickname for an endpoint
func (m *Manager) SetAudioDeviceNickname(ctx context.Context, id model.DeviceIdentity, nickname string) (*model.AudioPartition, error) {
	return m.updateAudio(ctx, id, model.OverlayPatch{Nickname: &nickname})
}

// SetAudioDeviceSelected marks an endpoint as part of the user's working set
func (m *Manager) SetAudioDeviceSelected(ctx context.Context, id model.DeviceIdentity, selected bool) (*model.AudioPartition, error) {
	return m.updateAudio(ctx, id, model.OverlayPatch{Selected: &selected})
}

func (m *Manager) updateAudio(ctx context.Context, id model.DeviceIdentity, patch model.OverlayPatch) (*model.AudioPartition, error) {
	snap, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.AudioDevice(id); !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrDeviceNotFound, id)
	}
	if _, err := m.registry.SetOverlay(id, patch); err != nil {
		return nil, err
	}
	return m.RefreshAudioDevices(ctx)
}

// GetProfiles returns every stored profile sorted by name
func (m *Manager) GetProfiles() ([]model.Profile, error) {
	return m.profiles.List()
}

// GetProfile returns one stored profile
func (m *Manager) GetProfile(name string) (*model.Profile, error) {
	return m.profiles.Load(name)
}

// SaveProfile captures the current devices under name
func (m *Manager) SaveProfile(ctx context.Context, name string) (*profile.SaveResult, error) {
	snap, err := m.registry.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	result, err := m.profiles.Save(name, snap)
	if err != nil {
		return nil, err
	}
	log.Info("Profile saved", "profile", result.Profile.Name,
		"monitors", len(result.Profile.Monitors), "warnings", len(result.Warnings))
	return result, nil
}

// ApplyProfile reconciles the live devices with a stored profile. A partial
// apply is reported through the result, not as an error.
func (m *Manager) ApplyProfile(ctx context.Context, name string) (*model.ApplyResult, error) {
	p, err := m.profiles.Load(name)
	if err != nil {
		return nil, err
	}
	return m.engine.Apply(ctx, p)
}

// PreviewProfile returns the plan ApplyProfile would execute right now
func (m *Manager) PreviewProfile(ctx context.Context, name string) (*model.MutationPlan, error) {
	p, err := m.profiles.Load(name)
	if err != nil {
		return nil, err
	}
	return m.engine.Preview(ctx, p)
}

// DeleteProfile removes a profile and every schedule that applies it
func (m *Manager) DeleteProfile(name string) error {
	schedules, err := m.storage.ListSchedules()
	if err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}
	if err := m.profiles.Delete(name); err != nil {
		return err
	}
	for _, s := range schedules {
		if s.ProfileName == strings.TrimSpace(name) {
			m.scheduler.Unregister(s.ID)
		}
	}
	log.Info("Profile deleted", "profile", name)
	return nil
}

// ListSchedules returns every schedule
func (m *Manager) ListSchedules() ([]model.Schedule, error) {
	return m.storage.ListSchedules()
}

// CreateSchedule stores a cron schedule for a profile and registers it
func (m *Manager) CreateSchedule(profileName, spec string, enabled bool) (*model.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if err := worker.ParseSpec(spec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	p, err := m.profiles.Load(profileName)
	if err != nil {
		return nil, err
	}

	sched := &model.Schedule{
		ID:          uuid.New().String(),
		ProfileName: p.Name,
		Spec:        spec,
		Enabled:     enabled,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.storage.CreateSchedule(sched); err != nil {
		return nil, fmt.Errorf("creating schedule: %w", err)
	}
	if err := m.scheduler.Register(*sched); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	log.Info("Schedule created", "schedule_id", sched.ID, "profile", sched.ProfileName, "spec", sched.Spec)
	return sched, nil
}

// DeleteSchedule removes a schedule
func (m *Manager) DeleteSchedule(id string) error {
	if err := m.storage.DeleteSchedule(id); err != nil {
		return err
	}
	m.scheduler.Unregister(id)
	log.Info("Schedule deleted", "schedule_id", id)
	return nil
}

// NextRun returns when a schedule fires next, if it is registered
func (m *Manager) NextRun(id string) (time.Time, bool) {
	return m.scheduler.Next(id)
}

// ImportLegacy carries nicknames and ignore flags over from a legacy
// settings directory. Legacy keys are matched against the handles of the
// devices enumerated right now.
func (m *Manager) ImportLegacy(ctx context.Context, dir string) (*storage.ImportReport, error) {
	snap, err := m.registry.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	resolve := func(kind model.DeviceKind, key string) (model.DeviceIdentity, bool) {
		switch kind {
		case model.KindMonitor:
			for _, mon := range snap.Monitors {
				if mon.Persistable && strings.EqualFold(mon.OSHandle, key) {
					return mon.Identity, true
				}
			}
		case model.KindAudio:
			for _, a := range snap.Audio.All() {
				if a.Persistable && strings.EqualFold(a.OSHandle, key) {
					return a.Identity, true
				}
			}
		}
		return "", false
	}

	report, err := storage.ImportLegacy(dir, m.storage, resolve)
	if err != nil {
		return nil, err
	}
	if _, err := m.registry.Refresh(ctx); err != nil {
		return nil, err
	}
	log.Info("Legacy settings imported", "dir", dir, "nicknames", report.Nicknames,
		"ignored", report.Ignored, "skipped", len(report.Skipped))
	return report, nil
}

// runSingle runs a single device operation and turns a gateway failure
// into an error
func (m *Manager) runSingle(ctx context.Context, name string, planner engine.Planner) (*model.ApplyResult, error) {
	result, err := m.engine.Run(ctx, name, planner)
	if err != nil {
		return nil, err
	}
	if result.Failed != nil {
		return result, fmt.Errorf("%w: %s: %s", ErrMutationFailed, result.Failed.Mutation, result.Failed.Cause)
	}
	return result, nil
}
