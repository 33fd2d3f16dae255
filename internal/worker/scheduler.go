package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
)

const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// ScheduleStorage is the storage the scheduler needs
type ScheduleStorage interface {
	ListSchedules() ([]model.Schedule, error)
	RecordScheduleRun(id string, at time.Time, status string) error
}

// ProfileApplier applies a stored profile by name
type ProfileApplier interface {
	ApplyProfile(ctx context.Context, name string) (*model.ApplyResult, error)
}

// Scheduler applies profiles on cron schedules
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	running bool

	storage ScheduleStorage
	applier ProfileApplier
}

// ParseSpec validates a standard five field cron expression or descriptor
// such as @hourly
func ParseSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// NewScheduler creates a new scheduler
func NewScheduler(storage ScheduleStorage, applier ProfileApplier) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		storage: storage,
		applier: applier,
	}
}

// Start loads enabled schedules from storage and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	schedules, err := s.storage.ListSchedules()
	if err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}
	for _, sched := range schedules {
		if err := s.add(sched); err != nil {
			log.Warn("Skipping schedule", "schedule_id", sched.ID, "error", err)
		}
	}

	s.cron.Start()
	s.running = true
	log.Info("Starting profile scheduler", "schedules", len(s.entries))
	return nil
}

// Stop stops the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Info("Stopping profile scheduler")
	<-s.cron.Stop().Done()
}

// Register adds or replaces the cron entry for a schedule. Disabled
// schedules are removed.
func (s *Scheduler) Register(sched model.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(sched.ID)
	return s.add(sched)
}

// Unregister removes the cron entry for a schedule
func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(id)
}

// Next returns the next activation time of a registered schedule
func (s *Scheduler) Next(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(entryID).Next, true
}

// Run applies the schedule's profile now and records the outcome
func (s *Scheduler) Run(ctx context.Context, sched model.Schedule) string {
	log.Info("Running scheduled profile", "schedule_id", sched.ID, "profile", sched.ProfileName)

	status := StatusCompleted
	result, err := s.applier.ApplyProfile(ctx, sched.ProfileName)
	switch {
	case err != nil:
		status = StatusFailed
		log.Error("Scheduled profile failed", "schedule_id", sched.ID, "profile", sched.ProfileName, "error", err)
	case !result.Complete():
		status = StatusPartial
		log.Warn("Scheduled profile partially applied", "schedule_id", sched.ID, "profile", sched.ProfileName,
			"applied", len(result.Applied), "remaining", len(result.Remaining))
	default:
		log.Info("Scheduled profile completed", "schedule_id", sched.ID, "applied", len(result.Applied))
	}

	if err := s.storage.RecordScheduleRun(sched.ID, time.Now().UTC(), status); err != nil {
		log.Error("Failed to record schedule run", "schedule_id", sched.ID, "error", err)
	}
	return status
}

func (s *Scheduler) add(sched model.Schedule) error {
	if !sched.Enabled {
		return nil
	}
	entryID, err := s.cron.AddFunc(sched.Spec, func() {
		s.Run(context.Background(), sched)
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", sched.Spec, err)
	}
	s.entries[sched.ID] = entryID
	log.Debug("Schedule registered", "schedule_id", sched.ID, "spec", sched.Spec, "profile", sched.ProfileName)
	return nil
}

func (s *Scheduler) remove(id string) {
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}
