package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/martinsuchenak/deskd/internal/model"
)

type backend struct {
	name string
	open func(t *testing.T, dir string) Storage
}

var backends = []backend{
	{"sqlite", func(t *testing.T, dir string) Storage {
		s, err := NewSQLiteStorage(dir)
		if err != nil {
			t.Fatalf("NewSQLiteStorage() error = %v", err)
		}
		return s
	}},
	{"json", func(t *testing.T, dir string) Storage {
		s, err := NewFileStorage(dir, FormatJSON)
		if err != nil {
			t.Fatalf("NewFileStorage() error = %v", err)
		}
		return s
	}},
	{"yaml", func(t *testing.T, dir string) Storage {
		s, err := NewFileStorage(dir, FormatYAML)
		if err != nil {
			t.Fatalf("NewFileStorage() error = %v", err)
		}
		return s
	}},
}

// forEachBackend runs fn against a fresh instance of every backend
func forEachBackend(t *testing.T, fn func(t *testing.T, s Storage, reopen func() Storage)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			dir := t.TempDir()
			s := b.open(t, dir)
			t.Cleanup(func() { s.Close() })

			reopen := func() Storage {
				s.Close()
				s = b.open(t, dir)
				return s
			}
			fn(t, s, reopen)
		})
	}
}

func testProfile(name string, primary model.DeviceIdentity) *model.Profile {
	return &model.Profile{
		Name:          name,
		SchemaVersion: model.ProfileSchemaVersion,
		Monitors: []model.ProfileMonitor{
			{Identity: "mon:a", DisplayName: "LG", IsPrimary: primary == "mon:a", IsEnabled: true},
			{Identity: "mon:b", DisplayName: "Dell", IsPrimary: primary == "mon:b", IsEnabled: primary == "mon:b"},
		},
		Audio: model.AudioProfile{
			DefaultOutputDeviceID: "aud:speakers",
			Selected:              []model.DeviceIdentity{"aud:speakers"},
		},
	}
}

func TestNewStorage(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{BackendSQLite, false},
		{BackendFile, false},
		{"", false},
		{"postgres", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := NewStorage(tt.backend, t.TempDir(), FormatYAML)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStorage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}

func TestStorage_ProfileOverwrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage, reopen func() Storage) {
		first := testProfile("home", "mon:a")
		if err := s.SaveProfile(first); err != nil {
			t.Fatalf("SaveProfile() error = %v", err)
		}
		created := first.CreatedAt

		second := testProfile("home", "mon:b")
		second.Audio.Selected = nil
		if err := s.SaveProfile(second); err != nil {
			t.Fatalf("SaveProfile() error = %v", err)
		}

		s = reopen()
		got, err := s.GetProfile("home")
		if err != nil {
			t.Fatalf("GetProfile() error = %v", err)
		}

		primary, ok := got.PrimaryMonitor()
		if !ok || primary.Identity != "mon:b" {
			t.Errorf("Expected second snapshot with mon:b primary, got %+v", got.Monitors)
		}
		if len(got.Audio.Selected) != 0 {
			t.Errorf("Expected selection to be overwritten, got %v", got.Audio.Selected)
		}
		if !got.CreatedAt.Equal(created) {
			t.Errorf("Expected CreatedAt %v to survive overwrite, got %v", created, got.CreatedAt)
		}

		profiles, err := s.ListProfiles()
		if err != nil {
			t.Fatalf("ListProfiles() error = %v", err)
		}
		if len(profiles) != 1 {
			t.Errorf("Expected 1 profile, got %d", len(profiles))
		}
	})
}

func TestStorage_ProfileNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage, reopen func() Storage) {
		if _, err := s.GetProfile("missing"); !errors.Is(err, ErrProfileNotFound) {
			t.Errorf("Expected ErrProfileNotFound, got %v", err)
		}
		if err := s.DeleteProfile("missing"); !errors.Is(err, ErrProfileNotFound) {
			t.Errorf("Expected ErrProfileNotFound, got %v", err)
		}
		if err := s.SaveProfile(&model.Profile{}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Expected ErrInvalidID, got %v", err)
		}
	})
}

func TestStorage_ListProfilesSorted(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage, reopen func() Storage) {
		for _, name := range []string{"work", "gaming", "home"} {
			if err := s.SaveProfile(testProfile(name, "mon:a")); err != nil {
				t.Fatalf("SaveProfile(%s) error = %v", name, err)
			}
		}

		profiles, err := s.ListProfiles()
		if err != nil {
			t.Fatalf("ListProfiles() error = %v", err)
		}
		want := []string{"gaming", "home", "work"}
		for i, p := range profiles {
			if p.Name != want[i] {
				t.Errorf("Expected profile %d to be %s, got %s", i, want[i], p.Name)
			}
		}
	})
}

func TestStorage_UpdateOverlay(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage, reopen func() Storage) {
		o, err := s.UpdateOverlay("aud:x", model.KindAudio, func(o *model.Overlay) error {
			o.Nickname = "Desk speakers"
			o.Selected = true
			return nil
		})
		if err != nil {
			t.Fatalf("UpdateOverlay() error = %v", err)
		}
		if o.Kind != model.KindAudio || o.Nickname != "Desk speakers" {
			t.Errorf("Unexpected overlay %+v", o)
		}

		_, err = s.UpdateOverlay("aud:x", model.KindAudio, func(o *model.Overlay) error {
			o.Ignored = true
			return nil
		})
		if err != nil {
			t.Fatalf("UpdateOverlay() error = %v", err)
		}

		s = reopen()
		overlays, err := s.ListOverlays()
		if err != nil {
			t.Fatalf("ListOverlays() error = %v", err)
		}
		if len(overlays) != 1 {
			t.Fatalf("Expected 1 overlay, got %d", len(overlays))
		}
		got := overlays[0]
		if got.Nickname != "Desk speakers" || !got.Ignored || !got.Selected {
			t.Errorf("Expected all fields kept across updates, got %+v", got)
		}
	})
}

func TestStorage_UpdateOverlayErrorWritesNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage, reopen func() Storage) {
		boom := errors.New("rejected")
		_, err := s.UpdateOverlay("mon:x", model.KindMonitor, func(o *model.Overlay) error {
			o.Nickname = "never"
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected fn error, got %v", err)
		}

		overlays, _ := s.ListOverlays()
		if len(overlays) != 0 {
			t.Errorf("Expected no overlay written, got %+v", overlays)
		}
	})
}

func TestStorage_UpdateOverlayDropsEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage, reopen func() Storage) {
		set := func(nickname string) {
			t.Helper()
			_, err := s.UpdateOverlay("mon:x", model.KindMonitor, func(o *model.Overlay) error {
				o.Nickname = nickname
				return nil
			})
			if err != nil {
				t.Fatalf("UpdateOverlay() error = %v", err)
			}
		}

		set("Left")
		set("")

		overlays, _ := s.ListOverlays()
		if len(overlays) != 0 {
			t.Errorf("Expected cleared overlay to be removed, got %+v", overlays)
		}
	})
}

func TestStorage_UpdateOverlayConcurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage, reopen func() Storage) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.UpdateOverlay("aud:x", model.KindAudio, func(o *model.Overlay) error {
					if i%2 == 0 {
						o.Selected = true
					} else {
						o.Nickname = "Speakers"
					}
					return nil
				})
				if err != nil {
					t.Errorf("UpdateOverlay() error = %v", err)
				}
			}(i)
		}
		wg.Wait()

		overlays, _ := s.ListOverlays()
		if len(overlays) != 1 || !overlays[0].Selected || overlays[0].Nickname != "Speakers" {
			t.Errorf("Expected both concurrent updates to land, got %+v", overlays)
		}
	})
}

func TestStorage_Schedules(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage, reopen func() Storage) {
		sched := &model.Schedule{ID: "s1", ProfileName: "work", Spec: "0 9 * * 1-5", Enabled: true}
		if err := s.CreateSchedule(sched); !errors.Is(err, ErrProfileNotFound) {
			t.Fatalf("Expected ErrProfileNotFound for unknown profile, got %v", err)
		}

		if err := s.SaveProfile(testProfile("work", "mon:a")); err != nil {
			t.Fatalf("SaveProfile() error = %v", err)
		}
		if err := s.CreateSchedule(sched); err != nil {
			t.Fatalf("CreateSchedule() error = %v", err)
		}
		if err := s.CreateSchedule(sched); err == nil {
			t.Error("Expected duplicate schedule to be rejected")
		}

		at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		if err := s.RecordScheduleRun("s1", at, "completed"); err != nil {
			t.Fatalf("RecordScheduleRun() error = %v", err)
		}

		s = reopen()
		got, err := s.GetSchedule("s1")
		if err != nil {
			t.Fatalf("GetSchedule() error = %v", err)
		}
		if got.LastRun == nil || !got.LastRun.Equal(at) {
			t.Errorf("Expected last run %v, got %v", at, got.LastRun)
		}
		if got.LastStatus != "completed" || !got.Enabled || got.Spec != sched.Spec {
			t.Errorf("Unexpected schedule %+v", got)
		}

		if err := s.DeleteProfile("work"); err != nil {
			t.Fatalf("DeleteProfile() error = %v", err)
		}
		schedules, _ := s.ListSchedules()
		if len(schedules) != 0 {
			t.Errorf("Expected schedules of a deleted profile to be removed, got %d", len(schedules))
		}
		if err := s.DeleteSchedule("s1"); !errors.Is(err, ErrScheduleNotFound) {
			t.Errorf("Expected ErrScheduleNotFound, got %v", err)
		}
	})
}

func TestFileStorage_Format(t *testing.T) {
	tests := []struct {
		format string
		file   string
	}{
		{FormatJSON, "profiles.json"},
		{FormatYAML, "profiles.yaml"},
		{"toml", "profiles.json"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			s, err := NewFileStorage(dir, tt.format)
			if err != nil {
				t.Fatalf("NewFileStorage() error = %v", err)
			}
			if err := s.SaveProfile(testProfile("home", "mon:a")); err != nil {
				t.Fatalf("SaveProfile() error = %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, tt.file)); err != nil {
				t.Errorf("Expected %s to be written: %v", tt.file, err)
			}
			if _, err := os.Stat(filepath.Join(dir, tt.file+".tmp")); !os.IsNotExist(err) {
				t.Error("Expected temp file to be renamed away")
			}
		})
	}
}

func TestSQLiteStorage_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s, err := NewSQLiteStorage(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	s.Close()

	s, err = NewSQLiteStorage(dir)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()

	version, err := s.schemaVersion()
	if err != nil {
		t.Fatalf("schemaVersion() error = %v", err)
	}
	if version != migrations[len(migrations)-1].version {
		t.Errorf("Expected schema version %d, got %d", migrations[len(migrations)-1].version, version)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("Expected %d migration rows, got %d", len(migrations), count)
	}
}
