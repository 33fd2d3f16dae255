package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/martinsuchenak/deskd/internal/model"
)

func writeLegacy(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestImportLegacy(t *testing.T) {
	dir := t.TempDir()
	writeLegacy(t, dir, LegacyNicknamesFile, `{
		"monitors": {"\\\\.\\DISPLAY1": "Left", "\\\\.\\DISPLAY9": "Gone"},
		"audioDevices": {"Realtek\\Device\\Speakers\\Render": "Desk"}
	}`)
	writeLegacy(t, dir, LegacyIgnoreListFile, `{"audioDevices": ["HDMI\\Device\\TV\\Render"]}`)
	writeLegacy(t, dir, LegacyProfilesFile, `[{"name": "work", "audio": {"defaultOutputDeviceId": "x"}}]`)

	known := map[string]model.DeviceIdentity{
		`\\.\DISPLAY1`:                   "mon:left",
		`Realtek\Device\Speakers\Render`: "aud:speakers",
		`HDMI\Device\TV\Render`:          "aud:tv",
	}
	resolve := func(kind model.DeviceKind, key string) (model.DeviceIdentity, bool) {
		id, ok := known[key]
		return id, ok
	}

	s, err := NewFileStorage(t.TempDir(), FormatJSON)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}

	report, err := ImportLegacy(dir, s, resolve)
	if err != nil {
		t.Fatalf("ImportLegacy() error = %v", err)
	}

	if report.Nicknames != 2 {
		t.Errorf("Expected 2 nicknames imported, got %d", report.Nicknames)
	}
	if report.Ignored != 1 {
		t.Errorf("Expected 1 ignored device imported, got %d", report.Ignored)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Key != `\\.\DISPLAY9` {
		t.Errorf("Expected the absent monitor to be skipped, got %+v", report.Skipped)
	}
	if len(report.Profiles) != 1 || report.Profiles[0] != "work" {
		t.Errorf("Expected legacy profile to be reported, got %v", report.Profiles)
	}

	overlays, _ := s.ListOverlays()
	byID := make(map[model.DeviceIdentity]model.Overlay)
	for _, o := range overlays {
		byID[o.Identity] = o
	}
	if byID["mon:left"].Nickname != "Left" || byID["mon:left"].Kind != model.KindMonitor {
		t.Errorf("Unexpected monitor overlay %+v", byID["mon:left"])
	}
	if !byID["aud:tv"].Ignored {
		t.Error("Expected aud:tv to be ignored")
	}
}

func TestImportLegacy_EmptyDir(t *testing.T) {
	s, err := NewFileStorage(t.TempDir(), FormatJSON)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}

	report, err := ImportLegacy(t.TempDir(), s, func(model.DeviceKind, string) (model.DeviceIdentity, bool) {
		return "", false
	})
	if err != nil {
		t.Fatalf("ImportLegacy() error = %v", err)
	}
	if report.Nicknames != 0 || report.Ignored != 0 {
		t.Errorf("Expected nothing imported, got %+v", report)
	}
}

func TestImportLegacy_BadJSON(t *testing.T) {
	dir := t.TempDir()
	writeLegacy(t, dir, LegacyNicknamesFile, `{not json`)

	s, _ := NewFileStorage(t.TempDir(), FormatJSON)
	_, err := ImportLegacy(dir, s, func(model.DeviceKind, string) (model.DeviceIdentity, bool) { return "", false })
	if err == nil {
		t.Error("Expected parse error")
	}
}
