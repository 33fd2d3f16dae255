package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/martinsuchenak/deskd/internal/model"
)

// Files written by the desktop profile manager this tool replaces
const (
	LegacyNicknamesFile  = "nicknames.json"
	LegacyIgnoreListFile = "ignore_list.json"
	LegacyProfilesFile   = "profiles.json"
)

type legacyNicknames struct {
	Monitors     map[string]string `json:"monitors"`
	AudioDevices map[string]string `json:"audioDevices"`
}

type legacyIgnoreList struct {
	AudioDevices []string `json:"audioDevices"`
}

type legacyProfile struct {
	Name  string `json:"name"`
	Audio struct {
		DefaultOutputDeviceID string `json:"defaultOutputDeviceId"`
	} `json:"audio"`
}

// LegacyResolver maps a legacy key, an OS device name or command line id,
// to the identity of a currently enumerated device
type LegacyResolver func(kind model.DeviceKind, legacyKey string) (model.DeviceIdentity, bool)

// ImportReport lists what a legacy import did
type ImportReport struct {
	Nicknames int          `json:"nicknames"`
	Ignored   int          `json:"ignored"`
	Skipped   []ImportSkip `json:"skipped"`
	Profiles  []string     `json:"profiles_skipped"`
}

// ImportSkip is a legacy entry that could not be carried over
type ImportSkip struct {
	Kind   model.DeviceKind `json:"kind"`
	Key    string           `json:"key"`
	Reason string           `json:"reason"`
}

// ImportLegacy reads the legacy settings directory into the overlay table.
// Legacy keys are volatile OS names, so only devices present right now can
// be matched. Legacy profiles carry no monitor snapshot and are reported,
// not imported.
func ImportLegacy(dir string, overlays OverlayStorage, resolve LegacyResolver) (*ImportReport, error) {
	report := &ImportReport{Skipped: []ImportSkip{}, Profiles: []string{}}

	var nicknames legacyNicknames
	if err := readLegacyFile(filepath.Join(dir, LegacyNicknamesFile), &nicknames); err != nil {
		return nil, err
	}

	var ignoreList legacyIgnoreList
	if err := readLegacyFile(filepath.Join(dir, LegacyIgnoreListFile), &ignoreList); err != nil {
		return nil, err
	}

	var profiles []legacyProfile
	if err := readLegacyFile(filepath.Join(dir, LegacyProfilesFile), &profiles); err != nil {
		return nil, err
	}

	importNickname := func(kind model.DeviceKind, key, nickname string) error {
		id, ok := resolve(kind, key)
		if !ok {
			report.Skipped = append(report.Skipped, ImportSkip{Kind: kind, Key: key, Reason: "device not present"})
			return nil
		}
		_, err := overlays.UpdateOverlay(id, kind, func(o *model.Overlay) error {
			o.Nickname = nickname
			return nil
		})
		if err != nil {
			return fmt.Errorf("importing nickname for %s: %w", key, err)
		}
		report.Nicknames++
		return nil
	}

	for key, nickname := range nicknames.Monitors {
		if err := importNickname(model.KindMonitor, key, nickname); err != nil {
			return nil, err
		}
	}
	for key, nickname := range nicknames.AudioDevices {
		if err := importNickname(model.KindAudio, key, nickname); err != nil {
			return nil, err
		}
	}

	for _, key := range ignoreList.AudioDevices {
		id, ok := resolve(model.KindAudio, key)
		if !ok {
			report.Skipped = append(report.Skipped, ImportSkip{Kind: model.KindAudio, Key: key, Reason: "device not present"})
			continue
		}
		_, err := overlays.UpdateOverlay(id, model.KindAudio, func(o *model.Overlay) error {
			o.Ignored = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("importing ignore flag for %s: %w", key, err)
		}
		report.Ignored++
	}

	for _, p := range profiles {
		if p.Name != "" {
			report.Profiles = append(report.Profiles, p.Name)
		}
	}

	return report, nil
}

// readLegacyFile decodes a legacy JSON file; a missing file is not an error
func readLegacyFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
