package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"github.com/martinsuchenak/deskd/internal/gateway"
	"github.com/martinsuchenak/deskd/internal/identity"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/martinsuchenak/deskd/internal/registry"
	"github.com/martinsuchenak/deskd/internal/storage"
)

var (
	rawM1 = gateway.RawMonitor{OSHandle: `\\.\DISPLAY1`, ManufacturerID: "GSM", ModelID: "5B7F", Serial: "111", DisplayName: "LG", IsActive: true}
	rawM2 = gateway.RawMonitor{OSHandle: `\\.\DISPLAY2`, ManufacturerID: "DEL", ModelID: "4105", Serial: "222", DisplayName: "Dell", IsActive: true}
	rawM3 = gateway.RawMonitor{OSHandle: `\\.\DISPLAY3`, ManufacturerID: "ACR", ModelID: "0B12", Serial: "333", DisplayName: "Acer", IsActive: true}
	rawM4 = gateway.RawMonitor{OSHandle: `\\.\DISPLAY4`, ManufacturerID: "BNQ", ModelID: "7F4A", Serial: "444", DisplayName: "BenQ", IsActive: true}

	rawSpeakers = gateway.RawAudioDevice{OSHandle: "Speakers", PersistentID: "{speakers}", Name: "Speakers", Type: model.AudioOutput, State: model.EndpointActive}
	rawHeadset  = gateway.RawAudioDevice{OSHandle: "Headset", PersistentID: "{headset}", Name: "Headset", Type: model.AudioOutput, State: model.EndpointActive}
	rawOldTV    = gateway.RawAudioDevice{OSHandle: "Old TV", PersistentID: "{oldtv}", Name: "Old TV", Type: model.AudioOutput, State: model.EndpointNotPresent}
)

func monitorState(raw gateway.RawMonitor, primary, enabled bool) gateway.RawMonitor {
	raw.IsPrimary = primary
	raw.IsEnabled = enabled
	return raw
}

func asDefault(raw gateway.RawAudioDevice) gateway.RawAudioDevice {
	raw.IsDefault = true
	return raw
}

func monitorID(raw gateway.RawMonitor) model.DeviceIdentity {
	return identity.NewResolver().ResolveMonitor(raw).Identity
}

func audioID(raw gateway.RawAudioDevice) model.DeviceIdentity {
	return identity.NewResolver().ResolveAudio(raw).Identity
}

func newTestEngine(t *testing.T, monitors []gateway.RawMonitor, audio []gateway.RawAudioDevice) (*Engine, *registry.Registry, *gateway.MemoryGateway) {
	t.Helper()
	s, err := storage.NewFileStorage(t.TempDir(), storage.FormatJSON)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	gw := gateway.NewMemoryGateway(monitors, audio)
	reg := registry.NewRegistry(gw, identity.NewResolver(), s)
	t.Cleanup(reg.Close)
	return New(reg), reg, gw
}

func callStrings(calls []gateway.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

func TestEngine_ApplySwapsPrimary(t *testing.T) {
	eng, _, gw := newTestEngine(t,
		[]gateway.RawMonitor{monitorState(rawM1, false, false), monitorState(rawM2, true, true)},
		[]gateway.RawAudioDevice{asDefault(rawSpeakers)},
	)

	profile := &model.Profile{Name: "desk", Monitors: []model.ProfileMonitor{
		{Identity: monitorID(rawM1), IsPrimary: true, IsEnabled: true},
		{Identity: monitorID(rawM2), IsEnabled: false},
	}}

	result, err := eng.Apply(context.Background(), profile)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !result.Complete() {
		t.Fatalf("Expected complete result, got failure %+v", result.Failed)
	}

	expected := []string{
		`set_monitor_enabled(\\.\DISPLAY1,true)`,
		`set_monitor_primary(\\.\DISPLAY1)`,
		`set_monitor_enabled(\\.\DISPLAY2,false)`,
	}
	if got := callStrings(gw.Calls()); !equalStrings(got, expected) {
		t.Errorf("Expected calls %v, got %v", expected, got)
	}

	if result.Snapshot == nil {
		t.Fatal("Expected result to carry the post-apply snapshot")
	}
	m1, _ := result.Snapshot.Monitor(monitorID(rawM1))
	m2, _ := result.Snapshot.Monitor(monitorID(rawM2))
	if !m1.IsPrimary || !m1.IsEnabled || m2.IsEnabled {
		t.Errorf("Unexpected end state: m1=%+v m2=%+v", m1, m2)
	}
}

func TestEngine_ApplySkipsUnavailableAudio(t *testing.T) {
	eng, _, gw := newTestEngine(t,
		[]gateway.RawMonitor{monitorState(rawM1, true, true)},
		[]gateway.RawAudioDevice{asDefault(rawSpeakers), rawOldTV},
	)

	profile := &model.Profile{
		Name:     "tv",
		Monitors: []model.ProfileMonitor{{Identity: monitorID(rawM1), IsPrimary: true, IsEnabled: true}},
		Audio:    model.AudioProfile{DefaultOutputDeviceID: audioID(rawOldTV)},
	}

	result, err := eng.Apply(context.Background(), profile)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(gw.Calls()) != 0 {
		t.Errorf("Expected no gateway calls, got %v", callStrings(gw.Calls()))
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("Expected 1 skip, got %+v", result.Skipped)
	}
	if s := result.Skipped[0]; s.Reason != model.SkipDeviceUnavailable || s.Label != "Old TV" {
		t.Errorf("Expected Old TV unavailable, got %+v", s)
	}

	speakers, _ := result.Snapshot.AudioDevice(audioID(rawSpeakers))
	if !speakers.IsDefault {
		t.Error("Expected the current default output to be left alone")
	}
}

func TestEngine_ApplyIdempotent(t *testing.T) {
	eng, _, gw := newTestEngine(t,
		[]gateway.RawMonitor{monitorState(rawM1, true, true), monitorState(rawM2, false, false)},
		[]gateway.RawAudioDevice{asDefault(rawSpeakers), rawHeadset},
	)
	ctx := context.Background()

	profile := &model.Profile{
		Name: "both",
		Monitors: []model.ProfileMonitor{
			{Identity: monitorID(rawM1), IsEnabled: true},
			{Identity: monitorID(rawM2), IsPrimary: true, IsEnabled: true},
		},
		Audio: model.AudioProfile{DefaultOutputDeviceID: audioID(rawHeadset)},
	}

	first, err := eng.Apply(ctx, profile)
	if err != nil || !first.Complete() {
		t.Fatalf("Apply() = %+v, %v", first, err)
	}
	if len(first.Applied) != 3 {
		t.Errorf("Expected 3 applied mutations, got %v", kinds(first.Applied))
	}

	gw.ResetCalls()
	plan, err := eng.Preview(ctx, profile)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if !plan.IsEmpty() {
		t.Errorf("Expected empty plan after apply, got %v", kinds(plan.Mutations))
	}

	second, err := eng.Apply(ctx, profile)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(second.Applied) != 0 || len(gw.Calls()) != 0 {
		t.Errorf("Expected second apply to be a no-op, got %v", callStrings(gw.Calls()))
	}
}

func opFor(m model.Mutation) string {
	switch m.Kind {
	case model.MutationSetPrimary:
		return gateway.OpSetMonitorPrimary
	case model.MutationSetDefaultOutput:
		return gateway.OpSetDefaultOutputDevice
	default:
		return gateway.OpSetMonitorEnabled
	}
}

func TestEngine_PartialFailure(t *testing.T) {
	monitors := []gateway.RawMonitor{
		monitorState(rawM1, true, true),
		monitorState(rawM2, false, false),
		monitorState(rawM3, false, false),
		monitorState(rawM4, false, true),
	}
	audio := []gateway.RawAudioDevice{asDefault(rawSpeakers), rawHeadset}
	profile := &model.Profile{
		Name: "swap",
		Monitors: []model.ProfileMonitor{
			{Identity: monitorID(rawM1), IsEnabled: false},
			{Identity: monitorID(rawM2), IsPrimary: true, IsEnabled: true},
			{Identity: monitorID(rawM3), IsEnabled: true},
			{Identity: monitorID(rawM4), IsEnabled: false},
		},
		Audio: model.AudioProfile{DefaultOutputDeviceID: audioID(rawHeadset)},
	}
	const total = 6
	boom := errors.New("display driver refused")

	for k := 1; k <= total; k++ {
		t.Run(fmt.Sprintf("fail at %d", k), func(t *testing.T) {
			eng, _, gw := newTestEngine(t, monitors, audio)
			ctx := context.Background()

			plan, err := eng.Preview(ctx, profile)
			if err != nil {
				t.Fatalf("Preview() error = %v", err)
			}
			if len(plan.Mutations) != total {
				t.Fatalf("Expected %d mutations, got %v", total, kinds(plan.Mutations))
			}
			target := plan.Mutations[k-1]
			gw.FailOn(opFor(target), target.OSHandle, boom)

			result, err := eng.Apply(ctx, profile)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if result.Failed == nil {
				t.Fatal("Expected a failure")
			}
			if result.Failed.Mutation != target {
				t.Errorf("Expected failure on %s, got %s", target, result.Failed.Mutation)
			}
			if !errors.Is(result.Failed.Err, boom) {
				t.Errorf("Expected injected cause, got %v", result.Failed.Err)
			}
			if len(result.Applied) != k-1 {
				t.Errorf("Expected %d applied, got %d", k-1, len(result.Applied))
			}
			if len(result.Remaining) != total-k {
				t.Errorf("Expected %d remaining, got %d", total-k, len(result.Remaining))
			}
			if len(gw.Calls()) != k {
				t.Errorf("Expected %d gateway calls, got %d", k, len(gw.Calls()))
			}

			enabled := 0
			for _, m := range result.Snapshot.Monitors {
				if m.IsEnabled {
					enabled++
				}
			}
			if enabled == 0 {
				t.Error("Expected at least one enabled monitor after a partial apply")
			}
		})
	}
}

func TestEngine_PrimaryProtected(t *testing.T) {
	eng, _, gw := newTestEngine(t,
		[]gateway.RawMonitor{monitorState(rawM1, true, true)},
		nil,
	)

	profile := &model.Profile{Name: "dark", Monitors: []model.ProfileMonitor{
		{Identity: monitorID(rawM1), IsEnabled: false},
	}}
	// The current primary is kept enabled when the profile has no primary
	result, err := eng.Apply(context.Background(), profile)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Applied) != 0 || len(result.Skipped) != 1 {
		t.Errorf("Expected primary kept with one skip, got %+v", result)
	}

	_, err = eng.Run(context.Background(), "disable", func(snap *model.Snapshot) (*model.MutationPlan, error) {
		return PlanMonitorEnabled(snap, monitorID(rawM1), false)
	})
	if !errors.Is(err, ErrPrimaryMonitor) {
		t.Errorf("Expected ErrPrimaryMonitor, got %v", err)
	}
	if len(gw.Calls()) != 0 {
		t.Errorf("Expected no gateway calls, got %v", callStrings(gw.Calls()))
	}
}

func TestEngine_ApplySelection(t *testing.T) {
	eng, reg, gw := newTestEngine(t,
		[]gateway.RawMonitor{monitorState(rawM1, true, true)},
		[]gateway.RawAudioDevice{asDefault(rawSpeakers), rawHeadset},
	)
	ctx := context.Background()

	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	selected := true
	if _, err := reg.SetOverlay(audioID(rawSpeakers), model.OverlayPatch{Selected: &selected}); err != nil {
		t.Fatalf("SetOverlay() error = %v", err)
	}

	profile := &model.Profile{
		Name:     "headset",
		Monitors: []model.ProfileMonitor{{Identity: monitorID(rawM1), IsPrimary: true, IsEnabled: true}},
		Audio:    model.AudioProfile{Selected: []model.DeviceIdentity{audioID(rawHeadset)}},
	}

	result, err := eng.Apply(ctx, profile)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Selection) != 2 {
		t.Errorf("Expected 2 selection changes, got %+v", result.Selection)
	}
	if len(gw.Calls()) != 0 {
		t.Errorf("Expected selection to stay off the gateway, got %v", callStrings(gw.Calls()))
	}

	speakers, _ := result.Snapshot.AudioDevice(audioID(rawSpeakers))
	headset, _ := result.Snapshot.AudioDevice(audioID(rawHeadset))
	if speakers.Selected || !headset.Selected {
		t.Errorf("Expected only the headset selected, got speakers=%t headset=%t", speakers.Selected, headset.Selected)
	}
}

func TestEngine_ConcurrentApplies(t *testing.T) {
	eng, _, _ := newTestEngine(t,
		[]gateway.RawMonitor{monitorState(rawM1, true, true), monitorState(rawM2, false, false)},
		nil,
	)

	profiles := []*model.Profile{
		{Name: "left", Monitors: []model.ProfileMonitor{
			{Identity: monitorID(rawM1), IsPrimary: true, IsEnabled: true},
			{Identity: monitorID(rawM2), IsEnabled: false},
		}},
		{Name: "right", Monitors: []model.ProfileMonitor{
			{Identity: monitorID(rawM1), IsEnabled: false},
			{Identity: monitorID(rawM2), IsPrimary: true, IsEnabled: true},
		}},
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := eng.Apply(context.Background(), profiles[i%2])
			if err == nil && !result.Complete() {
				err = fmt.Errorf("incomplete: %+v", result.Failed)
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Apply %d error = %v", i, err)
		}
	}
}

func TestEngine_ApplyProperty(t *testing.T) {
	outputStates := []model.EndpointState{
		model.EndpointActive, model.EndpointActive, model.EndpointDisabled,
		model.EndpointUnplugged, model.EndpointNotPresent,
	}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "monitors")
		monitors := make([]gateway.RawMonitor, n)
		enabledIdx := []int{}
		for i := range monitors {
			monitors[i] = gateway.RawMonitor{
				OSHandle:       fmt.Sprintf(`\\.\DISPLAY%d`, i+1),
				ManufacturerID: "TST",
				ModelID:        "0001",
				Serial:         fmt.Sprintf("SN%d", i),
				DisplayName:    fmt.Sprintf("Test %d", i),
				IsEnabled:      rapid.Bool().Draw(rt, fmt.Sprintf("enabled%d", i)),
				IsActive:       true,
			}
			if monitors[i].IsEnabled {
				enabledIdx = append(enabledIdx, i)
			}
		}
		if len(enabledIdx) == 0 {
			monitors[0].IsEnabled = true
			enabledIdx = append(enabledIdx, 0)
		}
		primary := rapid.SampledFrom(enabledIdx).Draw(rt, "primary")
		monitors[primary].IsPrimary = true

		m := rapid.IntRange(0, 4).Draw(rt, "outputs")
		audio := make([]gateway.RawAudioDevice, m)
		activeIdx := []int{}
		for i := range audio {
			audio[i] = gateway.RawAudioDevice{
				OSHandle:     fmt.Sprintf("Out%d", i),
				PersistentID: fmt.Sprintf("{out-%d}", i),
				Name:         fmt.Sprintf("Out %d", i),
				Type:         model.AudioOutput,
				State:        rapid.SampledFrom(outputStates).Draw(rt, fmt.Sprintf("state%d", i)),
			}
			if audio[i].State == model.EndpointActive {
				activeIdx = append(activeIdx, i)
			}
		}
		if len(activeIdx) > 0 && rapid.Bool().Draw(rt, "hasDefault") {
			audio[rapid.SampledFrom(activeIdx).Draw(rt, "default")].IsDefault = true
		}

		profile := &model.Profile{Name: "generated"}
		included := []int{}
		for i, raw := range monitors {
			if !rapid.Bool().Draw(rt, fmt.Sprintf("include%d", i)) {
				continue
			}
			included = append(included, len(profile.Monitors))
			profile.Monitors = append(profile.Monitors, model.ProfileMonitor{
				Identity:  monitorID(raw),
				IsEnabled: rapid.Bool().Draw(rt, fmt.Sprintf("want%d", i)),
			})
		}
		if rapid.Bool().Draw(rt, "absentEntry") {
			profile.Monitors = append(profile.Monitors, model.ProfileMonitor{
				Identity:  model.DeviceIdentity(identity.PrefixMonitor + "0000"),
				IsEnabled: true,
			})
			included = append(included, len(profile.Monitors)-1)
		}
		if len(included) > 0 && rapid.Bool().Draw(rt, "hasPrimary") {
			profile.Monitors[rapid.SampledFrom(included).Draw(rt, "profilePrimary")].IsPrimary = true
		}
		if m > 0 && rapid.Bool().Draw(rt, "wantDefault") {
			profile.Audio.DefaultOutputDeviceID = audioID(audio[rapid.IntRange(0, m-1).Draw(rt, "wantDefaultIdx")])
		}

		s, err := storage.NewFileStorage(t.TempDir(), storage.FormatJSON)
		if err != nil {
			rt.Fatalf("NewFileStorage() error = %v", err)
		}
		gw := gateway.NewMemoryGateway(monitors, audio)
		reg := registry.NewRegistry(gw, identity.NewResolver(), s)
		defer reg.Close()
		eng := New(reg)
		ctx := context.Background()

		result, err := eng.Apply(ctx, profile)
		if err != nil {
			if !errors.Is(err, ErrInvalidPlan) {
				rt.Fatalf("Apply() unexpected error = %v", err)
			}
			if len(gw.Calls()) != 0 {
				rt.Fatalf("Expected no gateway calls for a rejected plan, got %v", callStrings(gw.Calls()))
			}
			return
		}
		if !result.Complete() {
			rt.Fatalf("Expected every mutation to be accepted, failed on %+v", result.Failed)
		}

		after, _ := gw.ListMonitors(ctx)
		enabled, primaries := 0, 0
		for _, mon := range after {
			if mon.IsEnabled {
				enabled++
			}
			if mon.IsPrimary {
				primaries++
				if !mon.IsEnabled {
					rt.Fatalf("Primary monitor %s is disabled", mon.OSHandle)
				}
			}
		}
		if enabled == 0 || primaries != 1 {
			rt.Fatalf("Expected enabled>0 and one primary, got enabled=%d primaries=%d", enabled, primaries)
		}

		outs, _ := gw.ListAudioDevices(ctx)
		defaults := 0
		for _, a := range outs {
			if a.IsDefault {
				defaults++
			}
		}
		if defaults > 1 {
			rt.Fatalf("Expected at most one default output, got %d", defaults)
		}

		plan, err := eng.Preview(ctx, profile)
		if err != nil {
			rt.Fatalf("Preview() error = %v", err)
		}
		if len(plan.Mutations) != 0 {
			rt.Fatalf("Expected no mutations after apply, got %v", kinds(plan.Mutations))
		}
	})
}

func TestEngine_TwinMonitorsWithoutSerial(t *testing.T) {
	twinA := gateway.RawMonitor{OSHandle: `\\.\DISPLAY1`, ManufacturerID: "GSM", ModelID: "5B7F",
		AdapterPath: "NVIDIA GeForce RTX 3080", DisplayName: "LG", IsPrimary: true, IsEnabled: true, IsActive: true}
	twinB := twinA
	twinB.OSHandle = `\\.\DISPLAY2`
	twinB.IsPrimary = false
	twinB.IsEnabled = false

	eng, reg, gw := newTestEngine(t, []gateway.RawMonitor{twinA, twinB, monitorState(rawM2, false, true)}, nil)
	ctx := context.Background()

	snap, err := reg.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	ids := map[model.DeviceIdentity]bool{}
	for _, m := range snap.Monitors {
		if ids[m.Identity] {
			t.Fatalf("Expected distinct identities, got %s twice", m.Identity)
		}
		ids[m.Identity] = true
		if m.DisplayName == "LG" && (m.Persistable || !identity.IsSession(m.Identity)) {
			t.Errorf("Expected twin monitor to be unresolved, got %+v", m)
		}
	}

	// A profile saved before the twins were told apart lists the shared identity twice
	shared := monitorID(twinA)
	profile := &model.Profile{
		Name: "work",
		Monitors: []model.ProfileMonitor{
			{Identity: shared, IsPrimary: true, IsEnabled: true},
			{Identity: shared, IsEnabled: false},
			{Identity: monitorID(rawM2), IsEnabled: true},
		},
	}

	result, err := eng.Apply(ctx, profile)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(gw.Calls()) != 0 {
		t.Errorf("Expected no gateway calls, got %v", callStrings(gw.Calls()))
	}
	if len(result.Skipped) != 2 {
		t.Errorf("Expected both twin entries skipped, got %+v", result.Skipped)
	}
}
