package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/martinsuchenak/deskd/internal/identity"
	"github.com/martinsuchenak/deskd/internal/model"
)

var (
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrPrimaryMonitor    = errors.New("cannot disable the primary monitor")
	ErrNoEnabledMonitor  = fmt.Errorf("%w: no enabled monitor", ErrInvalidPlan)
)

// monitorTarget is the desired state of one present monitor
type monitorTarget struct {
	live    model.MonitorState
	enabled bool
}

// BuildPlan computes the ordered mutations that move snap toward profile.
// It has no side effects.
//
// Monitors are enabled first, then the primary moves, then the remaining
// monitors are disabled, so the desktop never passes through a state with
// no enabled monitor or with a disabled primary. A plan whose end state has
// no enabled monitor is rejected with ErrInvalidPlan. Audio and selection
// changes follow the monitor mutations.
func BuildPlan(profile *model.Profile, snap *model.Snapshot) (*model.MutationPlan, error) {
	if profile == nil || snap == nil {
		return nil, fmt.Errorf("%w: missing profile or snapshot", ErrInvalidPlan)
	}

	plan := newPlan(profile.Name)

	targets := make(map[model.DeviceIdentity]*monitorTarget)
	seen := make(map[model.DeviceIdentity]bool)
	for _, pm := range profile.Monitors {
		if identity.IsSession(pm.Identity) {
			plan.Skipped = append(plan.Skipped, skip(pm.Identity, profileLabel(pm), model.SkipDeviceUnresolved,
				"profile entry has no stable identity"))
			continue
		}
		// Entries sharing an identity cannot be told apart, so none of them is applied
		if seen[pm.Identity] {
			plan.Skipped = append(plan.Skipped, skip(pm.Identity, profileLabel(pm), model.SkipDeviceUnresolved,
				"identity appears more than once in the profile"))
			delete(targets, pm.Identity)
			continue
		}
		seen[pm.Identity] = true
		live, ok := snap.Monitor(pm.Identity)
		if !ok {
			plan.Skipped = append(plan.Skipped, skip(pm.Identity, profileLabel(pm), model.SkipDeviceAbsent,
				"monitor is not connected"))
			continue
		}
		if !live.IsActive {
			plan.Skipped = append(plan.Skipped, skip(pm.Identity, live.Label(), model.SkipDeviceUnavailable,
				"monitor is enumerated but disconnected"))
			continue
		}
		targets[pm.Identity] = &monitorTarget{live: live, enabled: pm.IsEnabled || pm.IsPrimary}
	}

	var currentPrimary *model.MonitorState
	for i := range snap.Monitors {
		if snap.Monitors[i].IsPrimary && snap.Monitors[i].IsEnabled {
			currentPrimary = &snap.Monitors[i]
			break
		}
	}

	var newPrimary *monitorTarget
	if pm, ok := profile.PrimaryMonitor(); ok {
		if t, present := targets[pm.Identity]; present {
			newPrimary = t
		}
	}

	// Without a reachable primary target the current primary has to stay,
	// and so it has to stay enabled.
	if newPrimary == nil && currentPrimary != nil {
		if t, ok := targets[currentPrimary.Identity]; ok && !t.enabled {
			t.enabled = true
			plan.Skipped = append(plan.Skipped, skip(currentPrimary.Identity, currentPrimary.Label(),
				model.SkipDeviceUnavailable, "monitor is primary and the profile's primary monitor is not connected"))
		}
	}

	enabledAfter := 0
	for _, m := range snap.Monitors {
		if t, ok := targets[m.Identity]; ok {
			if t.enabled {
				enabledAfter++
			}
		} else if m.IsEnabled && m.IsActive {
			enabledAfter++
		}
	}
	if enabledAfter == 0 {
		return nil, ErrNoEnabledMonitor
	}

	ids := make([]model.DeviceIdentity, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		t := targets[id]
		if t.enabled && !t.live.IsEnabled {
			plan.Mutations = append(plan.Mutations, mutation(model.MutationEnableMonitor, t.live))
		}
	}
	if newPrimary != nil && !(newPrimary.live.IsPrimary && newPrimary.live.IsEnabled) {
		plan.Mutations = append(plan.Mutations, mutation(model.MutationSetPrimary, newPrimary.live))
	}
	for _, id := range ids {
		t := targets[id]
		if !t.enabled && t.live.IsEnabled {
			plan.Mutations = append(plan.Mutations, mutation(model.MutationDisableMonitor, t.live))
		}
	}

	planDefaultOutput(plan, profile.Audio.DefaultOutputDeviceID, snap)
	planSelection(plan, profile.Audio.Selected, snap)

	return plan, nil
}

func planDefaultOutput(plan *model.MutationPlan, id model.DeviceIdentity, snap *model.Snapshot) {
	if id == "" {
		return
	}
	if identity.IsSession(id) {
		plan.Skipped = append(plan.Skipped, skip(id, string(id), model.SkipDeviceUnresolved,
			"profile entry has no stable identity"))
		return
	}

	device, ok := snap.AudioDevice(id)
	if !ok {
		plan.Skipped = append(plan.Skipped, skip(id, string(id), model.SkipDeviceAbsent,
			"audio device is not present"))
		return
	}
	if reason := unavailableReason(device); reason != "" {
		plan.Skipped = append(plan.Skipped, skip(id, device.Label(), model.SkipDeviceUnavailable, reason))
		return
	}
	if !device.IsDefault {
		plan.Mutations = append(plan.Mutations, model.Mutation{
			Kind:     model.MutationSetDefaultOutput,
			Identity: device.Identity,
			OSHandle: device.OSHandle,
			Label:    device.Label(),
		})
	}
}

// planSelection makes the selected flags of present devices match the
// profile's selected set. It only produces overlay updates.
func planSelection(plan *model.MutationPlan, selected []model.DeviceIdentity, snap *model.Snapshot) {
	want := make(map[model.DeviceIdentity]bool, len(selected))
	for _, id := range selected {
		want[id] = true
	}

	for _, d := range snap.Audio.All() {
		if !d.Persistable {
			continue
		}
		target := want[d.Identity]
		delete(want, d.Identity)
		if target == d.Selected {
			continue
		}
		if target && d.Ignored {
			plan.Skipped = append(plan.Skipped, skip(d.Identity, d.Label(), model.SkipDeviceUnavailable,
				"ignored devices cannot be selected"))
			continue
		}
		plan.Selection = append(plan.Selection, model.SelectionChange{
			Identity: d.Identity,
			Label:    d.Label(),
			Selected: target,
		})
	}

	missing := make([]model.DeviceIdentity, 0, len(want))
	for id := range want {
		missing = append(missing, id)
	}
	slices.Sort(missing)
	for _, id := range missing {
		plan.Skipped = append(plan.Skipped, skip(id, string(id), model.SkipDeviceAbsent,
			"selected audio device is not present"))
	}
	slices.SortFunc(plan.Selection, func(a, b model.SelectionChange) int {
		return strings.Compare(string(a.Identity), string(b.Identity))
	})
}

// PlanMonitorEnabled plans enabling or disabling one monitor. Disabling the
// primary monitor or the last enabled monitor is refused, and so is
// enabling a disconnected one.
func PlanMonitorEnabled(snap *model.Snapshot, id model.DeviceIdentity, enabled bool) (*model.MutationPlan, error) {
	m, ok := snap.Monitor(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	plan := newPlan("")
	if m.IsEnabled == enabled {
		return plan, nil
	}

	if enabled {
		if !m.IsActive {
			return nil, fmt.Errorf("%w: %s is disconnected", ErrDeviceUnavailable, m.Label())
		}
		plan.Mutations = append(plan.Mutations, mutation(model.MutationEnableMonitor, m))
		return plan, nil
	}

	if m.IsPrimary {
		return nil, fmt.Errorf("%w: make another monitor primary before disabling %s", ErrPrimaryMonitor, m.Label())
	}
	others := 0
	for _, other := range snap.Monitors {
		if other.IsEnabled && other.IsActive && other.Identity != id {
			others++
		}
	}
	if others == 0 {
		return nil, ErrNoEnabledMonitor
	}

	plan.Mutations = append(plan.Mutations, mutation(model.MutationDisableMonitor, m))
	return plan, nil
}

// PlanMonitorPrimary plans making one connected monitor primary, enabling
// it first when it is disabled
func PlanMonitorPrimary(snap *model.Snapshot, id model.DeviceIdentity) (*model.MutationPlan, error) {
	m, ok := snap.Monitor(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if !m.IsActive {
		return nil, fmt.Errorf("%w: %s is disconnected", ErrDeviceUnavailable, m.Label())
	}

	plan := newPlan("")
	if !m.IsEnabled {
		plan.Mutations = append(plan.Mutations, mutation(model.MutationEnableMonitor, m))
	}
	if !m.IsPrimary || !m.IsEnabled {
		plan.Mutations = append(plan.Mutations, mutation(model.MutationSetPrimary, m))
	}
	return plan, nil
}

// PlanDefaultOutput plans making one endpoint the default output
func PlanDefaultOutput(snap *model.Snapshot, id model.DeviceIdentity) (*model.MutationPlan, error) {
	device, ok := snap.AudioDevice(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if reason := unavailableReason(device); reason != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrDeviceUnavailable, device.Label(), reason)
	}

	plan := newPlan("")
	if !device.IsDefault {
		plan.Mutations = append(plan.Mutations, model.Mutation{
			Kind:     model.MutationSetDefaultOutput,
			Identity: device.Identity,
			OSHandle: device.OSHandle,
			Label:    device.Label(),
		})
	}
	return plan, nil
}

func unavailableReason(d model.AudioDeviceState) string {
	switch {
	case d.Type != model.AudioOutput:
		return "not an output device"
	case d.Ignored:
		return "device is ignored"
	case d.State != model.EndpointActive:
		return "device is " + string(d.State)
	}
	return ""
}

func newPlan(name string) *model.MutationPlan {
	return &model.MutationPlan{
		Profile:   name,
		Mutations: []model.Mutation{},
		Skipped:   []model.Skip{},
		Selection: []model.SelectionChange{},
	}
}

func mutation(kind model.MutationKind, m model.MonitorState) model.Mutation {
	return model.Mutation{Kind: kind, Identity: m.Identity, OSHandle: m.OSHandle, Label: m.Label()}
}

func skip(id model.DeviceIdentity, label string, reason model.SkipReason, detail string) model.Skip {
	return model.Skip{Identity: id, Label: label, Reason: reason, Detail: detail}
}

func profileLabel(pm model.ProfileMonitor) string {
	if pm.DisplayName != "" {
		return pm.DisplayName
	}
	return string(pm.Identity)
}
