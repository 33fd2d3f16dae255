package mcp

import (
	"fmt"
	"strings"

	"github.com/martinsuchenak/deskd/internal/model"
)

func formatMonitor(m model.MonitorState) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Name: %s\n", m.Label())
	fmt.Fprintf(&result, "ID: %s\n", m.Identity)
	if m.Nickname != "" && m.DisplayName != "" {
		fmt.Fprintf(&result, "Display: %s\n", m.DisplayName)
	}
	fmt.Fprintf(&result, "Primary: %t, Enabled: %t, Connected: %t\n", m.IsPrimary, m.IsEnabled, m.IsActive)
	if m.IsEnabled {
		fmt.Fprintf(&result, "Bounds: %dx%d at %d,%d\n", m.Bounds.Width, m.Bounds.Height, m.Bounds.X, m.Bounds.Y)
	}
	if !m.Persistable {
		result.WriteString("Note: no stable identity, nicknames and profiles will not stick\n")
	}
	return result.String()
}

func formatAudioDevice(a model.AudioDeviceState) string {
	flags := []string{string(a.Type), string(a.State)}
	if a.IsDefault {
		flags = append(flags, "default")
	}
	if a.Selected {
		flags = append(flags, "selected")
	}
	return fmt.Sprintf("  - %s [%s] (%s)\n", a.Label(), a.Identity, strings.Join(flags, ", "))
}

func formatAudio(p *model.AudioPartition) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Audio devices (%d):\n", len(p.Filtered))
	for _, a := range p.Filtered {
		result.WriteString(formatAudioDevice(a))
	}
	if len(p.Ignored) > 0 {
		fmt.Fprintf(&result, "Ignored (%d):\n", len(p.Ignored))
		for _, a := range p.Ignored {
			result.WriteString(formatAudioDevice(a))
		}
	}
	return result.String()
}

func formatProfile(p *model.Profile) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Profile: %s\n", p.Name)
	result.WriteString("Monitors:\n")
	for _, m := range p.Monitors {
		name := m.DisplayName
		if name == "" {
			name = string(m.Identity)
		}
		state := "disabled"
		if m.IsPrimary {
			state = "primary"
		} else if m.IsEnabled {
			state = "enabled"
		}
		fmt.Fprintf(&result, "  - %s [%s] %s\n", name, m.Identity, state)
	}
	if p.Audio.DefaultOutputDeviceID != "" {
		fmt.Fprintf(&result, "Default output: %s\n", p.Audio.DefaultOutputDeviceID)
	}
	if len(p.Audio.Selected) > 0 {
		ids := make([]string, len(p.Audio.Selected))
		for i, id := range p.Audio.Selected {
			ids[i] = string(id)
		}
		fmt.Fprintf(&result, "Selected audio: %s\n", strings.Join(ids, ", "))
	}
	return result.String()
}

func formatSkips(result *strings.Builder, skips []model.Skip) {
	for _, s := range skips {
		fmt.Fprintf(result, "Skipped %s: %s (%s)\n", s.Label, s.Reason, s.Detail)
	}
}

func formatPlan(plan *model.MutationPlan) string {
	var result strings.Builder
	if plan.IsEmpty() {
		result.WriteString("Nothing to change\n")
	}
	for i, m := range plan.Mutations {
		fmt.Fprintf(&result, "%d. %s\n", i+1, m)
	}
	for _, c := range plan.Selection {
		fmt.Fprintf(&result, "Set %s selected=%t\n", c.Label, c.Selected)
	}
	formatSkips(&result, plan.Skipped)
	return result.String()
}

func formatResult(r *model.ApplyResult) string {
	var result strings.Builder
	if r.Complete() {
		fmt.Fprintf(&result, "Applied %d changes\n", len(r.Applied))
	} else {
		fmt.Fprintf(&result, "Applied %d changes, then %s failed: %s\n", len(r.Applied), r.Failed.Mutation, r.Failed.Cause)
		fmt.Fprintf(&result, "%d changes were not attempted\n", len(r.Remaining))
	}
	for _, m := range r.Applied {
		fmt.Fprintf(&result, "  - %s\n", m)
	}
	formatSkips(&result, r.Skipped)
	return result.String()
}
