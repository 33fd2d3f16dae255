package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/paularlott/mcp"

	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
)

func (s *Server) handleMonitorList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	refresh, err := optionalBool(req, "refresh", false)
	if err != nil {
		return nil, err
	}

	var monitors []model.MonitorState
	if refresh {
		monitors, err = s.manager.RefreshMonitors(ctx)
	} else {
		monitors, err = s.manager.GetMonitors(ctx)
	}
	if err != nil {
		return nil, toolError("listing monitors", err)
	}
	if len(monitors) == 0 {
		return mcp.NewToolResponseText("No monitors found"), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Found %d monitors:\n\n", len(monitors))
	for _, m := range monitors {
		result.WriteString(formatMonitor(m))
		result.WriteString("\n")
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleMonitorSetEnabled(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	enabled, err := requireBool(req, "enabled")
	if err != nil {
		return nil, err
	}

	result, err := s.manager.SetMonitorEnabledState(ctx, model.DeviceIdentity(id), enabled)
	if err != nil {
		return nil, toolError("setting monitor state", err)
	}
	log.Info("MCP monitor enabled state set", "id", id, "enabled", enabled)
	return mcp.NewToolResponseText(formatResult(result)), nil
}

func (s *Server) handleMonitorSetPrimary(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}

	result, err := s.manager.SetMonitorPrimary(ctx, model.DeviceIdentity(id))
	if err != nil {
		return nil, toolError("setting primary monitor", err)
	}
	log.Info("MCP primary monitor set", "id", id)
	return mcp.NewToolResponseText(formatResult(result)), nil
}

func (s *Server) handleMonitorSetNickname(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}

	m, err := s.manager.SetMonitorNickname(ctx, model.DeviceIdentity(id), req.StringOr("nickname", ""))
	if err != nil {
		return nil, toolError("setting monitor nickname", err)
	}
	return mcp.NewToolResponseText(formatMonitor(*m)), nil
}

func (s *Server) handleAudioList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	refresh, err := optionalBool(req, "refresh", false)
	if err != nil {
		return nil, err
	}

	var audio *model.AudioPartition
	if refresh {
		audio, err = s.manager.RefreshAudioDevices(ctx)
	} else {
		audio, err = s.manager.GetAudioDevicesWithIgnoreStatus(ctx)
	}
	if err != nil {
		return nil, toolError("listing audio devices", err)
	}
	return mcp.NewToolResponseText(formatAudio(audio)), nil
}

func (s *Server) handleAudioSetDefault(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}

	result, err := s.manager.SetPrimaryOutputDevice(ctx, model.DeviceIdentity(id))
	if err != nil {
		return nil, toolError("setting default output", err)
	}
	log.Info("MCP default output set", "id", id)
	return mcp.NewToolResponseText(formatResult(result)), nil
}

func (s *Server) handleAudioSetIgnored(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	ignored, err := requireBool(req, "ignored")
	if err != nil {
		return nil, err
	}

	var audio *model.AudioPartition
	if ignored {
		audio, err = s.manager.IgnoreAudioDevice(ctx, model.DeviceIdentity(id))
	} else {
		audio, err = s.manager.UnignoreAudioDevice(ctx, model.DeviceIdentity(id))
	}
	if err != nil {
		return nil, toolError("updating ignore list", err)
	}
	return mcp.NewToolResponseText(formatAudio(audio)), nil
}

func (s *Server) handleAudioSetNickname(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}

	audio, err := s.manager.SetAudioDeviceNickname(ctx, model.DeviceIdentity(id), req.StringOr("nickname", ""))
	if err != nil {
		return nil, toolError("setting audio nickname", err)
	}
	return mcp.NewToolResponseText(formatAudio(audio)), nil
}

func (s *Server) handleAudioSetSelected(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	selected, err := requireBool(req, "selected")
	if err != nil {
		return nil, err
	}

	audio, err := s.manager.SetAudioDeviceSelected(ctx, model.DeviceIdentity(id), selected)
	if err != nil {
		return nil, toolError("updating selection", err)
	}
	return mcp.NewToolResponseText(formatAudio(audio)), nil
}

func (s *Server) handleProfileList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	profiles, err := s.manager.GetProfiles()
	if err != nil {
		return nil, toolError("listing profiles", err)
	}
	if len(profiles) == 0 {
		return mcp.NewToolResponseText("No profiles saved"), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Found %d profiles:\n", len(profiles))
	for _, p := range profiles {
		fmt.Fprintf(&result, "  - %s (%d monitors, updated %s)\n", p.Name, len(p.Monitors), p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleProfileGet(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return nil, err
	}

	p, err := s.manager.GetProfile(name)
	if err != nil {
		return nil, toolError("loading profile", err)
	}
	return mcp.NewToolResponseText(formatProfile(p)), nil
}

func (s *Server) handleProfileSave(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return nil, err
	}

	saved, err := s.manager.SaveProfile(ctx, name)
	if err != nil {
		return nil, toolError("saving profile", err)
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Profile %q saved\n\n", saved.Profile.Name)
	result.WriteString(formatProfile(saved.Profile))
	for _, w := range saved.Warnings {
		fmt.Fprintf(&result, "Warning: %s was not saved: %s\n", w.Label, w.Detail)
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleProfileApply(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return nil, err
	}

	result, err := s.manager.ApplyProfile(ctx, name)
	if err != nil {
		return nil, toolError("applying profile", err)
	}
	return mcp.NewToolResponseText(formatResult(result)), nil
}

func (s *Server) handleProfilePlan(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return nil, err
	}

	plan, err := s.manager.PreviewProfile(ctx, name)
	if err != nil {
		return nil, toolError("planning profile", err)
	}
	return mcp.NewToolResponseText(formatPlan(plan)), nil
}

func (s *Server) handleProfileDelete(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return nil, err
	}

	if err := s.manager.DeleteProfile(name); err != nil {
		return nil, toolError("deleting profile", err)
	}
	return mcp.NewToolResponseText(fmt.Sprintf("Profile %q deleted", name)), nil
}

func (s *Server) handleScheduleList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	schedules, err := s.manager.ListSchedules()
	if err != nil {
		return nil, toolError("listing schedules", err)
	}
	if len(schedules) == 0 {
		return mcp.NewToolResponseText("No schedules"), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Found %d schedules:\n", len(schedules))
	for _, sched := range schedules {
		fmt.Fprintf(&result, "  - %s: %s at %q enabled=%t", sched.ID, sched.ProfileName, sched.Spec, sched.Enabled)
		if sched.LastRun != nil {
			fmt.Fprintf(&result, " last=%s (%s)", sched.LastRun.Format("2006-01-02 15:04"), sched.LastStatus)
		}
		result.WriteString("\n")
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleScheduleCreate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := requireString(req, "profile")
	if err != nil {
		return nil, err
	}
	spec, err := requireString(req, "spec")
	if err != nil {
		return nil, err
	}
	enabled, err := optionalBool(req, "enabled", true)
	if err != nil {
		return nil, err
	}

	sched, err := s.manager.CreateSchedule(name, spec, enabled)
	if err != nil {
		return nil, toolError("creating schedule", err)
	}
	return mcp.NewToolResponseText(fmt.Sprintf("Schedule %s created: %s at %q", sched.ID, sched.ProfileName, sched.Spec)), nil
}

func (s *Server) handleScheduleDelete(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}

	if err := s.manager.DeleteSchedule(id); err != nil {
		return nil, toolError("deleting schedule", err)
	}
	return mcp.NewToolResponseText("Schedule deleted"), nil
}

func (s *Server) handleLegacyImport(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	dir, err := requireString(req, "dir")
	if err != nil {
		return nil, err
	}

	report, err := s.manager.ImportLegacy(ctx, dir)
	if err != nil {
		return nil, toolError("importing legacy settings", err)
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Imported %d nicknames and %d ignored devices\n", report.Nicknames, report.Ignored)
	for _, skip := range report.Skipped {
		fmt.Fprintf(&result, "Skipped %s %s: %s\n", skip.Kind, skip.Key, skip.Reason)
	}
	if len(report.Profiles) > 0 {
		fmt.Fprintf(&result, "Legacy profiles not imported, save them again: %s\n", strings.Join(report.Profiles, ", "))
	}
	return mcp.NewToolResponseText(result.String()), nil
}
