package mcp

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paularlott/mcp"

	"github.com/martinsuchenak/deskd/internal/engine"
	"github.com/martinsuchenak/deskd/internal/identity"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/manager"
	"github.com/martinsuchenak/deskd/internal/profile"
	"github.com/martinsuchenak/deskd/internal/registry"
	"github.com/martinsuchenak/deskd/internal/storage"
)

const serverVersion = "1.0.0"

// Server exposes the device manager as MCP tools
type Server struct {
	mcpServer   *mcp.Server
	manager     *manager.Manager
	bearerToken string
}

// NewServer creates a new MCP server over a manager
func NewServer(m *manager.Manager, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("deskd", serverVersion),
		manager:     m,
		bearerToken: bearerToken,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	// Monitors
	s.mcpServer.RegisterTool(
		mcp.NewTool("monitor_list", "List monitors with their identity, nickname, primary and enabled state",
			mcp.String("refresh", "Re-enumerate monitors first (true/false)"),
		),
		s.handleMonitorList,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("monitor_set_enabled", "Enable or disable a monitor. The primary monitor and the last enabled monitor cannot be disabled.",
			mcp.String("id", "Monitor identity", mcp.Required()),
			mcp.String("enabled", "true to enable, false to disable", mcp.Required()),
		),
		s.handleMonitorSetEnabled,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("monitor_set_primary", "Make a monitor the primary display, enabling it first if needed",
			mcp.String("id", "Monitor identity", mcp.Required()),
		),
		s.handleMonitorSetPrimary,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("monitor_set_nickname", "Set or clear the nickname of a monitor",
			mcp.String("id", "Monitor identity", mcp.Required()),
			mcp.String("nickname", "Nickname, empty to clear"),
		),
		s.handleMonitorSetNickname,
	)

	// Audio
	s.mcpServer.RegisterTool(
		mcp.NewTool("audio_list", "List audio endpoints, split into visible and ignored devices",
			mcp.String("refresh", "Re-enumerate audio endpoints first (true/false)"),
		),
		s.handleAudioList,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("audio_set_default", "Make an active output endpoint the default output device",
			mcp.String("id", "Audio device identity", mcp.Required()),
		),
		s.handleAudioSetDefault,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("audio_set_ignored", "Hide or unhide an audio endpoint",
			mcp.String("id", "Audio device identity", mcp.Required()),
			mcp.String("ignored", "true to ignore, false to unignore", mcp.Required()),
		),
		s.handleAudioSetIgnored,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("audio_set_nickname", "Set or clear the nickname of an audio endpoint",
			mcp.String("id", "Audio device identity", mcp.Required()),
			mcp.String("nickname", "Nickname, empty to clear"),
		),
		s.handleAudioSetNickname,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("audio_set_selected", "Add or remove an audio endpoint from the selected set. Ignored devices cannot be selected.",
			mcp.String("id", "Audio device identity", mcp.Required()),
			mcp.String("selected", "true to select, false to deselect", mcp.Required()),
		),
		s.handleAudioSetSelected,
	)

	// Profiles
	s.mcpServer.RegisterTool(
		mcp.NewTool("profile_list", "List saved profiles"),
		s.handleProfileList,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("profile_get", "Show the monitors and audio settings stored in a profile",
			mcp.String("name", "Profile name", mcp.Required()),
		),
		s.handleProfileGet,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("profile_save", "Save the current monitor and audio configuration as a profile, replacing any profile with the same name",
			mcp.String("name", "Profile name", mcp.Required()),
		),
		s.handleProfileSave,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("profile_apply", "Apply a saved profile to the connected devices",
			mcp.String("name", "Profile name", mcp.Required()),
		),
		s.handleProfileApply,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("profile_plan", "Show the changes applying a profile would make, without making them",
			mcp.String("name", "Profile name", mcp.Required()),
		),
		s.handleProfilePlan,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("profile_delete", "Delete a profile and its schedules",
			mcp.String("name", "Profile name", mcp.Required()),
		),
		s.handleProfileDelete,
	)

	// Schedules
	s.mcpServer.RegisterTool(
		mcp.NewTool("schedule_list", "List profile schedules"),
		s.handleScheduleList,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("schedule_create", "Apply a profile on a cron schedule",
			mcp.String("profile", "Profile name", mcp.Required()),
			mcp.String("spec", "Cron expression (e.g. '0 9 * * 1-5' or '@hourly')", mcp.Required()),
			mcp.String("enabled", "true or false, default true"),
		),
		s.handleScheduleCreate,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("schedule_delete", "Delete a schedule",
			mcp.String("id", "Schedule ID", mcp.Required()),
		),
		s.handleScheduleDelete,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("legacy_import", "Import nicknames and ignored devices from a legacy settings directory",
			mcp.String("dir", "Directory holding nicknames.json and ignore_list.json", mcp.Required()),
		),
		s.handleLegacyImport,
	)
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if s.bearerToken != "" {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			log.Warn("MCP request missing bearer token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing bearer token", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.bearerToken)) != 1 {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

// GetHTTPHandler returns the HTTP handler for the MCP server
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// LogStartup logs MCP server startup information
func (s *Server) LogStartup() {
	log.Info("MCP Server initialized", "version", serverVersion)
	if s.bearerToken != "" {
		log.Info("MCP authentication enabled", "type", "Bearer token")
	} else {
		log.Info("MCP authentication disabled")
	}
	tools := s.mcpServer.ListTools()
	log.Info("MCP tools registered", "count", len(tools))
	for _, tool := range tools {
		log.Debug("MCP tool registered", "name", tool.Name)
	}
}

// toolError turns a manager error into an MCP error. Caller mistakes are
// invalid params; everything else is internal.
func toolError(action string, err error) error {
	log.Warn("MCP tool failed", "action", action, "error", err)
	switch {
	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, profile.ErrInvalidName),
		errors.Is(err, profile.ErrEmptySnapshot),
		errors.Is(err, registry.ErrDeviceNotFound),
		errors.Is(err, registry.ErrDeviceIgnored),
		errors.Is(err, engine.ErrDeviceNotFound),
		errors.Is(err, engine.ErrDeviceUnavailable),
		errors.Is(err, engine.ErrInvalidPlan),
		errors.Is(err, engine.ErrPrimaryMonitor),
		errors.Is(err, identity.ErrNotPersistable),
		errors.Is(err, manager.ErrInvalidSchedule),
		errors.Is(err, storage.ErrScheduleNotFound):
		return mcp.NewToolErrorInvalidParams(fmt.Sprintf("%s: %v", action, err))
	}
	return mcp.NewToolErrorInternal(fmt.Sprintf("%s: %v", action, err))
}

func requireString(req *mcp.ToolRequest, name string) (string, error) {
	v, err := req.String(name)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", mcp.NewToolErrorInvalidParams(name + " is required")
	}
	return v, nil
}

func requireBool(req *mcp.ToolRequest, name string) (bool, error) {
	v, err := requireString(req, name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, mcp.NewToolErrorInvalidParams(name + " must be true or false")
	}
	return b, nil
}

func optionalBool(req *mcp.ToolRequest, name string, def bool) (bool, error) {
	v := strings.TrimSpace(req.StringOr(name, ""))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, mcp.NewToolErrorInvalidParams(name + " must be true or false")
	}
	return b, nil
}
