package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/martinsuchenak/deskd/internal/engine"
	"github.com/martinsuchenak/deskd/internal/identity"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/manager"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/martinsuchenak/deskd/internal/profile"
	"github.com/martinsuchenak/deskd/internal/registry"
	"github.com/martinsuchenak/deskd/internal/storage"
)

// Handler handles HTTP requests
type Handler struct {
	manager *manager.Manager
}

// NewHandler creates a new API handler
func NewHandler(m *manager.Manager) *Handler {
	return &Handler{manager: m}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Monitors
	mux.HandleFunc("GET /api/monitors", h.listMonitors)
	mux.HandleFunc("POST /api/monitors/refresh", h.refreshMonitors)
	mux.HandleFunc("PUT /api/monitors/{id}/enabled", h.setMonitorEnabled)
	mux.HandleFunc("POST /api/monitors/{id}/primary", h.setMonitorPrimary)
	mux.HandleFunc("PUT /api/monitors/{id}/nickname", h.setMonitorNickname)

	// Audio endpoints
	mux.HandleFunc("GET /api/audio", h.listAudio)
	mux.HandleFunc("POST /api/audio/refresh", h.refreshAudio)
	mux.HandleFunc("POST /api/audio/{id}/default", h.setDefaultOutput)
	mux.HandleFunc("POST /api/audio/{id}/ignore", h.ignoreAudio)
	mux.HandleFunc("DELETE /api/audio/{id}/ignore", h.unignoreAudio)
	mux.HandleFunc("PUT /api/audio/{id}/nickname", h.setAudioNickname)
	mux.HandleFunc("PUT /api/audio/{id}/selected", h.setAudioSelected)

	// Profiles
	mux.HandleFunc("GET /api/profiles", h.listProfiles)
	mux.HandleFunc("POST /api/profiles", h.saveProfile)
	mux.HandleFunc("GET /api/profiles/{name}", h.getProfile)
	mux.HandleFunc("DELETE /api/profiles/{name}", h.deleteProfile)
	mux.HandleFunc("POST /api/profiles/{name}/apply", h.applyProfile)
	mux.HandleFunc("GET /api/profiles/{name}/plan", h.planProfile)

	// Schedules
	mux.HandleFunc("GET /api/schedules", h.listSchedules)
	mux.HandleFunc("POST /api/schedules", h.createSchedule)
	mux.HandleFunc("DELETE /api/schedules/{id}", h.deleteSchedule)

	// Legacy settings import
	mux.HandleFunc("POST /api/import", h.importLegacy)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs the error and writes a generic 500 response
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal server error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// handleError maps manager errors to a status code. Anything not
// recognised is a 500 and its message is not sent to the client.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.internalError(w, err)
		return
	}
	log.Warn("Request failed", "status", status, "error", err)
	h.writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, registry.ErrDeviceNotFound),
		errors.Is(err, engine.ErrDeviceNotFound),
		errors.Is(err, storage.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDeviceIgnored):
		return http.StatusConflict
	case errors.Is(err, profile.ErrInvalidName),
		errors.Is(err, profile.ErrEmptySnapshot),
		errors.Is(err, profile.ErrUnsupportedSchema),
		errors.Is(err, engine.ErrInvalidPlan),
		errors.Is(err, engine.ErrPrimaryMonitor),
		errors.Is(err, engine.ErrDeviceUnavailable),
		errors.Is(err, identity.ErrNotPersistable),
		errors.Is(err, manager.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrMutationFailed),
		errors.Is(err, registry.ErrEnumeration):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads a JSON request body, writing a 400 on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func deviceID(r *http.Request) model.DeviceIdentity {
	return model.DeviceIdentity(r.PathValue("id"))
}
