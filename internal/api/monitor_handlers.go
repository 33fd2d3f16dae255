package api

import (
	"net/http"

	"github.com/martinsuchenak/deskd/internal/log"
)

// listMonitors handles GET /api/monitors
func (h *Handler) listMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.manager.GetMonitors(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, monitors)
}

// refreshMonitors handles POST /api/monitors/refresh
func (h *Handler) refreshMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.manager.RefreshMonitors(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	log.Debug("Refreshed monitors", "count", len(monitors))
	h.writeJSON(w, http.StatusOK, monitors)
}

// setMonitorEnabled handles PUT /api/monitors/{id}/enabled
func (h *Handler) setMonitorEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		h.writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	id := deviceID(r)
	result, err := h.manager.SetMonitorEnabledState(r.Context(), id, *req.Enabled)
	if err != nil {
		h.handleError(w, err)
		return
	}
	log.Info("Monitor enabled state set", "id", id, "enabled", *req.Enabled)
	h.writeJSON(w, http.StatusOK, result)
}

// setMonitorPrimary handles POST /api/monitors/{id}/primary
func (h *Handler) setMonitorPrimary(w http.ResponseWriter, r *http.Request) {
	id := deviceID(r)
	result, err := h.manager.SetMonitorPrimary(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	log.Info("Primary monitor set", "id", id)
	h.writeJSON(w, http.StatusOK, result)
}

// setMonitorNickname handles PUT /api/monitors/{id}/nickname
func (h *Handler) setMonitorNickname(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	monitor, err := h.manager.SetMonitorNickname(r.Context(), deviceID(r), req.Nickname)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, monitor)
}
