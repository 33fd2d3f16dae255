package api

import (
	"net/http"
	"strings"

	"github.com/martinsuchenak/deskd/internal/log"
)

// listProfiles handles GET /api/profiles
func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.manager.GetProfiles()
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profiles)
}

// saveProfile handles POST /api/profiles
func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.manager.SaveProfile(r.Context(), req.Name)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// getProfile handles GET /api/profiles/{name}
func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.manager.GetProfile(r.PathValue("name"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// deleteProfile handles DELETE /api/profiles/{name}
func (h *Handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteProfile(r.PathValue("name")); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyProfile handles POST /api/profiles/{name}/apply. A partial apply is
// still a 200; the result names the failed mutation.
func (h *Handler) applyProfile(w http.ResponseWriter, r *http.Request) {
	result, err := h.manager.ApplyProfile(r.Context(), r.PathValue("name"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// planProfile handles GET /api/profiles/{name}/plan
func (h *Handler) planProfile(w http.ResponseWriter, r *http.Request) {
	plan, err := h.manager.PreviewProfile(r.Context(), r.PathValue("name"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

// listSchedules handles GET /api/schedules
func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.manager.ListSchedules()
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, schedules)
}

// createSchedule handles POST /api/schedules
func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileName string `json:"profile_name"`
		Spec        string `json:"spec"`
		Enabled     *bool  `json:"enabled"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Spec) == "" {
		h.writeError(w, http.StatusBadRequest, "spec is required")
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	sched, err := h.manager.CreateSchedule(req.ProfileName, req.Spec, enabled)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sched)
}

// deleteSchedule handles DELETE /api/schedules/{id}
func (h *Handler) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteSchedule(r.PathValue("id")); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// importLegacy handles POST /api/import
func (h *Handler) importLegacy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir string `json:"dir"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Dir == "" {
		h.writeError(w, http.StatusBadRequest, "dir is required")
		return
	}

	report, err := h.manager.ImportLegacy(r.Context(), req.Dir)
	if err != nil {
		h.handleError(w, err)
		return
	}
	log.Info("Legacy import finished", "dir", req.Dir, "nicknames", report.Nicknames, "ignored", report.Ignored)
	h.writeJSON(w, http.StatusOK, report)
}
