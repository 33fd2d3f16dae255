package api

import (
	"net/http"

	"github.com/martinsuchenak/deskd/internal/log"
)

// listAudio handles GET /api/audio
func (h *Handler) listAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.manager.GetAudioDevicesWithIgnoreStatus(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, audio)
}

// refreshAudio handles POST /api/audio/refresh
func (h *Handler) refreshAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.manager.RefreshAudioDevices(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, audio)
}

// setDefaultOutput handles POST /api/audio/{id}/default
func (h *Handler) setDefaultOutput(w http.ResponseWriter, r *http.Request) {
	id := deviceID(r)
	result, err := h.manager.SetPrimaryOutputDevice(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	log.Info("Default output set", "id", id)
	h.writeJSON(w, http.StatusOK, result)
}

// ignoreAudio handles POST /api/audio/{id}/ignore
func (h *Handler) ignoreAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.manager.IgnoreAudioDevice(r.Context(), deviceID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, audio)
}

// unignoreAudio handles DELETE /api/audio/{id}/ignore
func (h *Handler) unignoreAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.manager.UnignoreAudioDevice(r.Context(), deviceID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, audio)
}

// setAudioNickname handles PUT /api/audio/{id}/nickname
func (h *Handler) setAudioNickname(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	audio, err := h.manager.SetAudioDeviceNickname(r.Context(), deviceID(r), req.Nickname)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, audio)
}

// setAudioSelected handles PUT /api/audio/{id}/selected
func (h *Handler) setAudioSelected(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selected *bool `json:"selected"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Selected == nil {
		h.writeError(w, http.StatusBadRequest, "selected is required")
		return
	}

	audio, err := h.manager.SetAudioDeviceSelected(r.Context(), deviceID(r), *req.Selected)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, audio)
}
