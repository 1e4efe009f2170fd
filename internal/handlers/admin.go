package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/volkanakbulut73/sohbetchat/internal/metrics"
	"github.com/volkanakbulut73/sohbetchat/internal/models"
	"github.com/volkanakbulut73/sohbetchat/internal/store"
)

// RegistrationsResponse lists membership applications.
type RegistrationsResponse struct {
	Registrations []models.Registration `json:"registrations"`
	Total         int                   `json:"total"`
}

// ListRegistrations returns all applications, newest first.
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	if h.regs == nil {
		h.Error(w, http.StatusServiceUnavailable, "registrations not available on this backend")
		return
	}

	regs, err := h.regs.ListRegistrations(r.Context())
	if err != nil {
		h.StoreError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, RegistrationsResponse{Registrations: regs, Total: len(regs)})
}

// UpdateStatusRequest approves or rejects an application.
type UpdateStatusRequest struct {
	Status string `json:"status"` // "approved" or "rejected"
}

// UpdateRegistrationStatus moderates a membership application. Approval
// makes the member visible to rooms on the next roster sync.
func (h *Handler) UpdateRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	if h.regs == nil {
		h.Error(w, http.StatusServiceUnavailable, "registrations not available on this backend")
		return
	}

	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	status := models.RegistrationStatus(req.Status)
	if status != models.StatusApproved && status != models.StatusRejected {
		h.Error(w, http.StatusBadRequest, "status must be approved or rejected")
		return
	}

	if err := h.regs.UpdateRegistrationStatus(r.Context(), id, status); err != nil {
		if store.IsNotFound(err) {
			h.Error(w, http.StatusNotFound, "registration not found")
			return
		}
		h.StoreError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

// NotifyRequest broadcasts a system message.
type NotifyRequest struct {
	Channel string `json:"channel"` // channel name or "all"
	Text    string `json:"text"`
}

// Notify posts a system message to one channel or all channel rooms. The
// message flows through the normal store path and reaches every session
// via sync.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	var targets []string
	if req.Channel == "all" {
		for _, room := range h.registry.Rooms() {
			if room.Type == models.RoomChannel {
				targets = append(targets, room.Name)
			}
		}
	} else {
		if _, ok := h.registry.RoomByChannel(req.Channel); !ok {
			h.Error(w, http.StatusNotFound, "channel not found")
			return
		}
		targets = []string{req.Channel}
	}

	sent := 0
	for _, channel := range targets {
		if _, err := h.msgStore.Insert(r.Context(), "SYSTEM", req.Text, models.MessageSystem, channel); err != nil {
			h.log.Warn().Err(err).Str("channel", channel).Msg("broadcast failed")
			continue
		}
		metrics.MessagesPosted.WithLabelValues(string(models.MessageSystem)).Inc()
		sent++
	}

	if sent == 0 && len(targets) > 0 {
		h.Error(w, http.StatusBadGateway, "broadcast failed for all channels")
		return
	}

	h.JSON(w, http.StatusOK, map[string]int{"sent": sent})
}

// BotConfigResponse carries the bot personality prompt.
type BotConfigResponse struct {
	Personality string `json:"personality"`
}

// GetBotConfig returns the configured bot personality.
func (h *Handler) GetBotConfig(w http.ResponseWriter, r *http.Request) {
	if h.sysCfg == nil {
		h.Error(w, http.StatusServiceUnavailable, "bot config not available on this backend")
		return
	}

	personality, err := h.sysCfg.GetBotPersonality(r.Context())
	if err != nil {
		h.StoreError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, BotConfigResponse{Personality: personality})
}

// SetBotConfig stores a new bot personality.
func (h *Handler) SetBotConfig(w http.ResponseWriter, r *http.Request) {
	if h.sysCfg == nil {
		h.Error(w, http.StatusServiceUnavailable, "bot config not available on this backend")
		return
	}

	var req BotConfigResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Personality == "" {
		h.Error(w, http.StatusBadRequest, "personality is required")
		return
	}

	if err := h.sysCfg.SetBotPersonality(r.Context(), req.Personality); err != nil {
		h.StoreError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, BotConfigResponse{Personality: req.Personality})
}
