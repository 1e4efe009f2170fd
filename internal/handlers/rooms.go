package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/volkanakbulut73/sohbetchat/internal/chat"
	"github.com/volkanakbulut73/sohbetchat/internal/metrics"
	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// RoomSummary is a room without its message backlog, for the tab strip.
type RoomSummary struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Topic         string               `json:"topic"`
	Type          models.RoomType      `json:"type"`
	Participants  []models.Participant `json:"participants"`
	LastMessageAt int64                `json:"last_message_at"`
	HasAlert      bool                 `json:"has_alert"`
	Active        bool                 `json:"active"`
}

// RoomsResponse is the room list response.
type RoomsResponse struct {
	Rooms   []RoomSummary       `json:"rooms"`
	Loading models.LoadingState `json:"loading"`
}

// ListRooms returns all rooms in tab order with the typing indicator.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	activeID := h.registry.ActiveID()

	rooms := h.registry.Rooms()
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, RoomSummary{
			ID:            room.ID,
			Name:          room.Name,
			Topic:         room.Topic,
			Type:          room.Type,
			Participants:  room.Participants,
			LastMessageAt: room.LastMessageAt,
			HasAlert:      room.HasAlert,
			Active:        room.ID == activeID,
		})
	}

	h.JSON(w, http.StatusOK, RoomsResponse{
		Rooms:   summaries,
		Loading: h.engine.Loading(),
	})
}

// RoomMessagesResponse is the message history response.
type RoomMessagesResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []models.Message `json:"messages"`
}

// GetRoomMessages returns a room's cached messages with blocked senders
// filtered out.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := pathParam(r, "id")

	msgs, err := h.registry.VisibleMessages(roomID)
	if err != nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	h.JSON(w, http.StatusOK, RoomMessagesResponse{RoomID: roomID, Messages: msgs})
}

// PostMessageRequest is the send-message request body.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// PostMessageResponse is the send-message response.
type PostMessageResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PostMessage writes a user message through the store. The local cache is
// not mutated here; the sync engine picks the record up like any other,
// so a failed send never leaves phantom local state. On success the bot
// trigger policy runs for the room.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	roomID := pathParam(r, "id")

	room, ok := h.registry.Room(roomID)
	if !ok {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(req.Text) > 4096 {
		h.Error(w, http.StatusUnprocessableEntity, "text too long (max 4096 bytes)")
		return
	}

	sender := h.registry.Self().Name
	msg, err := h.msgStore.Insert(r.Context(), sender, req.Text, models.MessageUser, room.Name)
	if err != nil {
		h.StoreError(w, err)
		return
	}

	metrics.MessagesPosted.WithLabelValues(string(models.MessageUser)).Inc()

	// Fold the confirmed record in immediately instead of waiting a poll
	// tick; the id dedup makes the later fetch a no-op for this message.
	h.engine.PollChannel(r.Context(), room.Name)
	h.engine.TriggerBots(roomID)

	h.JSON(w, http.StatusCreated, PostMessageResponse{ID: msg.ID, Timestamp: msg.Timestamp})
}

// SwitchActiveRequest selects the focused room.
type SwitchActiveRequest struct {
	RoomID string `json:"room_id"`
}

// SwitchActive focuses a room and clears its alert.
func (h *Handler) SwitchActive(w http.ResponseWriter, r *http.Request) {
	var req SwitchActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.registry.SwitchActive(req.RoomID); err != nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"active": req.RoomID})
}

// StartPrivateRequest opens a private chat with a participant.
type StartPrivateRequest struct {
	ParticipantID string `json:"participant_id"`
}

// StartPrivate opens (or refocuses) the private room for the local user
// and the target participant.
func (h *Handler) StartPrivate(w http.ResponseWriter, r *http.Request) {
	var req StartPrivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target, ok := h.findParticipant(req.ParticipantID)
	if !ok {
		h.Error(w, http.StatusNotFound, "participant not found")
		return
	}

	room, err := h.registry.AddPrivateRoom(target)
	if err != nil {
		if errors.Is(err, chat.ErrSelfChat) {
			h.Error(w, http.StatusUnprocessableEntity, "cannot start a private chat with yourself")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	// Backfill any history the counterpart already wrote to this channel.
	h.engine.PollChannel(r.Context(), room.Name)

	h.JSON(w, http.StatusCreated, map[string]string{"room_id": room.ID})
}

// RemoveRoom closes a private room tab.
func (h *Handler) RemoveRoom(w http.ResponseWriter, r *http.Request) {
	roomID := pathParam(r, "id")

	if err := h.registry.RemovePrivateRoom(roomID); err != nil {
		h.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"removed": roomID})
}

// BlockParticipant hides a participant's messages from rendering.
func (h *Handler) BlockParticipant(w http.ResponseWriter, r *http.Request) {
	h.registry.Block(pathParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// UnblockParticipant re-shows a participant's messages.
func (h *Handler) UnblockParticipant(w http.ResponseWriter, r *http.Request) {
	h.registry.Unblock(pathParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// pathParam returns a decoded URL parameter. Room ids contain characters
// like '#' that arrive percent-encoded, and chi leaves params escaped.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// findParticipant searches all rooms for a participant by id.
func (h *Handler) findParticipant(id string) (models.Participant, bool) {
	for _, room := range h.registry.Rooms() {
		if p, ok := room.Participant(id); ok {
			return p, true
		}
	}
	return models.Participant{}, false
}
