package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zainabzahid711/chat-app/internal/metrics"
	"github.com/zainabzahid711/chat-app/internal/models"
	"github.com/zainabzahid711/chat-app/internal/store"
)

// CreateMessageRequest represents the message creation request. The room is
// supplied by the route, not the body.
type CreateMessageRequest struct {
	User    string `json:"user"`
	Content string `json:"content"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        int64  `json:"id"`
	Room      int64  `json:"room"`
	User      string `json:"user"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func messageResponse(msg *models.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		Room:      msg.RoomID,
		User:      msg.User,
		Content:   msg.Content,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func roomIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
}

// ListMessages handles GET /api/rooms/{roomID}/messages/. Messages are
// returned in creation-timestamp ascending order.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	room, err := h.store.GetRoom(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	resp := make([]MessageResponse, len(messages))
	for i := range messages {
		resp[i] = messageResponse(&messages[i])
	}

	h.JSON(w, http.StatusOK, resp)
}

// CreateMessage handles POST /api/rooms/{roomID}/messages/.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Content == "" {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.User == "" {
		req.User = "Anonymous"
	}

	msg, err := h.store.CreateMessage(r.Context(), roomID, req.User, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			h.Error(w, http.StatusNotFound, "room not found")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to create message")
		return
	}
	metrics.MessagesPosted.WithLabelValues("rest").Inc()

	h.JSON(w, http.StatusCreated, messageResponse(msg))
}
