package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/zainabzahid711/chat-app/internal/models"
	"github.com/zainabzahid711/chat-app/internal/store"
)

// CreateRoomRequest represents the room creation request.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func roomResponse(room *models.Room) RoomResponse {
	return RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: room.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ListRooms handles GET /api/rooms/.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.ListRooms(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	resp := make([]RoomResponse, len(rooms))
	for i := range rooms {
		resp[i] = roomResponse(&rooms[i])
	}

	h.JSON(w, http.StatusOK, resp)
}

// CreateRoom handles POST /api/rooms/.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = sanitizeName(req.Name)
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	room, err := h.store.CreateRoom(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			h.Error(w, http.StatusConflict, "room name already exists")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	h.JSON(w, http.StatusCreated, roomResponse(room))
}
