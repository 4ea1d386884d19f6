package handlers

import "net/http"

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalRooms        int64  `json:"total_rooms"`
	TotalMessages     int64  `json:"total_messages"`
	ActiveConnections int    `json:"active_connections"`
	ActiveGroups      int    `json:"active_groups"`
	Instance          string `json:"instance,omitempty"`
}

// Stats returns aggregate counts from the store and live occupancy from the
// hub.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalRooms, err := h.store.CountRooms(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count rooms")
		return
	}

	totalMessages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	hubStats := h.hub.Stats()

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalRooms:        totalRooms,
		TotalMessages:     totalMessages,
		ActiveConnections: hubStats.Subscriptions,
		ActiveGroups:      hubStats.Groups,
		Instance:          h.instanceID,
	})
}
