// Package ws implements the live connection path: WebSocket upgrade,
// per-connection sessions, and the bridge between client frames, the record
// store, and the broadcast layer.
package ws

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zainabzahid711/chat-app/internal/hub"
	"github.com/zainabzahid711/chat-app/internal/metrics"
	"github.com/zainabzahid711/chat-app/internal/store"
)

// Handler upgrades chat connections at /ws/chat/{roomID}/.
type Handler struct {
	store    store.DataStore
	broker   hub.Broadcaster
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	allowAll bool
	origins  map[string]struct{}
}

// NewHandler creates a WebSocket handler. allowedOrigins follows the CORS
// configuration: a list of origins, with "*" allowing all.
func NewHandler(st store.DataStore, broker hub.Broadcaster, allowedOrigins []string, logger zerolog.Logger) *Handler {
	h := &Handler{
		store:   st,
		broker:  broker,
		logger:  logger,
		origins: make(map[string]struct{}),
	}

	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			h.allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(origin); ok {
			h.origins[normalized] = struct{}{}
		} else {
			logger.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
		}
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// ServeChat handles a WebSocket upgrade for a room. The room identifier is
// taken from the route; a client may connect to a room id that has no stored
// Room yet — the room is created on its first message.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an error response.
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()

	connID := uuid.NewString()
	sess := &session{
		roomID: roomID,
		group:  hub.GroupName(roomID),
		conn:   conn,
		sub:    hub.NewSubscription(sendBuffer),
		store:  h.store,
		broker: h.broker,
		logger: h.logger.With().
			Str("conn_id", connID).
			Int64("room", roomID).
			Str("remote_addr", r.RemoteAddr).
			Logger(),
	}

	h.broker.Join(sess.group, sess.sub)
	h.logger.Info().Int64("room", roomID).Str("remote_addr", r.RemoteAddr).Msg("connection joined room")

	go sess.writePump()
	sess.readLoop(r.Context())
}

// checkOrigin enforces the configured origin list. Requests without an
// Origin header (non-browser clients) are allowed.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	if _, exists := h.origins[normalized]; exists {
		return true
	}

	h.logger.Warn().Str("origin", origin).Msg("blocked websocket connection from disallowed origin")
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
