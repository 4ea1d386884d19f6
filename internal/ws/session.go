package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zainabzahid711/chat-app/internal/hub"
	"github.com/zainabzahid711/chat-app/internal/metrics"
	"github.com/zainabzahid711/chat-app/internal/store"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 4096

	// Outbound delivery buffer per connection.
	sendBuffer = 256
)

// defaultUser is used when an inbound frame carries no "user" field.
const defaultUser = "Anonymous"

// inboundFrame is the payload clients send over the live connection.
// Message is a pointer so a missing field is distinguishable from "".
type inboundFrame struct {
	Message *string `json:"message"`
	User    string  `json:"user"`
}

// outboundFrame is the payload broadcast to every member of a room.
type outboundFrame struct {
	ID        int64  `json:"id"`
	User      string `json:"user"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Room      int64  `json:"room"`
}

// errorFrame reports a failure to the offending connection only.
type errorFrame struct {
	Error string `json:"error"`
}

// session bridges one live connection to the store and the broadcast layer.
type session struct {
	roomID int64
	group  string
	conn   *websocket.Conn
	sub    *hub.Subscription
	store  store.DataStore
	broker hub.Broadcaster
	logger zerolog.Logger
}

// readLoop consumes inbound frames until the connection dies. A frame that
// fails to decode, or lacks the required "message" field, closes the
// connection (malformed input is fatal to the connection; well-formed frames
// that fail persistence report an error and leave the connection open).
// Leaving the room group and closing the connection run on every exit path.
func (s *session) readLoop(ctx context.Context) {
	defer func() {
		s.broker.Leave(s.group, s.sub)
		s.sub.Close()
		s.conn.Close()
		metrics.ConnectionsActive.Dec()
		s.logger.Info().Msg("connection closed")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.closeMalformed("invalid JSON payload")
			return
		}
		if frame.Message == nil {
			s.closeMalformed("missing required field: message")
			return
		}

		s.handleMessage(ctx, *frame.Message, frame.User)
	}
}

// handleMessage persists the message and, only after a successful commit,
// broadcasts it to the room group.
func (s *session) handleMessage(ctx context.Context, content, user string) {
	if user == "" {
		user = defaultUser
	}

	if _, err := s.store.GetOrCreateRoom(ctx, s.roomID); err != nil {
		s.logger.Error().Err(err).Msg("get or create room failed")
		s.sendError("failed to store message")
		return
	}

	msg, err := s.store.CreateMessage(ctx, s.roomID, user, content)
	if err != nil {
		s.logger.Error().Err(err).Msg("persist message failed")
		s.sendError("failed to store message")
		return
	}
	metrics.MessagesPosted.WithLabelValues("ws").Inc()

	payload, err := json.Marshal(outboundFrame{
		ID:        msg.ID,
		User:      msg.User,
		Content:   msg.Content,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
		Room:      msg.RoomID,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal outbound frame failed")
		return
	}

	if err := s.broker.Broadcast(ctx, s.group, payload); err != nil {
		s.logger.Error().Err(err).Msg("broadcast failed")
		s.sendError("failed to broadcast message")
	}
}

// sendError queues an error frame for this connection only.
func (s *session) sendError(msg string) {
	payload, err := json.Marshal(errorFrame{Error: msg})
	if err != nil {
		return
	}
	select {
	case s.sub.C <- payload:
	default:
	}
}

// closeMalformed sends a close frame explaining the protocol violation.
// writePump owns all ordinary writes on the connection; WriteControl is the
// one write that may be issued concurrently with it.
func (s *session) closeMalformed(reason string) {
	s.logger.Warn().Str("reason", reason).Msg("closing connection on malformed payload")
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInvalidFramePayloadData, reason),
		time.Now().Add(writeWait))
}

// writePump forwards broadcast payloads to the peer and keeps the connection
// alive with pings. It exits when the subscription is dropped or a write
// fails; closing the connection then unblocks readLoop.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload := <-s.sub.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-s.sub.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
