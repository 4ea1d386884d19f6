// Package chat provides a client for the chat-app REST and WebSocket APIs.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a chat-app API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new client for the server at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Room represents a room in API responses.
type Room struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// Message represents a message in API responses and broadcast frames.
type Message struct {
	ID        int64  `json:"id"`
	Room      int64  `json:"room"`
	User      string `json:"user"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// apiError is the server's structured error body.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListRooms fetches all rooms.
func (c *Client) ListRooms() ([]Room, error) {
	var rooms []Room
	if err := c.do(http.MethodGet, "/api/rooms/", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room with the given name.
func (c *Client) CreateRoom(name string) (*Room, error) {
	room := &Room{}
	err := c.do(http.MethodPost, "/api/rooms/", map[string]string{"name": name}, room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ListMessages fetches all messages in a room, oldest first.
func (c *Client) ListMessages(roomID int64) ([]Message, error) {
	var messages []Message
	path := "/api/rooms/" + strconv.FormatInt(roomID, 10) + "/messages/"
	if err := c.do(http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// PostMessage creates a message in a room via the REST gateway.
func (c *Client) PostMessage(roomID int64, user, content string) (*Message, error) {
	msg := &Message{}
	path := "/api/rooms/" + strconv.FormatInt(roomID, 10) + "/messages/"
	err := c.do(http.MethodPost, path, map[string]string{"user": user, "content": content}, msg)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// RoomConn is a live connection to one room.
type RoomConn struct {
	conn *websocket.Conn
}

// JoinRoom opens a WebSocket connection to the given room.
func (c *Client) JoinRoom(roomID int64) (*RoomConn, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/chat/" + strconv.FormatInt(roomID, 10) + "/"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &RoomConn{conn: conn}, nil
}

// Send posts a chat message over the live connection. An empty user is
// reported by the server as "Anonymous".
func (rc *RoomConn) Send(user, content string) error {
	frame := map[string]string{"message": content}
	if user != "" {
		frame["user"] = user
	}
	return rc.conn.WriteJSON(frame)
}

// Receive blocks until the next broadcast message arrives.
func (rc *RoomConn) Receive() (*Message, error) {
	msg := &Message{}
	if err := rc.conn.ReadJSON(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Close closes the live connection.
func (rc *RoomConn) Close() error {
	_ = rc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return rc.conn.Close()
}
