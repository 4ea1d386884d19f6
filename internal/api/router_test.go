package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/zainabzahid711/chat-app/internal/api"
	"github.com/zainabzahid711/chat-app/internal/handlers"
	"github.com/zainabzahid711/chat-app/internal/hub"
	"github.com/zainabzahid711/chat-app/internal/store"
	"github.com/zainabzahid711/chat-app/internal/ws"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)

	logger := zerolog.Nop()
	chatHub := hub.NewHub(logger)
	h := handlers.NewHandler(st, chatHub, "test-instance")
	wsHandler := ws.NewHandler(st, chatHub, []string{"*"}, logger)

	srv := httptest.NewServer(api.NewRouter(logger, h, wsHandler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestCreateAndListRooms(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/rooms/", map[string]string{"name": "general"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created handlers.RoomResponse
	decode(t, resp, &created)
	if created.ID == 0 || created.Name != "general" || created.CreatedAt == "" {
		t.Fatalf("unexpected room: %+v", created)
	}

	listResp, err := http.Get(srv.URL + "/api/rooms/")
	if err != nil {
		t.Fatal(err)
	}
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", listResp.StatusCode)
	}

	var rooms []handlers.RoomResponse
	decode(t, listResp, &rooms)
	if len(rooms) != 1 || rooms[0].ID != created.ID {
		t.Fatalf("unexpected room list: %+v", rooms)
	}
}

func TestCreateRoomDuplicateName(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/rooms/", map[string]string{"name": "general"})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/rooms/", map[string]string{"name": "general"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	srv := newTestServer(t)

	for name, body := range map[string]interface{}{
		"empty name":   map[string]string{"name": ""},
		"blank name":   map[string]string{"name": "   "},
		"missing name": map[string]int{"x": 1},
	} {
		resp := postJSON(t, srv.URL+"/api/rooms/", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}

func TestCreateRoomRejectsNonJSONContentType(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/rooms/", "text/plain", bytes.NewReader([]byte("general")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}
}

func TestCreateAndListMessages(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/rooms/", map[string]string{"name": "general"})
	var room handlers.RoomResponse
	decode(t, resp, &room)

	msgURL := fmt.Sprintf("%s/api/rooms/%d/messages/", srv.URL, room.ID)

	for _, content := range []string{"first", "second"} {
		resp := postJSON(t, msgURL, map[string]string{"user": "alice", "content": content})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		var msg handlers.MessageResponse
		decode(t, resp, &msg)
		if msg.ID == 0 || msg.Room != room.ID || msg.User != "alice" || msg.Timestamp == "" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}

	listResp, err := http.Get(msgURL)
	if err != nil {
		t.Fatal(err)
	}
	var messages []handlers.MessageResponse
	decode(t, listResp, &messages)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "first" || messages[1].Content != "second" {
		t.Fatalf("messages out of order: %+v", messages)
	}
}

func TestMessageDefaultsUserToAnonymous(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/rooms/", map[string]string{"name": "general"})
	var room handlers.RoomResponse
	decode(t, resp, &room)

	resp = postJSON(t, fmt.Sprintf("%s/api/rooms/%d/messages/", srv.URL, room.ID),
		map[string]string{"content": "hi"})
	var msg handlers.MessageResponse
	decode(t, resp, &msg)
	if msg.User != "Anonymous" {
		t.Fatalf("expected Anonymous, got %q", msg.User)
	}
}

func TestMessagesAgainstNonexistentRoom(t *testing.T) {
	srv := newTestServer(t)

	listResp, err := http.Get(srv.URL + "/api/rooms/42/messages/")
	if err != nil {
		t.Fatal(err)
	}
	listResp.Body.Close()
	if listResp.StatusCode != http.StatusNotFound {
		t.Fatalf("list: expected 404, got %d", listResp.StatusCode)
	}

	resp := postJSON(t, srv.URL+"/api/rooms/42/messages/",
		map[string]string{"user": "alice", "content": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("create: expected 404, got %d", resp.StatusCode)
	}

	// No side effects: the failed create must not have registered a room.
	rowsResp, err := http.Get(srv.URL + "/api/rooms/")
	if err != nil {
		t.Fatal(err)
	}
	var rooms []handlers.RoomResponse
	decode(t, rowsResp, &rooms)
	if len(rooms) != 0 {
		t.Fatalf("expected no rooms, got %+v", rooms)
	}
}

func TestMessageValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/rooms/", map[string]string{"name": "general"})
	var room handlers.RoomResponse
	decode(t, resp, &room)

	resp = postJSON(t, fmt.Sprintf("%s/api/rooms/%d/messages/", srv.URL, room.ID),
		map[string]string{"user": "alice"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var health handlers.HealthResponse
	decode(t, resp, &health)
	if health.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", health.Status)
	}
	if health.Checks["database"].Status != "pass" {
		t.Fatalf("expected database check to pass: %+v", health.Checks)
	}
	if health.Instance != "test-instance" {
		t.Fatalf("expected instance id, got %q", health.Instance)
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/rooms/", map[string]string{"name": "general"})
	var room handlers.RoomResponse
	decode(t, resp, &room)
	resp = postJSON(t, fmt.Sprintf("%s/api/rooms/%d/messages/", srv.URL, room.ID),
		map[string]string{"content": "hi"})
	resp.Body.Close()

	statsResp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats handlers.StatsResponse
	decode(t, statsResp, &stats)
	if stats.TotalRooms != 1 || stats.TotalMessages != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ActiveConnections != 0 {
		t.Fatalf("expected no live connections, got %d", stats.ActiveConnections)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
