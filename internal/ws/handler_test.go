package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zainabzahid711/chat-app/internal/api"
	"github.com/zainabzahid711/chat-app/internal/handlers"
	"github.com/zainabzahid711/chat-app/internal/hub"
	"github.com/zainabzahid711/chat-app/internal/models"
	"github.com/zainabzahid711/chat-app/internal/store"
	"github.com/zainabzahid711/chat-app/internal/ws"
)

type chatFrame struct {
	ID        int64  `json:"id"`
	User      string `json:"user"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Room      int64  `json:"room"`
	Error     string `json:"error"`
}

type testEnv struct {
	srv *httptest.Server
	hub *hub.Hub
}

func newTestEnv(t *testing.T) *testEnv {
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

	return &testEnv{srv: srv, hub: chatHub}
}

func (e *testEnv) wsURL(roomID int64) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + fmt.Sprintf("/ws/chat/%d/", roomID)
}

func (e *testEnv) dial(t *testing.T, roomID int64) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(roomID), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForSubscriptions blocks until the hub sees n live subscriptions; the
// upgrade response arrives at the client slightly before the server joins
// the group.
func (e *testEnv) waitForSubscriptions(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.hub.Stats().Subscriptions == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d subscriptions, have %d", n, e.hub.Stats().Subscriptions)
}

func readFrame(t *testing.T, conn *websocket.Conn) chatFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame chatFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame interface{}) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatal(err)
	}
}

func TestTwoClientsBothReceiveBroadcast(t *testing.T) {
	env := newTestEnv(t)

	clientA := env.dial(t, 5)
	clientB := env.dial(t, 5)
	env.waitForSubscriptions(t, 2)

	sendFrame(t, clientA, map[string]string{"message": "hi", "user": "alice"})

	for name, conn := range map[string]*websocket.Conn{"A": clientA, "B": clientB} {
		frame := readFrame(t, conn)
		if frame.ID != 1 || frame.User != "alice" || frame.Content != "hi" || frame.Room != 5 {
			t.Fatalf("client %s: unexpected frame %+v", name, frame)
		}
		if _, err := time.Parse(time.RFC3339Nano, frame.Timestamp); err != nil {
			t.Fatalf("client %s: bad timestamp %q: %v", name, frame.Timestamp, err)
		}
	}

	// The message was persisted before the broadcast; the REST gateway sees it.
	resp, err := http.Get(env.srv.URL + "/api/rooms/5/messages/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var messages []handlers.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 || messages[0].User != "alice" || messages[0].Content != "hi" {
		t.Fatalf("unexpected persisted messages: %+v", messages)
	}
}

func TestBroadcastScopedToRoom(t *testing.T) {
	env := newTestEnv(t)

	in := env.dial(t, 1)
	out := env.dial(t, 2)
	env.waitForSubscriptions(t, 2)

	sendFrame(t, in, map[string]string{"message": "only room 1"})
	readFrame(t, in)

	_ = out.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := out.ReadMessage(); err == nil {
		t.Fatal("client in another room received the broadcast")
	}
}

func TestUserDefaultsToAnonymous(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t, 1)
	env.waitForSubscriptions(t, 1)

	sendFrame(t, conn, map[string]string{"message": "yo"})

	frame := readFrame(t, conn)
	if frame.User != "Anonymous" {
		t.Fatalf("expected Anonymous, got %q", frame.User)
	}
}

func TestDisconnectedClientReceivesNoFurtherBroadcasts(t *testing.T) {
	env := newTestEnv(t)

	clientA := env.dial(t, 1)
	clientB := env.dial(t, 1)
	env.waitForSubscriptions(t, 2)

	clientB.Close()
	env.waitForSubscriptions(t, 1)

	sendFrame(t, clientA, map[string]string{"message": "bye", "user": "alice"})
	frame := readFrame(t, clientA)
	if frame.Content != "bye" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

// Malformed frames are fatal to the connection: the server responds with a
// close frame and tears the session down.
func TestMalformedFrameClosesConnection(t *testing.T) {
	env := newTestEnv(t)

	for name, raw := range map[string]string{
		"missing message":    `{"user":"mallory"}`,
		"non-string message": `{"message":42}`,
		"not JSON":           `hello`,
	} {
		conn := env.dial(t, 1)
		env.waitForSubscriptions(t, 1)

		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		if err == nil {
			t.Fatalf("%s: expected connection to close", name)
		}
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseInvalidFramePayloadData {
			t.Fatalf("%s: unexpected close code %d", name, closeErr.Code)
		}

		env.waitForSubscriptions(t, 0)
	}
}

// A malformed frame arriving while broadcasts are in flight must tear down
// only the offending connection; the close frame and the write pump share the
// connection concurrently.
func TestMalformedFrameDuringActiveBroadcasts(t *testing.T) {
	env := newTestEnv(t)

	sender := env.dial(t, 1)
	offender := env.dial(t, 1)
	env.waitForSubscriptions(t, 2)

	const burst = 40
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < burst; i++ {
			_ = sender.WriteJSON(map[string]string{"message": fmt.Sprintf("m%d", i), "user": "alice"})
		}
	}()

	if err := offender.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatal(err)
	}

	// Drain broadcasts already in flight to the offender until its close.
	_ = offender.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := offender.ReadMessage(); err != nil {
			break
		}
	}
	<-done

	// The sender is unaffected and receives the full burst.
	for received := 0; received < burst; received++ {
		frame := readFrame(t, sender)
		if frame.Content == "" {
			t.Fatalf("frame %d: unexpected payload %+v", received, frame)
		}
	}
}

func TestDisallowedOriginIsRejected(t *testing.T) {
	st, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)

	logger := zerolog.Nop()
	chatHub := hub.NewHub(logger)
	wsHandler := ws.NewHandler(st, chatHub, []string{"http://example.com"}, logger)

	r := chi.NewRouter()
	r.Get("/ws/chat/{roomID}/", wsHandler.ServeChat)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/1/"

	// Disallowed browser origin fails the handshake.
	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected handshake rejection, got %v", err)
	}

	// Allowed origin connects.
	header = http.Header{"Origin": []string{"http://example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
}

// failingStore simulates an unavailable persistence backend.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Close()                           {}
func (failingStore) Ping(context.Context) error       { return errStoreDown }
func (failingStore) CreateRoom(context.Context, string) (*models.Room, error) {
	return nil, errStoreDown
}
func (failingStore) GetRoom(context.Context, int64) (*models.Room, error) { return nil, errStoreDown }
func (failingStore) GetOrCreateRoom(context.Context, int64) (*models.Room, error) {
	return nil, errStoreDown
}
func (failingStore) ListRooms(context.Context) ([]models.Room, error) { return nil, errStoreDown }
func (failingStore) CountRooms(context.Context) (int64, error)        { return 0, errStoreDown }
func (failingStore) CreateMessage(context.Context, int64, string, string) (*models.Message, error) {
	return nil, errStoreDown
}
func (failingStore) ListMessages(context.Context, int64) ([]models.Message, error) {
	return nil, errStoreDown
}
func (failingStore) CountMessages(context.Context) (int64, error) { return 0, errStoreDown }

// A store failure is reported to the offending connection only and the
// connection stays open; nothing is broadcast.
func TestStoreFailureReportsErrorAndKeepsConnectionOpen(t *testing.T) {
	logger := zerolog.Nop()
	chatHub := hub.NewHub(logger)
	wsHandler := ws.NewHandler(failingStore{}, chatHub, []string{"*"}, logger)

	r := chi.NewRouter()
	r.Get("/ws/chat/{roomID}/", wsHandler.ServeChat)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/1/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	for i := 0; i < 2; i++ {
		sendFrame(t, conn, map[string]string{"message": "hi"})

		frame := readFrame(t, conn)
		if frame.Error == "" {
			t.Fatalf("attempt %d: expected error frame, got %+v", i, frame)
		}
		if frame.Content != "" || frame.ID != 0 {
			t.Fatalf("attempt %d: broadcast leaked through store failure: %+v", i, frame)
		}
	}
}
