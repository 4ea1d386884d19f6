// Package api wires the HTTP surface: REST endpoints, WebSocket upgrades,
// metrics, and the middleware chain.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zainabzahid711/chat-app/internal/api/middleware"
	"github.com/zainabzahid711/chat-app/internal/handlers"
	"github.com/zainabzahid711/chat-app/internal/ws"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, wsHandler *ws.Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", serveTestPage)
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// REST gateway
	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", h.ListRooms)
		r.Post("/", h.CreateRoom)

		r.Route("/{roomID}/messages", func(r chi.Router) {
			r.Get("/", h.ListMessages)
			r.Post("/", h.CreateMessage)
		})
	})

	// Live connection path
	r.Get("/ws/chat/{roomID}", wsHandler.ServeChat)
	r.Get("/ws/chat/{roomID}/", wsHandler.ServeChat)

	return r
}

// serveTestPage serves a minimal page for exercising the WebSocket endpoint
// by hand.
func serveTestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(testPage))
}

const testPage = `<!DOCTYPE html>
<html>
<head><title>chat-app test</title></head>
<body>
<h1>chat-app</h1>
<p>room <input id="room" value="1" size="4"> user <input id="user" value="Anonymous">
<button onclick="connect()">connect</button></p>
<p><input id="msg" size="40"> <button onclick="send()">send</button></p>
<pre id="log"></pre>
<script>
let ws = null;
function log(line) { document.getElementById('log').textContent += line + '\n'; }
function connect() {
  const room = document.getElementById('room').value;
  ws = new WebSocket('ws://' + location.host + '/ws/chat/' + room + '/');
  ws.onopen = () => log('connected to room ' + room);
  ws.onmessage = (e) => log(e.data);
  ws.onclose = () => log('disconnected');
}
function send() {
  if (!ws || ws.readyState !== WebSocket.OPEN) return;
  ws.send(JSON.stringify({message: document.getElementById('msg').value,
                          user: document.getElementById('user').value}));
  document.getElementById('msg').value = '';
}
</script>
</body>
</html>`
