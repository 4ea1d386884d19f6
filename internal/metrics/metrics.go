package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatapp_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// WebSocket metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatapp_ws_connections_active",
			Help: "Currently open WebSocket connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_ws_connections_total",
			Help: "Total WebSocket connections accepted",
		},
	)

	// Business metrics
	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_messages_posted_total",
			Help: "Total messages persisted",
		},
		[]string{"source"}, // "ws" or "rest"
	)

	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_broadcasts_total",
			Help: "Total group broadcasts",
		},
	)

	BroadcastRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatapp_broadcast_recipients",
			Help:    "Connections reached per broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_broadcast_dropped_total",
			Help: "Subscriptions dropped for falling behind during broadcast",
		},
	)
)
