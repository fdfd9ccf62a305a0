// ABOUTME: Prometheus collectors for the huddle gateway
// ABOUTME: HTTP, websocket, chat event and relay metrics registered via promauto

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huddle_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huddle_ws_connections",
			Help: "Open websocket connections",
		},
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_ws_frames_dropped_total",
			Help: "Outbound frames dropped for slow consumers",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_ws_rate_limited_total",
			Help: "Inbound events refused by the per-connection rate limiter",
		},
	)

	// Chat metrics
	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_events_total",
			Help: "Inbound chat events by name and outcome",
		},
		[]string{"event", "outcome"}, // outcome: "ok", "policy", "error"
	)

	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huddle_event_duration_seconds",
			Help:    "Inbound chat event handling duration",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .5},
		},
		[]string{"event"},
	)

	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_messages_relayed_total",
			Help: "Encrypted envelopes persisted and fanned out",
		},
	)

	PresenceExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_presence_expired_total",
			Help: "Presence entries removed by heartbeat timeout",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huddle_online_users",
			Help: "Users with a presence entry",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huddle_active_rooms",
			Help: "Rooms with at least one member",
		},
	)
)
