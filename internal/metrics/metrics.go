// Package metrics exposes the Prometheus collectors tracking session count,
// broadcast back-pressure, store errors, and rate-limited frames.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors the server publishes.
type Registry struct {
	SessionsActive    prometheus.Gauge
	AcceptErrors      prometheus.Counter
	BroadcastDropped  prometheus.Counter
	StoreErrors       prometheus.Counter
	RateLimitedFrames prometheus.Counter
}

// NewRegistry creates and registers every collector.
func NewRegistry() *Registry {
	return &Registry{
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fridge_sessions_active",
			Help: "Number of live WebSocket sessions.",
		}),
		AcceptErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fridge_accept_errors_total",
			Help: "Total number of failed WebSocket upgrade handshakes.",
		}),
		BroadcastDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fridge_broadcast_dropped_total",
			Help: "Total number of change events dropped for a slow session subscriber.",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fridge_store_errors_total",
			Help: "Total number of unexpected store errors.",
		}),
		RateLimitedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fridge_rate_limited_frames_total",
			Help: "Total number of inbound frames dropped by the per-session rate limiter.",
		}),
	}
}

// Handler returns the HTTP handler Prometheus scrapes.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
