// Package metrics holds the Prometheus collectors shared across the
// transport, session, and HTTP layers: connection byte counters, the
// active-connections gauge, and per-variant message and per-route HTTP
// request counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector this module exports. A single instance
// is constructed at startup and threaded through to the transport and
// session layers; tests construct their own instance against a private
// registry so concurrent test runs never collide on prometheus' default
// registry.
type Metrics struct {
	BytesRead     prometheus.Counter
	BytesWritten  prometheus.Counter
	ActiveConns   prometheus.Gauge
	MessagesTotal *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
}

// New registers and returns a fresh Metrics bundle against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "parcel_bytes_read_total",
			Help: "Total bytes read from client connections.",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "parcel_bytes_written_total",
			Help: "Total bytes written to client connections.",
		}),
		ActiveConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parcel_active_connections",
			Help: "Number of currently open client connections.",
		}),
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_messages_total",
			Help: "Total messages processed, labeled by request variant.",
		}, []string{"variant"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_http_requests_total",
			Help: "Total admin HTTP requests, labeled by route and status class.",
		}, []string{"route", "status"}),
	}
}

// NewForTest builds a Metrics bundle against a private registry, safe for
// use in parallel tests.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}
