package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the ticket core. Each
// Metrics owns its registry so independent instances can coexist in
// tests.
type Metrics struct {
	registry *prometheus.Registry

	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	rateLimited    prometheus.Counter
	duplicates     prometheus.Counter
	requestsTotal  *prometheus.CounterVec
}

// NewMetrics initializes and registers all instruments.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_actions_total",
			Help: "Ticket actions processed, by action and outcome code",
		}, []string{"action", "outcome"}),
		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_action_duration_seconds",
			Help:    "Wall time per ticket action, lock wait included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"action"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_rate_limited_total",
			Help: "Actions rejected by the admission gate",
		}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_duplicate_creations_total",
			Help: "Creations refused by the idempotency guard",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
	}
	registry.MustRegister(collectors.NewGoCollector())
	return m
}

// RecordAction counts a completed ticket action.
func (m *Metrics) RecordAction(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
	m.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordRateLimited counts an admission rejection.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// RecordDuplicateCreation counts a guard rejection.
func (m *Metrics) RecordDuplicateCreation() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// RecordRequest counts an HTTP request.
func (m *Metrics) RecordRequest(method, path, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
}

// Handler exposes the registry for the metrics side listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
