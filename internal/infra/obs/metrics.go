package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide instrument set on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	outboxDispatched *prometheus.CounterVec
	outboxDepth      *prometheus.GaugeVec

	reconcileRuns      *prometheus.CounterVec
	reconcileConflicts *prometheus.CounterVec

	cacheEvents *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
			[]string{"route", "method", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Name: "http_request_duration_seconds",
				Help:    "HTTP request duration seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		outboxDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "outbox_events_total", Help: "Outbox dispatch outcomes."},
			[]string{"outcome"}, // sent|retried|poisoned
		),
		outboxDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "outbox_depth", Help: "Outbox events by status."},
			[]string{"status"},
		),
		reconcileRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "reconcile_runs_total", Help: "Reconciliation run outcomes."},
			[]string{"status"},
		),
		reconcileConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "reconcile_conflicts_total", Help: "Conflicts found by kind."},
			[]string{"kind"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets."},
			[]string{"cache", "event"},
		),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpLatency,
		m.outboxDispatched, m.outboxDepth,
		m.reconcileRuns, m.reconcileConflicts,
		m.cacheEvents,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func (m *Metrics) ObserveOutbox(outcome string) {
	if m == nil {
		return
	}
	m.outboxDispatched.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetOutboxDepth(status string, depth float64) {
	if m == nil {
		return
	}
	m.outboxDepth.WithLabelValues(status).Set(depth)
}

func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveConflict(kind string) {
	if m == nil {
		return
	}
	m.reconcileConflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveCache(cache, event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(cache, event).Inc()
}
