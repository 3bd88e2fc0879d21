// Package metrics exposes session lifecycle counters in Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskdeck"

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionOps    *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	refreshReuse  prometheus.Counter
	tokenRejected *prometheus.CounterVec
}

// New registers the auth collectors plus the Go runtime and process
// collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "session_operations_total",
			Help:      "Session operations by name and outcome.",
		}, []string{"op", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "session_operation_duration_seconds",
			Help:      "Latency of session operations, password hashing included.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		refreshReuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refresh_token_reuse_detected_total",
			Help:      "Refresh attempts with a token id that was already rotated away or revoked.",
		}),
		tokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_rejected_total",
			Help:      "Tokens that failed verification, by failure kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.sessionOps,
		m.opDuration,
		m.refreshReuse,
		m.tokenRejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is exposed for tests and for callers registering extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveOp records one finished session operation.
func (m *Metrics) ObserveOp(op, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.sessionOps.WithLabelValues(op, outcome).Inc()
	m.opDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (m *Metrics) RefreshReuseDetected() {
	if m == nil {
		return
	}
	m.refreshReuse.Inc()
}

func (m *Metrics) TokenRejected(kind string) {
	if m == nil || kind == "" {
		return
	}
	m.tokenRejected.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
