// Package observability provides Prometheus metrics and OpenTelemetry tracing setup.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/mindprobe/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mindprobe"

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	sessionsStarted   prometheus.Counter
	sessionsFinished  *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	followUps         *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	reveals           *prometheus.CounterVec
	protocolErrors    *prometheus.CounterVec
	rateLimited       prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on a fresh registry
// together with the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(reg, reg)
}

func newMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of websocket sessions started",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of sessions finished, by final phase and choice",
		}, []string{"phase", "choice"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live websocket sessions",
		}),
		followUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_ups_total",
			Help:      "Total number of follow-up questions emitted, by trigger style and fallback",
		}, []string{"style", "fallback"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Text generation call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		reveals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reveals_total",
			Help:      "Total number of personality reveals, by category",
		}, []string{"category"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of error messages sent to peers, by kind",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of websocket upgrades rejected by the rate limiter",
		}),
		gatherer: gatherer,
	}
	reg.MustRegister(
		m.sessionsStarted,
		m.sessionsFinished,
		m.activeSessions,
		m.followUps,
		m.generationLatency,
		m.reveals,
		m.protocolErrors,
		m.rateLimited,
	)
	return m
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SessionStarted records a new live session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

// SessionFinished records a session end.
func (m *Metrics) SessionFinished(phase domain.Phase, choice string) {
	if m == nil {
		return
	}
	if choice == "" {
		choice = "none"
	}
	m.activeSessions.Dec()
	m.sessionsFinished.WithLabelValues(string(phase), choice).Inc()
}

// FollowUpGenerated records an emitted follow-up.
func (m *Metrics) FollowUpGenerated(style domain.TriggerStyle, fallback bool) {
	if m == nil {
		return
	}
	m.followUps.WithLabelValues(string(style), strconv.FormatBool(fallback)).Inc()
}

// ObserveGeneration records a text generation call.
func (m *Metrics) ObserveGeneration(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationLatency.WithLabelValues(status).Observe(d.Seconds())
}

// RevealBuilt records a reveal for category.
func (m *Metrics) RevealBuilt(category domain.Category) {
	if m == nil {
		return
	}
	m.reveals.WithLabelValues(string(category)).Inc()
}

// ProtocolError records an error message sent to a peer.
func (m *Metrics) ProtocolError(kind string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(kind).Inc()
}

// RateLimited records a rejected upgrade.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
