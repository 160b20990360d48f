// Package observability provides Prometheus metrics for the gateway.
//
// All recording methods are safe on a nil *Metrics, so components can be
// constructed without instrumentation in tests.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "community_gateway"

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	// GateDecisionsTotal counts gate decisions.
	// Labels: class (public, protected, auth), action (proceed, redirect_signin, redirect_authenticated)
	GateDecisionsTotal *prometheus.CounterVec

	// SessionRefreshesTotal counts refresh attempts by result (success, failure).
	SessionRefreshesTotal *prometheus.CounterVec

	// ChatRequestsTotal counts chat requests.
	// Labels: mode (predict, stream), outcome (completed, failed, cancelled, rejected)
	ChatRequestsTotal *prometheus.CounterVec

	// ActiveStreams tracks chat streams currently being relayed.
	ActiveStreams prometheus.Gauge

	// TimeToFirstTokenSeconds measures upstream latency to the first token.
	TimeToFirstTokenSeconds prometheus.Histogram

	// CacheLookupsTotal counts content cache lookups by result (hit, miss).
	CacheLookupsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// It panics on duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GateDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "gate",
				Name:      "decisions_total",
				Help:      "Authentication gate decisions by route class and action",
			},
			[]string{"class", "action"},
		),
		SessionRefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "gate",
				Name:      "session_refreshes_total",
				Help:      "Session refresh attempts by result",
			},
			[]string{"result"},
		),
		ChatRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "requests_total",
				Help:      "Chat requests by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		ActiveStreams: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "active_streams",
				Help:      "Chat streams currently being relayed",
			},
		),
		TimeToFirstTokenSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "time_to_first_token_seconds",
				Help:      "Time from request to first streamed token",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "content",
				Name:      "cache_lookups_total",
				Help:      "Content cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordGateDecision counts one gate decision.
func (m *Metrics) RecordGateDecision(class, action string) {
	if m == nil {
		return
	}
	m.GateDecisionsTotal.WithLabelValues(class, action).Inc()
}

// RecordRefresh counts one refresh attempt.
func (m *Metrics) RecordRefresh(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.SessionRefreshesTotal.WithLabelValues(result).Inc()
}

// RecordChat counts one finished chat request.
func (m *Metrics) RecordChat(mode, outcome string) {
	if m == nil {
		return
	}
	m.ChatRequestsTotal.WithLabelValues(mode, outcome).Inc()
}

// StreamStarted increments the active stream gauge and returns its decrement.
func (m *Metrics) StreamStarted() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveStreams.Inc()
	return m.ActiveStreams.Dec
}

// ObserveFirstToken records the latency to the first token.
func (m *Metrics) ObserveFirstToken(d time.Duration) {
	if m == nil {
		return
	}
	m.TimeToFirstTokenSeconds.Observe(d.Seconds())
}

// RecordCacheLookup counts a content cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}
