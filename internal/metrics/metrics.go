// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors are registered on an injected Registerer instead of the global
// default so tests can build as many Metrics as they like without
// "duplicate metrics collector registration" panics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "edulearn"

type Metrics struct {
	// HTTPRequests counts finished requests by method, chi route pattern and status.
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration observes request latency in seconds.
	HTTPDuration *prometheus.HistogramVec
	// AuthEvents counts register/login/logout/reset attempts by outcome.
	AuthEvents *prometheus.CounterVec
	// AICompletions counts provider calls by model and outcome.
	AICompletions *prometheus.CounterVec
	// JanitorDeleted counts rows removed by the cleanup job, by kind.
	JanitorDeleted *prometheus.CounterVec
	// RateLimited counts requests rejected by the per-IP limiter.
	RateLimited prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by type and outcome.",
		}, []string{"event", "outcome"}),

		AICompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_completions_total",
			Help:      "Chat completion calls by model and outcome.",
		}, []string{"model", "outcome"}),

		JanitorDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_deleted_total",
			Help:      "Expired rows removed by the janitor.",
		}, []string{"kind"}),

		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by the per-IP limiter.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.AuthEvents,
		m.AICompletions,
		m.JanitorDeleted,
		m.RateLimited,
	)
	return m
}

// Outcome labels shared by AuthEvents and AICompletions.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthEvent increments AuthEvents. Nil-safe so services can run without metrics.
func (m *Metrics) AuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// AICompletion increments AICompletions. Nil-safe.
func (m *Metrics) AICompletion(model, outcome string) {
	if m == nil {
		return
	}
	m.AICompletions.WithLabelValues(model, outcome).Inc()
}
