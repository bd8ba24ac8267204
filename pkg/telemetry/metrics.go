// Package telemetry exposes prometheus collectors for the feature
// providers: status transitions, quote requests and submissions. Hosts
// mount Handler on their metrics endpoint; everything else is wired in by
// the providers.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"walletkit/pkg/lifecycle"
)

// Metrics is a per-process metrics registry.
type Metrics struct {
	registry           *prometheus.Registry
	transitionsTotal   *prometheus.CounterVec
	quoteRequestsTotal *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
}

// New creates a registry with all collectors registered.
func New() *Metrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "walletkit_status_transitions_total",
		Help: "Total number of lifecycle status transitions",
	}, []string{"feature", "status"})

	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "walletkit_quote_requests_total",
		Help: "Total number of quote requests",
	}, []string{"feature", "result"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "walletkit_submissions_total",
		Help: "Total number of transaction submissions",
	}, []string{"feature", "result"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(transitions, quotes, submissions)

	return &Metrics{
		registry:           registry,
		transitionsTotal:   transitions,
		quoteRequestsTotal: quotes,
		submissionsTotal:   submissions,
	}
}

// Observer returns a lifecycle observer counting transitions for a feature.
func (m *Metrics) Observer(feature string) func(lifecycle.Status) {
	return func(s lifecycle.Status) {
		m.transitionsTotal.WithLabelValues(feature, string(s.StatusName)).Inc()
	}
}

// QuoteRequest records the outcome of one quote request.
func (m *Metrics) QuoteRequest(feature string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.quoteRequestsTotal.WithLabelValues(feature, result).Inc()
}

// Submission records the outcome of one submission attempt.
func (m *Metrics) Submission(feature string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.submissionsTotal.WithLabelValues(feature, result).Inc()
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
