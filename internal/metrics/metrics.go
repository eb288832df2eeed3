package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the broker's Prometheus metrics on a private registry
// so repeated construction in tests never collides with globals.
type Metrics struct {
	// OAuthFlows counts completed connect attempts by service and outcome.
	OAuthFlows *prometheus.CounterVec
	// ProviderRequests counts outbound provider calls by operation and status.
	ProviderRequests *prometheus.CounterVec
	// HTTPRequestsTotal counts handled HTTP requests.
	HTTPRequestsTotal *prometheus.CounterVec
	// RequestLatency tracks HTTP request latency by path and method.
	RequestLatency *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers the broker metrics under the namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		OAuthFlows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oauth_flows_total",
				Help:      "Completed OAuth connect attempts by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Outbound provider calls by service, operation and status",
			},
			[]string{"service", "operation", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Handled HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"path", "method"},
		),
	}

	registry.MustRegister(m.OAuthFlows, m.ProviderRequests, m.HTTPRequestsTotal, m.RequestLatency)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOAuthFlow records a finished connect attempt.
func (m *Metrics) RecordOAuthFlow(service, outcome string) {
	m.OAuthFlows.WithLabelValues(service, outcome).Inc()
}

// RecordProviderRequest records an outbound provider call.
func (m *Metrics) RecordProviderRequest(service, operation, status string) {
	m.ProviderRequests.WithLabelValues(service, operation, status).Inc()
}

// RecordHTTPRequest records a handled request and its latency.
func (m *Metrics) RecordHTTPRequest(path, method, status string, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(path, method, status).Inc()
	m.RequestLatency.WithLabelValues(path, method).Observe(seconds)
}
