package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the channel server.
type Metrics struct {
	registry                  *prometheus.Registry
	requestsTotal             prometheus.Counter
	manifestsSynthesizedTotal prometheus.Counter
	manifestsPassthroughTotal prometheus.Counter
	upstreamErrorsTotal       prometheus.Counter
	errorsTotal               prometheus.Counter
	activeChannels            prometheus.Gauge
}

// New creates and registers Prometheus metrics for the channel server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "looptv_requests_total",
		Help: "Total number of HTTP requests received",
	})
	manifestsSynthesizedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "looptv_manifests_synthesized_total",
		Help: "Total number of single-item manifests synthesized for raw media URLs",
	})
	manifestsPassthroughTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "looptv_manifests_passthrough_total",
		Help: "Total number of upstream manifests relayed unchanged",
	})
	upstreamErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "looptv_upstream_errors_total",
		Help: "Total number of failed upstream manifest fetches",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "looptv_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	activeChannels := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "looptv_active_channels",
		Help: "Number of channels with the active flag set",
	})

	registry.MustRegister(
		requestsTotal,
		manifestsSynthesizedTotal,
		manifestsPassthroughTotal,
		upstreamErrorsTotal,
		errorsTotal,
		activeChannels,
	)

	return &Metrics{
		registry:                  registry,
		requestsTotal:             requestsTotal,
		manifestsSynthesizedTotal: manifestsSynthesizedTotal,
		manifestsPassthroughTotal: manifestsPassthroughTotal,
		upstreamErrorsTotal:       upstreamErrorsTotal,
		errorsTotal:               errorsTotal,
		activeChannels:            activeChannels,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncManifestsSynthesized increments the synthesized manifest counter.
func (m *Metrics) IncManifestsSynthesized() {
	m.manifestsSynthesizedTotal.Inc()
}

// IncManifestsPassthrough increments the passthrough manifest counter.
func (m *Metrics) IncManifestsPassthrough() {
	m.manifestsPassthroughTotal.Inc()
}

// IncUpstreamErrors increments the upstream fetch failure counter.
func (m *Metrics) IncUpstreamErrors() {
	m.upstreamErrorsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetActiveChannels sets the active channels gauge.
func (m *Metrics) SetActiveChannels(n int) {
	m.activeChannels.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values
// (e.g. active channels).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
