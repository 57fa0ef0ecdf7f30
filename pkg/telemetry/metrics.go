package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the operational counters for the scan engine. These are
// process telemetry, unrelated to the per-repository health metrics.
type Metrics struct {
	BackendScansTotal   *prometheus.CounterVec
	BackendScanDuration *prometheus.HistogramVec
	ConsolidationsTotal prometheus.Counter
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on a private registry so
// multiple instances can coexist in tests.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.BackendScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_backend_invocations_total",
			Help: "Backend invocations by backend name and outcome status",
		},
		[]string{"backend", "status"},
	)

	m.BackendScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_backend_duration_seconds",
			Help:    "Wall-clock duration of backend invocations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	m.ConsolidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_consolidations_total",
			Help: "Completed consolidation calls",
		},
	)

	m.CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_cache_hits_total",
			Help: "Result cache hits",
		},
	)

	m.CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_cache_misses_total",
			Help: "Result cache misses",
		},
	)

	m.registry.MustRegister(
		m.BackendScansTotal,
		m.BackendScanDuration,
		m.ConsolidationsTotal,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

// Handler exposes the collectors for a /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a blocking HTTP listener exposing /metrics.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
