// Package metrics provides Prometheus metrics for Comet extraction runs.
//
// All metrics are registered automatically via promauto. Components record
// into the package-level collectors:
//
//	metrics.PagesFetched.WithLabelValues("order_hdr").Inc()
//	metrics.RecordsExtracted.WithLabelValues("order_hdr").Add(float64(len(page.Results)))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts pages fetched per entity.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_pages_fetched_total",
			Help: "Total number of pages fetched",
		},
		[]string{"entity"},
	)

	// RecordsExtracted counts records emitted per entity.
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_records_extracted_total",
			Help: "Total number of records extracted",
		},
		[]string{"entity"},
	)

	// Retries counts retried page fetches per entity and error type.
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_retries_total",
			Help: "Total number of retried page fetches",
		},
		[]string{"entity", "error_type"},
	)

	// ExtractionErrors counts stream-fatal errors per entity and error type.
	ExtractionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_extraction_errors_total",
			Help: "Total number of fatal extraction errors",
		},
		[]string{"entity", "error_type"},
	)

	// CacheHits counts metadata cache hits per namespace.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	// CacheMisses counts metadata cache misses per namespace.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comet_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	// CircuitState exposes the circuit breaker state per entity
	// (0 = closed, 1 = open, 2 = half-open).
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "comet_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"entity"},
	)

	// RequestLatency tracks upstream request latency.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comet_request_latency_seconds",
			Help:    "Upstream HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Timer measures a single operation latency.
type Timer struct {
	start  time.Time
	method string
}

// NewTimer starts a latency timer for the given request method.
func NewTimer(method string) *Timer {
	return &Timer{start: time.Now(), method: method}
}

// Stop observes the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	RequestLatency.WithLabelValues(t.method).Observe(elapsed.Seconds())
	return elapsed
}
