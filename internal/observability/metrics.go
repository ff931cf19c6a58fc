package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo archive API call rate by status. Watch for: error vs success ratio.
	ArchiveAPICallsTotal *prometheus.CounterVec

	// Archive API latency per request. Watch for: p95 > 2s (upstream degradation).
	ArchiveAPIDuration *prometheus.HistogramVec

	// Retry attempts against the archive API. High retries = unstable upstream.
	ArchiveAPIRetriesTotal prometheus.Counter

	// Zarr store metadata fetches by status.
	StoreMetadataFetchesTotal *prometheus.CounterVec

	// GDD computations served, labelled cached/uncached.
	GDDQueriesTotal *prometheus.CounterVec

	// Cache hits for GDD results. Hit rate = hits/(hits+misses).
	CacheHitsTotal *prometheus.CounterVec

	// Cache backend errors by operation and category.
	CacheErrorsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Circuit breaker state gauge: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ArchiveAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiveApiCallsTotal",
			Help: "Total number of Open-Meteo archive API calls",
		},
		[]string{"status"},
	)
	ArchiveAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archiveApiDurationSeconds",
			Help:    "Open-Meteo archive API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	ArchiveAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "archiveApiRetriesTotal",
			Help: "Total number of retry attempts for archive API calls",
		},
	)
	StoreMetadataFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeMetadataFetchesTotal",
			Help: "Total number of Zarr store metadata fetches",
		},
		[]string{"status"},
	)
	GDDQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gddQueriesTotal",
			Help: "Total number of GDD accumulations served",
		},
		[]string{"source"}, // cache | upstream
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits for GDD results",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ArchiveAPICallsTotal, ArchiveAPIDuration, ArchiveAPIRetriesTotal,
		StoreMetadataFetchesTotal,
		GDDQueriesTotal, CacheHitsTotal, CacheErrorsTotal,
		RateLimitDeniedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
	)
}

// RecordCircuitBreakerTransition records a breaker state change for metrics.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetCircuitBreakerStateGauge sets the current breaker state gauge.
func SetCircuitBreakerStateGauge(component string, state float64) {
	CircuitBreakerState.WithLabelValues(component).Set(state)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
