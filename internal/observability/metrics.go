package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusError is the status label used when no HTTP response was received.
const statusError = "error"

// Lookup results recorded by the request deduplication cache.
const (
	LookupHit    = "hit"
	LookupMiss   = "miss"
	LookupBypass = "bypass"
)

// Retry outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the API client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retryAttempts   *prometheus.CounterVec
	retryOutcomes   *prometheus.CounterVec
	dedupLookups    *prometheus.CounterVec
	dedupEvictions  prometheus.Counter
	dedupEntries    prometheus.Gauge
	storeOperations *prometheus.CounterVec
	circuitBreaker  *prometheus.GaugeVec
	rateLimitWaits  prometheus.Histogram
	fallbackServed  *prometheus.CounterVec
	buildInfo       *prometheus.GaugeVec
	registry        *prometheus.Registry
}

// NewMetrics creates a new Metrics instance on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "restroommap"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of outgoing API requests",
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Outgoing API request duration in seconds",
			Buckets: []float64{
				.005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route"},
	)

	m.retryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total number of retries scheduled",
		},
		[]string{"operation"},
	)

	m.retryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "outcomes_total",
			Help:      "Final outcome of retried operations",
		},
		[]string{"operation", "result"},
	)

	m.dedupLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "lookups_total",
			Help:      "Request deduplication cache lookups by result",
		},
		[]string{"result"},
	)

	m.dedupEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "evictions_total",
			Help:      "Total number of expired deduplication entries",
		},
	)

	m.dedupEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "entries",
			Help:      "Current number of deduplication entries",
		},
	)

	m.storeOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Snapshot store operations",
		},
		[]string{"backend", "operation", "result"},
	)

	m.circuitBreaker = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	m.rateLimitWaits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for the client rate limiter",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	m.fallbackServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "fallback_responses_total",
			Help:      "Responses served from snapshot or empty fallback",
		},
		[]string{"operation", "source"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.registerCollectors()

	return m
}

// registerCollectors registers all metric collectors with the
// Prometheus registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.retryAttempts,
		m.retryOutcomes,
		m.dedupLookups,
		m.dedupEvictions,
		m.dedupEntries,
		m.storeOperations,
		m.circuitBreaker,
		m.rateLimitWaits,
		m.fallbackServed,
		m.buildInfo,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)
}

// RecordRequest records a completed outgoing request. A status of 0
// means the request failed before a response was received.
// The route parameter should be a path template, not the raw path.
func (m *Metrics) RecordRequest(
	method, route string,
	status int,
	duration time.Duration,
) {
	if m == nil {
		return
	}
	statusStr := statusError
	if status > 0 {
		statusStr = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(method, route, statusStr).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRetryAttempt records a scheduled retry for an operation.
func (m *Metrics) RecordRetryAttempt(operation string) {
	if m == nil {
		return
	}
	m.retryAttempts.WithLabelValues(operation).Inc()
}

// RecordRetryOutcome records the final result of a retried operation.
func (m *Metrics) RecordRetryOutcome(operation string, err error) {
	if m == nil {
		return
	}
	result := OutcomeSuccess
	if err != nil {
		result = OutcomeFailure
	}
	m.retryOutcomes.WithLabelValues(operation, result).Inc()
}

// RecordDedupLookup records a deduplication cache lookup.
func (m *Metrics) RecordDedupLookup(result string) {
	if m == nil {
		return
	}
	m.dedupLookups.WithLabelValues(result).Inc()
}

// RecordDedupEviction records an expired deduplication entry.
func (m *Metrics) RecordDedupEviction() {
	if m == nil {
		return
	}
	m.dedupEvictions.Inc()
}

// SetDedupEntries sets the current number of deduplication entries.
func (m *Metrics) SetDedupEntries(n int) {
	if m == nil {
		return
	}
	m.dedupEntries.Set(float64(n))
}

// RecordStoreOperation records a snapshot store operation.
func (m *Metrics) RecordStoreOperation(backend, operation, result string) {
	if m == nil {
		return
	}
	m.storeOperations.WithLabelValues(backend, operation, result).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.circuitBreaker.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimitWait records time spent blocked on the rate limiter.
func (m *Metrics) RecordRateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWaits.Observe(d.Seconds())
}

// RecordFallback records a response served from a fallback source.
func (m *Metrics) RecordFallback(operation, source string) {
	if m == nil {
		return
	}
	m.fallbackServed.WithLabelValues(operation, source).Inc()
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
