// Package metrics exposes the SDK's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the SDK-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	aggregationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardalabs_sdk",
			Subsystem: "aggregator",
			Name:      "requests_total",
			Help:      "Total number of aggregation requests.",
		},
		[]string{"kind", "status"},
	)

	aggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cardalabs_sdk",
			Subsystem: "aggregator",
			Name:      "request_duration_seconds",
			Help:      "Duration of aggregation requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"kind"},
	)

	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardalabs_sdk",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of upstream provider calls.",
		},
		[]string{"provider", "success"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cardalabs_sdk",
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Duration of upstream provider calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"provider"},
	)

	cacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardalabs_sdk",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache lookups by outcome.",
		},
		[]string{"kind", "outcome"},
	)

	breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardalabs_sdk",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions.",
		},
		[]string{"provider", "to"},
	)
)

func init() {
	Registry.MustRegister(
		aggregationRequests,
		aggregationDuration,
		providerCalls,
		providerDuration,
		cacheOperations,
		breakerTransitions,
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordAggregation records one aggregation request.
func RecordAggregation(kind, status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	aggregationRequests.WithLabelValues(kind, status).Inc()
	aggregationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordProviderCall records one upstream call.
func RecordProviderCall(provider string, duration time.Duration, success bool) {
	result := "false"
	if success {
		result = "true"
	}
	providerCalls.WithLabelValues(provider, result).Inc()
	providerDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordCacheOutcome records one cache lookup outcome for a record kind.
func RecordCacheOutcome(kind string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheOperations.WithLabelValues(kind, outcome).Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(provider, to string) {
	breakerTransitions.WithLabelValues(provider, to).Inc()
}
