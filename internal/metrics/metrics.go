// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metabuild_cache_lookups_total",
			Help: "Cache lookups by cache and result source",
		},
		[]string{"cache", "source"}, // source: cache, provider, provider_forced, stale_cache, error
	)

	HotRefreshResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metabuild_hot_refresh_results_total",
			Help: "Per-hero outcomes of the hot hero refresh job",
		},
		[]string{"status"},
	)

	// Upstream provider metrics
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metabuild_provider_request_duration_seconds",
			Help:    "Duration of upstream statistics provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Engine metrics
	RuleAdjustments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metabuild_rule_adjustments_total",
			Help: "Rule adjustments applied to builds",
		},
	)

	RulesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metabuild_rules_skipped_total",
			Help: "Rules skipped because their stored payload could not be decoded",
		},
	)

	PatchChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metabuild_patch_changes_total",
			Help: "Detected game patch changes",
		},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metabuild_http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metabuild_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metabuild_live_connections",
			Help: "Open live recommendation websocket connections",
		},
	)
)

// RecordProviderRequest observes one upstream call
func RecordProviderRequest(endpoint string, status int, started time.Time) {
	ProviderRequestDuration.WithLabelValues(endpoint, strconv.Itoa(status)).Observe(time.Since(started).Seconds())
}

// RecordHTTPRequest observes one served HTTP request
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
