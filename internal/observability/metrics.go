package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Variation decisions per experiment and how they were produced
//   - Provider fetch latency, outcomes and disk cache effectiveness
//   - HTTP request latency on the decision API
//   - Assignment store writes and janitor runs
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordDecision("myExp", "fresh", "2")
type Metrics struct {
	// DecisionCounter tracks variation decisions.
	// Labels: experiment_id, outcome (fresh|replayed|forced)
	DecisionCounter *prometheus.CounterVec

	// VariationCounter tracks which variation each decision landed on.
	// Labels: experiment_id, variation
	VariationCounter *prometheus.CounterVec

	// ProviderFetchCounter counts provider fetches.
	// Labels: status (success|error)
	ProviderFetchCounter *prometheus.CounterVec

	// ProviderFetchDuration measures provider fetch latency in seconds.
	// Labels: status (success|error)
	// Buckets: 0.01s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
	ProviderFetchDuration *prometheus.HistogramVec

	// ProviderCacheCounter counts disk cache lookups.
	// Labels: result (hit|miss)
	ProviderCacheCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// StoreWriteCounter counts assignment log writes.
	// Labels: status (success|error)
	StoreWriteCounter *prometheus.CounterVec

	// JanitorRunCounter counts janitor task runs.
	// Labels: task (cache_purge|store_purge), status (success|error)
	JanitorRunCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		DecisionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserve_decisions_total",
				Help: "Total number of variation decisions by experiment and outcome",
			},
			[]string{"experiment_id", "outcome"},
		),

		VariationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserve_variations_total",
				Help: "Total number of decisions per experiment and chosen variation",
			},
			[]string{"experiment_id", "variation"},
		),

		ProviderFetchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserve_provider_fetches_total",
				Help: "Total number of provider fetches by status",
			},
			[]string{"status"},
		),

		ProviderFetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splitserve_provider_fetch_duration_seconds",
				Help:    "Duration of provider fetches in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"status"},
		),

		ProviderCacheCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserve_provider_cache_lookups_total",
				Help: "Total number of provider disk cache lookups by result",
			},
			[]string{"result"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splitserve_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserve_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		StoreWriteCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserve_store_writes_total",
				Help: "Total number of assignment log writes by status",
			},
			[]string{"status"},
		),

		JanitorRunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitserve_janitor_runs_total",
				Help: "Total number of janitor task runs by task and status",
			},
			[]string{"task", "status"},
		),
	}
}

// RecordDecision records one variation decision.
//
// Example:
//
//	metrics.RecordDecision("myExp", "fresh", "2")
func (m *Metrics) RecordDecision(experimentID, outcome, variation string) {
	m.DecisionCounter.WithLabelValues(experimentID, outcome).Inc()
	m.VariationCounter.WithLabelValues(experimentID, variation).Inc()
}

// RecordProviderFetch records one provider fetch and its duration.
//
// Example:
//
//	start := time.Now()
//	// ... fetch from provider ...
//	metrics.RecordProviderFetch("success", time.Since(start).Seconds())
func (m *Metrics) RecordProviderFetch(status string, durationSeconds float64) {
	m.ProviderFetchCounter.WithLabelValues(status).Inc()
	m.ProviderFetchDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordProviderCache records one disk cache lookup.
func (m *Metrics) RecordProviderCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ProviderCacheCounter.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records metrics for an HTTP request.
//
// Example:
//
//	start := time.Now()
//	// ... handle HTTP request ...
//	metrics.RecordHTTPRequest("GET", "/v1/decide", "200", time.Since(start).Seconds())
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordStoreWrite records one assignment log write.
func (m *Metrics) RecordStoreWrite(status string) {
	m.StoreWriteCounter.WithLabelValues(status).Inc()
}

// RecordJanitorRun records one janitor task run.
//
// Example:
//
//	metrics.RecordJanitorRun("cache_purge", "success")
func (m *Metrics) RecordJanitorRun(task, status string) {
	m.JanitorRunCounter.WithLabelValues(task, status).Inc()
}
