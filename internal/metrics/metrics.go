// Package metrics exposes Prometheus collectors for the aggregation service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// backendAttemptsTotal counts candidate outcomes per backend, labeled
	// with the selection-report outcome string.
	backendAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobradar_backend_attempts_total",
			Help: "Total candidate backend attempts, labeled by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobradar_records_total",
			Help: "Total normalized job records produced, labeled by backend.",
		},
		[]string{"backend"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobradar_cache_lookups_total",
			Help: "Response cache lookups, labeled by backend and result (hit/miss).",
		},
		[]string{"backend", "result"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobradar_fetch_duration_seconds",
			Help:    "Histogram of backend fetch latencies.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"backend"},
	)

	quotaUtilization = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobradar_quota_utilization_percent",
			Help: "Current monthly quota utilization per metered backend.",
		},
		[]string{"backend"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobradar_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies by route.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveAttempt records one candidate outcome.
func ObserveAttempt(backend, outcome string) {
	backendAttemptsTotal.WithLabelValues(backend, outcome).Inc()
}

// ObserveRecords adds the number of records a backend produced.
func ObserveRecords(backend string, n int) {
	recordsTotal.WithLabelValues(backend).Add(float64(n))
}

// ObserveCacheLookup records a cache hit or miss for a backend.
func ObserveCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(backend, result).Inc()
}

// ObserveFetchDuration records how long a backend fetch took.
func ObserveFetchDuration(backend string, d time.Duration) {
	fetchDurationSeconds.WithLabelValues(backend).Observe(d.Seconds())
}

// SetQuotaUtilization publishes the latest utilization percentage.
func SetQuotaUtilization(backend string, percent float64) {
	quotaUtilization.WithLabelValues(backend).Set(percent)
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
