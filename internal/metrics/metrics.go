// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	harvesterRunsTotal          *prometheus.CounterVec
	harvesterRunDurationSeconds prometheus.Histogram
	harvesterPagesTotal         *prometheus.CounterVec
	harvesterUpsertsTotal       *prometheus.CounterVec
	fetchDurationSeconds        *prometheus.HistogramVec
	rateLimitDelaySeconds       prometheus.Histogram
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Total number of crawl runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		harvesterRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_run_duration_seconds",
				Help:    "Histogram of crawl run wall-clock durations.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
			},
		)

		harvesterPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Total number of pages processed, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		harvesterUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_upserts_total",
				Help: "Total number of article upserts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by page kind.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 15, 45},
			},
			[]string{"kind"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveRun records a finished crawl run.
func ObserveRun(status string, elapsed time.Duration) {
	if harvesterRunsTotal == nil {
		return
	}
	harvesterRunsTotal.WithLabelValues(status).Inc()
	harvesterRunDurationSeconds.Observe(elapsed.Seconds())
}

// ObservePage records one processed page.
func ObservePage(kind, outcome string) {
	if harvesterPagesTotal == nil {
		return
	}
	harvesterPagesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveUpsert records one upsert outcome.
func ObserveUpsert(outcome string) {
	if harvesterUpsertsTotal == nil {
		return
	}
	harvesterUpsertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchDuration records a page fetch latency.
func ObserveFetchDuration(kind string, d time.Duration) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveRateLimitDelay records the delay introduced by the rate limiter.
func ObserveRateLimitDelay(d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest records a served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
