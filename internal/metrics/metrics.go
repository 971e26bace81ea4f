// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus collectors for the aggregation core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Aggregation Prometheus metrics.
var (
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantengine",
			Name:      "source_requests_total",
			Help:      "Source fan-out calls by adapter and outcome",
		},
		[]string{"source", "outcome"}, // "ok" / "error"
	)

	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grantengine",
			Name:      "source_request_duration_seconds",
			Help:      "Source call duration in seconds, retries included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantengine",
			Name:      "retry_attempts_total",
			Help:      "Request attempts made against upstream sources",
		},
		[]string{"source"},
	)

	RecordsInvalidTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantengine",
			Name:      "records_invalid_total",
			Help:      "Upstream records rejected by validation",
		},
		[]string{"source"},
	)

	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantengine",
			Name:      "cache_requests_total",
			Help:      "Envelope cache lookups",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grantengine",
			Name:      "searches_total",
			Help:      "Orchestrated searches by outcome",
		},
		[]string{"outcome"}, // "ok" / "partial" / "all_failed" / "cache_hit"
	)
)

var registered bool

// Register registers the aggregation collectors. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(SourceRequestsTotal)
	prometheus.MustRegister(SourceRequestDuration)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(RecordsInvalidTotal)
	prometheus.MustRegister(CacheRequestsTotal)
	prometheus.MustRegister(SearchesTotal)
	registered = true
}
