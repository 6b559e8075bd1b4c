// Package metrics exposes Prometheus instrumentation for the certificate
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcessedTotal counts completed pipeline runs by derived status
	ProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_processed_total",
		Help: "Completed certificate pipeline runs by derived status.",
	}, []string{"status"})

	// DecodeFailures counts runs aborted at the decoding stage
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "certificates_decode_failures_total",
		Help: "Pipeline runs rejected because the image could not be decoded.",
	})

	// DegradedRuns counts runs that completed with the layout fallback
	DegradedRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "certificates_degraded_runs_total",
		Help: "Runs that fell back to the fixed layout confidence.",
	})

	// DuplicateSubmissions counts uploads rejected by the fingerprint
	// uniqueness constraint
	DuplicateSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "certificates_duplicate_submissions_total",
		Help: "Uploads whose fingerprint already existed in the store.",
	})

	// ProcessingDuration observes wall-clock pipeline time in seconds
	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "certificate_processing_duration_seconds",
		Help:    "Wall-clock duration of certificate pipeline runs.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
)
