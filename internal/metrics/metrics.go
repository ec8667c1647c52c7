// Package metrics declares the Prometheus collectors of the ingest and search paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "semsearch"

var (
	// DocumentsIngested counts documents whose segments were all written.
	DocumentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "documents_total",
		Help:      "Total number of documents ingested",
	})

	// SegmentsIngested counts segment rows written together with their vector point.
	SegmentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "segments_total",
		Help:      "Total number of segments ingested",
	})

	// IngestRuns counts ingest runs.
	// Labels: result (success, error)
	IngestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Total number of ingest runs",
	}, []string{"result"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Duration of ingest runs in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	})

	// EmbedDuration tracks single-text embedding latency.
	EmbedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "duration_seconds",
		Help:      "Duration of embedding calls in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	// Searches counts resolver searches.
	// Labels: result (success, error)
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Total number of search requests",
	}, []string{"result"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "Duration of search requests in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// Result maps an error to the result label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
