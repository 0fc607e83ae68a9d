package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_stored_total",
		Help: "Total number of raw events committed to the event store.",
	})

	BatchesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_ingest_batches_accepted_total",
		Help: "Total number of ingestion batches committed.",
	})

	BatchesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_ingest_batches_rejected_total",
		Help: "Total number of rejected ingestion batches, labelled by reason.",
	}, []string{"reason"})

	DuplicateRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_duplicate_requests_total",
		Help: "Total number of batches refused because their idempotency token was already claimed.",
	})

	RollupRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_rollup_runs_total",
		Help: "Total number of completed rollup runs.",
	})

	RollupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_rollup_failures_total",
		Help: "Total number of rollup runs that ended in an error.",
	})

	RollupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analytics_rollup_duration_seconds",
		Help:    "Wall-clock duration of a single-day rollup run.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)
