// Package metrics provides performance tracking and observability for
// datafeed using Prometheus metrics. It offers collectors for the feeding
// pipeline: rows fetched, epochs completed, batches assembled, and the
// state of the prefetch worker.
//
// Metrics are registered once at package load via promauto and are safe
// for concurrent recording.
//
// Example usage:
//
//	metrics.RowsFetched.WithLabelValues("csv").Inc()
//	metrics.PrefetchQueueDepth.Set(float64(len(queue)))
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsFetched counts rows produced by each source type.
	RowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datafeed",
			Name:      "rows_fetched_total",
			Help:      "Total rows produced, labeled by source type",
		},
		[]string{"source"},
	)

	// EpochsCompleted counts epoch boundaries emitted by each source type.
	EpochsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datafeed",
			Name:      "epochs_completed_total",
			Help:      "Total completed passes over the underlying dataset",
		},
		[]string{"source"},
	)

	// BatchesAssembled counts assembled batches, labeled full or partial.
	BatchesAssembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datafeed",
			Name:      "batches_assembled_total",
			Help:      "Total batches assembled, labeled by completeness",
		},
		[]string{"kind"},
	)

	// PrefetchQueueDepth tracks the current prefetch handoff queue depth.
	PrefetchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "datafeed",
			Name:      "prefetch_queue_depth",
			Help:      "Items currently buffered ahead of the consumer",
		},
	)

	// PrefetchWorkerRuns counts prefetch worker starts.
	PrefetchWorkerRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "datafeed",
			Name:      "prefetch_worker_runs_total",
			Help:      "Total background refill runs started",
		},
	)

	// PrefetchErrorsRelayed counts upstream errors relayed across the queue.
	PrefetchErrorsRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "datafeed",
			Name:      "prefetch_errors_relayed_total",
			Help:      "Upstream errors captured in the worker and re-raised in the consumer",
		},
	)
)
