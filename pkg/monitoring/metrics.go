package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageResultsApplied counts stage results accepted by the tracker.
	StageResultsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_results_applied_total",
			Help: "Total number of stage results applied to documents",
		},
		[]string{"kind", "outcome"},
	)

	// StageResultsStale counts stage results dropped for generation mismatch.
	StageResultsStale = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_results_stale_total",
			Help: "Total number of stage results dropped as stale",
		},
		[]string{"kind"},
	)

	// RequeuesTotal counts requeue operations by mode.
	RequeuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requeues_total",
			Help: "Total number of document requeues",
		},
		[]string{"mode"},
	)

	// RequeueCASRetries counts generation CAS collisions during requeue.
	RequeueCASRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "requeue_cas_retries_total",
			Help: "Total number of generation compare-and-swap retries",
		},
	)

	// WorkItemsDispatched counts work items sent to the compute pipeline.
	WorkItemsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "work_items_dispatched_total",
			Help: "Total number of work items dispatched to the compute pipeline",
		},
		[]string{"mode"},
	)

	// ClusteringDuration measures tag group clustering run duration.
	ClusteringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tag_group_clustering_duration_seconds",
			Help:    "Tag group clustering run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"outcome"},
	)

	// StatsAggregationDuration measures stats aggregation duration.
	StatsAggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stats_aggregation_duration_seconds",
			Help:    "Stats aggregation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)
