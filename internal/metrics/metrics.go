// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registered collectors. One instance per process.
type Metrics struct {
	Registry *prometheus.Registry

	SnapshotsSucceeded *prometheus.CounterVec // job label
	SnapshotsFailed    *prometheus.CounterVec // job label
	ChartCacheHits     prometheus.Counter
	ChartCacheMisses   prometheus.Counter
	ChartCacheErrors   prometheus.Counter
	QuoteFeedCalls     prometheus.Counter
	BatchDuration      *prometheus.HistogramVec // job label
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SnapshotsSucceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openfolio_snapshots_succeeded_total",
			Help: "Per-user snapshot writes that succeeded, by job.",
		}, []string{"job"}),
		SnapshotsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openfolio_snapshots_failed_total",
			Help: "Per-user snapshot writes that failed, by job.",
		}, []string{"job"}),
		ChartCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "openfolio_chart_cache_hits_total",
			Help: "Chart reads served from the cache.",
		}),
		ChartCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "openfolio_chart_cache_misses_total",
			Help: "Chart reads that required regeneration.",
		}),
		ChartCacheErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "openfolio_chart_cache_errors_total",
			Help: "Chart regenerations that failed.",
		}),
		QuoteFeedCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "openfolio_quote_feed_calls_total",
			Help: "HTTP calls made to the external quote feed.",
		}),
		BatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "openfolio_batch_duration_seconds",
			Help:    "Wall time of scheduled batch jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}
