package termstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the running counters print_metrics() (spec.md §6) needs,
// registered the same way jinterlante1206-AleutianLocal's services declare a
// package-level promauto block (services/trace/agent/routing/metrics.go)
// rather than building a custom stats struct with no exporter behind it.
var (
	poolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aterm",
		Subsystem: "pool",
		Name:      "size",
		Help:      "Number of nodes currently in the term pool",
	})

	symbolTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aterm",
		Subsystem: "symbol",
		Name:      "table_size",
		Help:      "Number of interned symbols",
	})

	collections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aterm",
		Subsystem: "gc",
		Name:      "collections_total",
		Help:      "Total number of mark/sweep collections run",
	})

	nodesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aterm",
		Subsystem: "gc",
		Name:      "nodes_swept_total",
		Help:      "Total number of nodes reclaimed across all collections",
	})

	collectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aterm",
		Subsystem: "gc",
		Name:      "collection_duration_seconds",
		Help:      "Wall-clock duration of a single mark/sweep collection",
		Buckets:   prometheus.DefBuckets,
	})
)
