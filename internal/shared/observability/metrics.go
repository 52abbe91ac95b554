package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyscope_analysis_seconds",
		Help:    "Time spent extracting structure from one source text.",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine"})

	AnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyscope_anomalies_total",
		Help: "Total number of recovered lexical or structural anomalies.",
	}, []string{"kind"})

	FilesAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyscope_files_analyzed_total",
		Help: "Total number of source texts analyzed.",
	})

	StoreOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyscope_store_ops_total",
		Help: "Total number of file store operations by backend and operation.",
	}, []string{"backend", "op"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyscope_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyscope_rate_limited_total",
		Help: "Total number of requests rejected by the per-owner limiter.",
	})
)
