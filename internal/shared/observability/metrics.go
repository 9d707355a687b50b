package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	SyncStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "querysync_stage_seconds",
		Help:    "Time spent in each stage of a sync run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "querysync_runs_total",
		Help: "Total number of sync runs by outcome.",
	}, []string{"outcome"})

	SummaryTargets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "querysync_summary_targets",
		Help: "Targets in the latest query summary by type.",
	}, []string{"type"})

	GraphTargets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "querysync_graph_targets",
		Help: "Project targets in the latest build graph.",
	})

	GraphSources = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "querysync_graph_sources",
		Help: "Source files in the latest build graph.",
	})

	ProjectSourceFolders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "querysync_project_source_folders",
		Help: "Source folders in the latest project model.",
	}, []string{"kind"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "querysync_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatchSyncsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "querysync_watch_syncs_throttled_total",
		Help: "Watch-triggered syncs delayed by the sync rate limit.",
	})
)

// Sync run outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)
