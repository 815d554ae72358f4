package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mpath_parse_seconds",
		Help:    "Time spent building an object from one source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mpath_parse_errors_total",
		Help: "Total number of files whose top-level construct could not be established.",
	})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpath_resolutions_total",
		Help: "Name resolutions by outcome (hit, miss, not_found, error).",
	}, []string{"result"})

	CachedObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mpath_cached_objects",
		Help: "Number of materialized objects held in the per-path cache.",
	})

	SearchPathRoots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mpath_search_path_roots",
		Help: "Number of roots on the current search path.",
	})

	ScanWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mpath_scan_warnings_total",
		Help: "Total number of entries skipped while scanning search path roots.",
	})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mpath_scan_seconds",
		Help:    "Time spent scanning one search path root.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mpath_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// Resolution outcomes used as the result label.
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultNotFound = "not_found"
	ResultError    = "error"
)
