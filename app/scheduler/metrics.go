package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfsync_pipeline_render_total",
			Help: "Render stage outcomes by terminal status",
		},
		[]string{"status"},
	)

	dispatchStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfsync_pipeline_dispatch_total",
			Help: "Dispatch stage outcomes by terminal status",
		},
		[]string{"status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfsync_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	guardConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfsync_guard_conflicts_total",
			Help: "Sync attempts aborted because the guard was already held",
		},
	)

	confirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfsync_confirmations_total",
			Help: "Inbound confirmation outcomes (accepted, rejected, stale, unknown_tag)",
		},
		[]string{"outcome"},
	)

	heartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfsync_gateway_heartbeats_total",
			Help: "Inbound gateway heartbeat messages",
		},
	)
)
