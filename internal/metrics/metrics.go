// Package metrics registers the engine's Prometheus collectors: a handful
// of package-level collectors created once at import time and incremented
// from the hot paths they describe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksIngested counts ticks accepted by the MTF manager, per symbol.
	TicksIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtfengine_ticks_ingested_total",
			Help: "Total number of ticks accepted into the MTF state.",
		},
		[]string{"symbol"},
	)

	// TicksRejected counts ticks rejected at ingestion, per reason.
	TicksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtfengine_ticks_rejected_total",
			Help: "Total number of ticks rejected at ingestion, by reason.",
		},
		[]string{"reason"},
	)

	// BarsCompleted counts bars closed per (symbol, timeframe).
	BarsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtfengine_bars_completed_total",
			Help: "Total number of bars completed, by symbol and timeframe.",
		},
		[]string{"symbol", "timeframe"},
	)

	// IndicatorUpdates counts successful (post-warm-up) indicator updates.
	IndicatorUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtfengine_indicator_updates_total",
			Help: "Total number of indicator updates that produced a value.",
		},
		[]string{"indicator", "timeframe"},
	)

	// IndicatorDispatchDuration times one Pipeline.UpdateAllWithStats call.
	IndicatorDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtfengine_indicator_dispatch_duration_seconds",
			Help:    "Duration of one indicator pipeline dispatch across all registered indicators for a bar.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"timeframe"},
	)

	// CheckpointsTotal counts checkpoint attempts by outcome.
	CheckpointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtfengine_checkpoints_total",
			Help: "Total number of checkpoint create attempts, by outcome.",
		},
		[]string{"outcome"}, // "success" | "failure"
	)

	// CheckpointWriteDuration times a checkpoint create (serialize +
	// compress + write + rotate).
	CheckpointWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mtfengine_checkpoint_write_duration_seconds",
			Help:    "Duration of a full checkpoint create, including compression and rotation.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PositionsOpen tracks the current count of open positions.
	PositionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtfengine_positions_open",
			Help: "Current number of open positions.",
		},
	)

	// FloatingPnL tracks the current aggregate unrealized P&L across open
	// positions.
	FloatingPnL = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtfengine_floating_pnl",
			Help: "Current aggregate unrealized P&L across all open positions.",
		},
	)
)
