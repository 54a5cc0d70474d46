// Package engine wires the core's components into a single pipeline:
// ingested tick -> MTF manager -> bar aggregator cascade -> indicator
// pipeline -> position manager -> event bus, with an asynchronous
// checkpoint manager observing tick/time thresholds on the side. Every
// collaborator is built up front with shared dependencies (logger,
// metrics, config) injected by construction, and callers see one small
// surface (ProcessTick, Checkpoint, Recover, Shutdown).
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashgroveq/mtfengine/internal/aggregator"
	"github.com/ashgroveq/mtfengine/internal/checkpoint"
	"github.com/ashgroveq/mtfengine/internal/config"
	"github.com/ashgroveq/mtfengine/internal/event"
	"github.com/ashgroveq/mtfengine/internal/indicator"
	"github.com/ashgroveq/mtfengine/internal/metrics"
	"github.com/ashgroveq/mtfengine/internal/models"
	"github.com/ashgroveq/mtfengine/internal/mtf"
	"github.com/ashgroveq/mtfengine/internal/position"
	"github.com/ashgroveq/mtfengine/internal/session"
	pkgindicator "github.com/ashgroveq/mtfengine/pkg/indicator"
	"github.com/ashgroveq/mtfengine/pkg/logger"
)

// newSessionSchedule builds the default forex session used to derive D1's
// daily-close offset. A backtest over a different asset
// class can still run — the offset only shifts D1 bucket boundaries, it
// never gates whether a tick is accepted.
func newSessionSchedule() *session.SessionManager {
	schedule := session.NewMarketSchedule(session.ForexHours(""))
	return session.NewSessionManager(schedule)
}

// Relay is the subset of internal/pubsub.EventRelay the engine depends on,
// kept as a narrow interface here so the engine package never imports
// internal/pubsub directly — the relay must stay optional without
// pulling Redis into every caller's dependency graph. A nil Relay simply
// means the relay is disabled.
type Relay interface {
	PublishBarCompletion(ctx context.Context, bar models.Bar) error
	PublishTradeEvent(ctx context.Context, evt position.TradeEvent) error
}

// Result summarizes one ProcessTick call: every bar completed across every
// timeframe the tick touched, in emission order, and any non-fatal
// indicator errors encountered along the way.
type Result struct {
	Bars            []models.Bar
	IndicatorErrors []error
}

// Engine owns every per-backtest collaborator and drives them from a single
// tick-ingestion entry point.
type Engine struct {
	cfg *config.Config

	mtf        *mtf.Manager
	aggregator *aggregator.Aggregator
	indicators *indicator.Pipeline
	positions  *position.Manager
	bus        *event.Bus
	checkpoint *checkpoint.Manager
	session    *session.SessionManager
	relay      Relay

	enabledSet map[models.Timeframe]bool

	tickCount      int64 // cumulative since construction; Recover restores it from the checkpoint
	ticksSinceCkpt int64 // reset every time a checkpoint fires
	totalBars      int64
	lastCheckpoint time.Time
	checkpointMu   sync.Mutex
	checkpointBusy int32
}

// Options bundles the constructor-time collaborators that have their own
// independent lifecycles (registry, hooks) so NewEngine's signature doesn't
// grow a parameter per optional dependency.
type Options struct {
	Registry       *pkgindicator.Registry
	IndicatorSpecs []indicator.Spec
	Hooks          position.Hooks
	Relay          Relay // optional; nil disables distributed fan-out
}

// NewEngine builds an Engine from cfg and opts, constructing the MTF
// manager with only models.M1 enabled — every higher timeframe is produced
// by the aggregator's cascade over completed M1 bars, matching the
// cascade-consistency invariant: a cascaded bar's OHLC must derive from
// its source bars, not be independently recomputed from ticks. Panics if
// cfg or opts.Registry is nil.
func NewEngine(cfg *config.Config, opts Options) *Engine {
	if cfg == nil {
		panic("engine: cfg cannot be nil")
	}
	if opts.Registry == nil {
		panic("engine: opts.Registry cannot be nil")
	}

	sessionMgr := newSessionSchedule()
	dailyCloseOffsetMs := sessionMgr.DailyCloseOffsetMs()

	mgr := mtf.NewManager(cfg.Engine.MaxSymbols, []models.Timeframe{models.M1}, cfg.Engine.BarHistoryLimit, dailyCloseOffsetMs)
	agg := aggregator.NewAggregator(aggregator.DefaultCascadeRules())
	agg.SetSessionManager(sessionMgr)
	// A 48h threshold means only multi-day outages flush a short batch;
	// weekend and holiday gaps are expected and never trigger.
	agg.SetGapDetector(session.NewGapDetector(48*time.Hour, sessionMgr.Schedule))
	pipe := indicator.NewPipeline(opts.Registry, opts.IndicatorSpecs, cfg.Engine.BarHistoryLimit, cfg.Engine.ParallelThreshold)
	posMgr := position.NewManager(opts.Hooks)

	ckpt := checkpoint.NewManager(cfg.Checkpoint.Dir, cfg.Checkpoint.BacktestID, cfg.Checkpoint.MaxCheckpoints, cfg.Checkpoint.CompressionLevel)

	enabledSet := make(map[models.Timeframe]bool, len(cfg.Engine.EnabledTimeframes))
	for _, tf := range cfg.Engine.EnabledTimeframes {
		enabledSet[tf] = true
	}

	e := &Engine{
		cfg:            cfg,
		mtf:            mgr,
		aggregator:     agg,
		indicators:     pipe,
		positions:      posMgr,
		bus:            event.NewBus(),
		checkpoint:     ckpt,
		session:        sessionMgr,
		relay:          opts.Relay,
		enabledSet:     enabledSet,
		lastCheckpoint: time.Now(),
	}

	agg.SetOnEmit(func(bar models.Bar) {
		e.totalBars++
	})

	return e
}

// Bus exposes the in-process event bus for external subscribers (e.g. a
// reporting layer observing the backtest live).
func (e *Engine) Bus() *event.Bus { return e.bus }

// Positions exposes the position manager so an order executor or risk
// engine can open/close positions against it.
func (e *Engine) Positions() *position.Manager { return e.positions }

// Indicators exposes the indicator pipeline's cache for read-side lookups.
func (e *Engine) Indicators() *indicator.Pipeline { return e.indicators }

// MTF exposes the MTF manager for read-side lookups (current partial bars,
// last tick, etc).
func (e *Engine) MTF() *mtf.Manager { return e.mtf }

// ProcessTick feeds one tick through the full pipeline: MTF fan-out,
// cascade, indicator dispatch, position notification, event publication,
// and (if due) an asynchronous checkpoint trigger.
func (e *Engine) ProcessTick(ctx context.Context, tick models.Tick) (Result, error) {
	bars, err := e.mtf.ProcessTick(tick)
	if err != nil {
		metrics.TicksRejected.WithLabelValues(rejectReason(err)).Inc()
		return Result{}, err
	}
	metrics.TicksIngested.WithLabelValues(tick.Symbol).Inc()
	atomic.AddInt64(&e.tickCount, 1)
	atomic.AddInt64(&e.ticksSinceCkpt, 1)

	result := Result{}
	for _, bar := range bars {
		e.handleCompletedBar(ctx, bar, &result)
	}

	e.positions.OnTickUpdate(tick, tick.Symbol)
	e.bus.PublishTick(tick)

	e.updatePositionGauges()
	e.maybeCheckpoint(ctx)

	return result, nil
}

// handleCompletedBar processes one completed bar and every bar it cascades
// into, in emission order.
func (e *Engine) handleCompletedBar(ctx context.Context, bar models.Bar, result *Result) {
	e.dispatchBar(ctx, bar, result)

	for _, cascaded := range e.aggregator.IngestBar(bar) {
		e.dispatchBar(ctx, cascaded, result)
	}
}

// dispatchBar runs one bar through metrics, the indicator pipeline, the
// position manager, the in-process bus, and (if configured) the
// distributed relay. Only timeframes in the engine's enabled set are
// dispatched downstream; bars at other cascade timeframes are still
// produced (so the chain stays intact) but are not otherwise surfaced.
func (e *Engine) dispatchBar(ctx context.Context, bar models.Bar, result *Result) {
	if !e.enabledSet[bar.Timeframe] {
		return
	}

	metrics.BarsCompleted.WithLabelValues(bar.Symbol, bar.Timeframe.String()).Inc()
	result.Bars = append(result.Bars, bar)

	_, stats, err := e.indicators.UpdateAllWithStats(bar.Symbol, bar)
	if err != nil {
		result.IndicatorErrors = append(result.IndicatorErrors, fmt.Errorf("engine: indicator update for %s/%s: %w", bar.Symbol, bar.Timeframe, err))
	} else {
		metrics.IndicatorDispatchDuration.WithLabelValues(bar.Timeframe.String()).Observe(float64(stats.DurationMicros) / 1e6)
		if stats.UpdatedCount > 0 {
			// UpdateAllWithStats reports a dispatch-wide count, not a
			// per-indicator breakdown; "all" aggregates every indicator
			// registered for this (symbol, timeframe).
			metrics.IndicatorUpdates.WithLabelValues("all", bar.Timeframe.String()).Add(float64(stats.UpdatedCount))
		}
	}

	e.positions.OnBarComplete(bar, bar.Timeframe, bar.Symbol)
	e.bus.PublishBarCompletion(bar)

	if e.relay != nil {
		if err := e.relay.PublishBarCompletion(ctx, bar); err != nil {
			logger.Warn("engine: relay publish failed", logger.ErrorField(err), logger.String("symbol", bar.Symbol))
		}
	}
}

func (e *Engine) updatePositionGauges() {
	metrics.PositionsOpen.Set(float64(e.positions.CountOpenPositions()))
	metrics.FloatingPnL.Set(e.positions.GetTotalFloatingPnL())
}

// maybeCheckpoint triggers an asynchronous checkpoint when either the
// elapsed-time or tick-count policy fires, skipping the request entirely if a
// checkpoint is already in flight rather than queuing behind it.
func (e *Engine) maybeCheckpoint(ctx context.Context) {
	if !e.cfg.Checkpoint.EnableAuto {
		return
	}

	e.checkpointMu.Lock()
	due := time.Since(e.lastCheckpoint) >= time.Duration(e.cfg.Checkpoint.IntervalSecs)*time.Second ||
		atomic.LoadInt64(&e.ticksSinceCkpt) >= e.cfg.Checkpoint.TicksPerCheckpoint
	if due {
		// Reset both triggers together so a run past TicksPerCheckpoint
		// doesn't re-fire on every subsequent tick.
		e.lastCheckpoint = time.Now()
		atomic.StoreInt64(&e.ticksSinceCkpt, 0)
	}
	e.checkpointMu.Unlock()
	if !due {
		return
	}

	if !atomic.CompareAndSwapInt32(&e.checkpointBusy, 0, 1) {
		return
	}
	go func() {
		defer atomic.StoreInt32(&e.checkpointBusy, 0)
		if _, err := e.Checkpoint(ctx); err != nil {
			logger.Warn("engine: auto-checkpoint failed", logger.ErrorField(err))
		}
	}()
}

// Checkpoint synchronously creates a checkpoint from the engine's current
// state, for manual triggers and shutdown. Concurrency-safe
// with the tick path: each subsystem snapshots itself under its own lock.
func (e *Engine) Checkpoint(ctx context.Context) (string, error) {
	start := time.Now()
	path, err := e.checkpoint.Create(ctx, checkpoint.Sources{
		MTF:       e.mtf,
		Indicator: e.indicators,
		Position:  e.positions,
		TickCount: atomic.LoadInt64(&e.tickCount),
		TotalBars: e.totalBars,
	})
	metrics.CheckpointWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CheckpointsTotal.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("engine: checkpoint: %w", err)
	}
	metrics.CheckpointsTotal.WithLabelValues("success").Inc()
	atomic.StoreInt64(&e.ticksSinceCkpt, 0)
	return path, nil
}

// Recover restores the engine's state from the newest validating checkpoint
// on disk. Returns checkpoint.ErrNoRecoveryAvailable
// if no candidate validates, which callers may treat as "start fresh".
func (e *Engine) Recover(ctx context.Context) error {
	data, err := e.checkpoint.Recover(ctx)
	if err != nil {
		return err
	}

	e.mtf.Restore(data.MTF)
	e.indicators.Cache().Restore(data.Indicator.Cache)
	e.positions.Restore(data.Position.Positions, data.Position.Events)
	atomic.StoreInt64(&e.tickCount, data.TickCount)
	atomic.StoreInt64(&e.ticksSinceCkpt, 0)
	e.totalBars = data.Metadata.TotalBars
	e.lastCheckpoint = time.Now()

	logger.Info("engine: recovered from checkpoint",
		logger.String("backtest_id", data.Metadata.BacktestID),
		logger.Int64("tick_count", data.TickCount),
		logger.Int("symbol_count", data.Metadata.SymbolCount),
	)
	return nil
}

// Shutdown writes a final checkpoint (if auto-checkpointing is enabled) and
// flushes buffered logs.
func (e *Engine) Shutdown(ctx context.Context) error {
	defer logger.Sync()
	if !e.cfg.Checkpoint.EnableAuto {
		return nil
	}
	_, err := e.Checkpoint(ctx)
	return err
}

// TickCount returns the number of ticks processed since construction; after
// Recover it continues from the tick count stored in the checkpoint.
func (e *Engine) TickCount() int64 {
	return atomic.LoadInt64(&e.tickCount)
}

func rejectReason(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
