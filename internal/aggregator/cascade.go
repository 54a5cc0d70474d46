// Package aggregator implements the rule-driven bar cascade: completed
// bars at one timeframe are combined into bars at the next timeframe up,
// with multi-hop re-ingestion so a batch of M1 bars can eventually surface
// as a single D1 bar without a bespoke rule per pair. The whole cascade
// runs lock-guarded accumulate-then-callback.
package aggregator

import (
	"sync"

	"github.com/ashgroveq/mtfengine/internal/models"
	"github.com/ashgroveq/mtfengine/internal/session"
)

// AggregationMethod names how a batch of source bars combines into one
// target bar. Both methods produce the same OHLC shape; VolumeWeighted
// additionally computes the batch VWAP for consumers that price off it.
type AggregationMethod string

const (
	MethodStandard       AggregationMethod = "standard"
	MethodVolumeWeighted AggregationMethod = "volume_weighted"
)

// CascadeRule describes one step of the cascade: every BarsPerAggregation
// consecutive SourceTF bars combine into one TargetTF bar.
type CascadeRule struct {
	SourceTF           models.Timeframe
	TargetTF           models.Timeframe
	BarsPerAggregation int
	Method             AggregationMethod
}

// DefaultCascadeRules returns the standard chain M1x5->M5, M5x3->M15,
// M15x4->H1, H1x4->H4, H4x6->D1.
func DefaultCascadeRules() []CascadeRule {
	return []CascadeRule{
		{SourceTF: models.M1, TargetTF: models.M5, BarsPerAggregation: 5, Method: MethodStandard},
		{SourceTF: models.M5, TargetTF: models.M15, BarsPerAggregation: 3, Method: MethodStandard},
		{SourceTF: models.M15, TargetTF: models.H1, BarsPerAggregation: 4, Method: MethodStandard},
		{SourceTF: models.H1, TargetTF: models.H4, BarsPerAggregation: 4, Method: MethodStandard},
		{SourceTF: models.H4, TargetTF: models.D1, BarsPerAggregation: 6, Method: MethodStandard},
	}
}

// pendingKey identifies one symbol's accumulation queue for one rule.
type pendingKey struct {
	symbol string
	source models.Timeframe
}

// Aggregator accumulates completed source-timeframe bars per symbol and
// emits target-timeframe bars once a full batch (or a forced boundary) is
// reached, re-ingesting each emitted bar so it can trigger the next rule in
// the chain.
type Aggregator struct {
	mu       sync.Mutex
	rules    map[models.Timeframe]CascadeRule // keyed by SourceTF, one rule per source
	pending  map[pendingKey][]models.Bar
	lastVWAP map[pendingKey]float64 // most recent batch VWAP per VolumeWeighted rule
	volume   *VolumeAggregator
	onEmit   func(models.Bar)
	sessions *session.SessionManager
	gaps     *session.GapDetector
}

// NewAggregator builds an aggregator from rules, indexed by source
// timeframe. Rules with the same SourceTF are not supported; the last one
// registered wins; the cascade is a single linear chain.
func NewAggregator(rules []CascadeRule) *Aggregator {
	byline := make(map[models.Timeframe]CascadeRule, len(rules))
	for _, r := range rules {
		byline[r.SourceTF] = r
	}
	return &Aggregator{
		rules:    byline,
		pending:  make(map[pendingKey][]models.Bar),
		lastVWAP: make(map[pendingKey]float64),
		volume:   NewVolumeAggregator(),
	}
}

// SetOnEmit registers a callback invoked for every target bar produced,
// including intermediate hops in a multi-hop cascade.
func (a *Aggregator) SetOnEmit(fn func(models.Bar)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEmit = fn
}

// SetSessionManager attaches a session-boundary policy: a pending batch is
// flushed early when the latest source bar ends on a session boundary for
// the rule's target timeframe, so a daily close never leaves a short batch
// straddling two sessions. Nil disables the policy.
func (a *Aggregator) SetSessionManager(sm *session.SessionManager) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = sm
}

// SetGapDetector attaches a gap policy: when an unexpected time gap appears
// between queued source bars, the batch collected so far is aggregated
// immediately instead of waiting for bars that may never arrive. Nil
// disables the policy.
func (a *Aggregator) SetGapDetector(gd *session.GapDetector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gaps = gd
}

// IngestBar feeds one completed bar into the cascade and returns every bar
// emitted as a direct or downstream (multi-hop) consequence, in emission
// order. A bar whose timeframe has no outgoing rule (e.g. D1, the top of
// the chain) produces no further bars.
func (a *Aggregator) IngestBar(bar models.Bar) []models.Bar {
	var emitted []models.Bar
	a.ingest(bar, &emitted)
	return emitted
}

func (a *Aggregator) ingest(bar models.Bar, emitted *[]models.Bar) {
	a.mu.Lock()
	rule, ok := a.rules[bar.Timeframe]
	if !ok {
		a.mu.Unlock()
		return
	}

	key := pendingKey{symbol: bar.Symbol, source: bar.Timeframe}
	queue := append(a.pending[key], bar)

	var target *models.Bar
	var batch []models.Bar
	switch {
	case len(queue) >= rule.BarsPerAggregation:
		batch = queue[:rule.BarsPerAggregation]
		queue = queue[rule.BarsPerAggregation:]
	case a.sessions != nil && a.sessions.IsSessionBoundary(rule.TargetTF, bar.TimestampEndMs):
		batch = queue
		queue = nil
	case a.gaps != nil && queueHasGap(a.gaps, queue):
		batch = queue
		queue = nil
	}
	if batch != nil {
		b := a.combine(batch, rule.TargetTF)
		target = &b
		if rule.Method == MethodVolumeWeighted {
			if vwap, ok := a.volume.CalculateVWAP(batch); ok {
				a.lastVWAP[key] = vwap
			}
		}
	}
	a.pending[key] = queue
	cb := a.onEmit
	a.mu.Unlock()

	if target == nil {
		return
	}
	if cb != nil {
		cb(*target)
	}
	*emitted = append(*emitted, *target)
	a.ingest(*target, emitted)
}

// ForceEmit flushes a partial batch for (symbol, sourceTF) into one target
// bar regardless of BarsPerAggregation, for callers driving their own
// boundary policy instead of (or in addition to) the attached session/gap
// detectors. Returns nil if there is nothing pending.
func (a *Aggregator) ForceEmit(symbol string, sourceTF models.Timeframe) *models.Bar {
	a.mu.Lock()
	rule, ok := a.rules[sourceTF]
	if !ok {
		a.mu.Unlock()
		return nil
	}
	key := pendingKey{symbol: symbol, source: sourceTF}
	queue := a.pending[key]
	if len(queue) == 0 {
		a.mu.Unlock()
		return nil
	}
	b := a.combine(queue, rule.TargetTF)
	if rule.Method == MethodVolumeWeighted {
		if vwap, ok := a.volume.CalculateVWAP(queue); ok {
			a.lastVWAP[key] = vwap
		}
	}
	delete(a.pending, key)
	cb := a.onEmit
	a.mu.Unlock()

	if cb != nil {
		cb(b)
	}
	return &b
}

// PendingCount reports how many source bars are queued for (symbol, sourceTF).
func (a *Aggregator) PendingCount(symbol string, sourceTF models.Timeframe) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending[pendingKey{symbol: symbol, source: sourceTF}])
}

// LastBatchVWAP returns the volume-weighted average price of the most
// recently emitted batch for (symbol, sourceTF). Only rules with
// MethodVolumeWeighted record one; false otherwise.
func (a *Aggregator) LastBatchVWAP(symbol string, sourceTF models.Timeframe) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	vwap, ok := a.lastVWAP[pendingKey{symbol: symbol, source: sourceTF}]
	return vwap, ok
}

// queueHasGap reports whether any adjacent pair in the queue is separated
// by an unexpected time gap.
func queueHasGap(gd *session.GapDetector, queue []models.Bar) bool {
	for i := 1; i < len(queue); i++ {
		if gd.HasGap(queue[i-1], queue[i]) {
			return true
		}
	}
	return false
}

// combine merges a batch of consecutive same-timeframe bars into one bar
// at targetTF: first open, last close, max high, min low, with volume and
// tick counts summed through the VolumeAggregator.
func (a *Aggregator) combine(batch []models.Bar, targetTF models.Timeframe) models.Bar {
	first := batch[0]
	last := batch[len(batch)-1]

	out := models.Bar{
		ID:               last.ID,
		Symbol:           first.Symbol,
		Timeframe:        targetTF,
		TimestampStartMs: first.TimestampStartMs,
		TimestampEndMs:   last.TimestampEndMs,
		Open:             first.Open,
		Close:            last.Close,
		High:             first.High,
		Low:              first.Low,
	}
	for _, b := range batch {
		if b.High > out.High {
			out.High = b.High
		}
		if b.Low < out.Low {
			out.Low = b.Low
		}
	}
	out.Volume = a.volume.AggregateVolume(batch)
	out.TickCount = a.volume.AggregateTickCount(batch)
	return out
}
