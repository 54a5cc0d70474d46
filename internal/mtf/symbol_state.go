// Package mtf implements the per-symbol multi-timeframe state and the
// multi-symbol registry above it: a double-checked-locked registry of
// per-symbol states, each guarded by its own mutex so bulk reads never
// block unrelated symbols' writers.
package mtf

import (
	"sync"

	"github.com/ashgroveq/mtfengine/internal/bar"
	"github.com/ashgroveq/mtfengine/internal/models"
)

// SymbolState fans one symbol's tick stream out to every enabled timeframe
// atomically.
type SymbolState struct {
	mu           sync.RWMutex
	Symbol       string
	lastTick     *models.Tick
	lastUpdateMs int64
	states       map[models.Timeframe]*bar.TimeframeState
	order        []models.Timeframe // stable iteration order for snapshots
}

// NewSymbolState creates lazily-populated per-timeframe state for symbol,
// one bar.TimeframeState per enabled timeframe.
func NewSymbolState(symbol string, enabled []models.Timeframe, historyLimit int, dailyCloseOffsetMs int64) *SymbolState {
	states := make(map[models.Timeframe]*bar.TimeframeState, len(enabled))
	order := make([]models.Timeframe, 0, len(enabled))
	for _, tf := range enabled {
		offset := int64(0)
		if tf == models.D1 {
			offset = dailyCloseOffsetMs
		}
		states[tf] = bar.NewTimeframeState(symbol, tf, historyLimit, offset)
		order = append(order, tf)
	}
	return &SymbolState{
		Symbol: symbol,
		states: states,
		order:  order,
	}
}

// ProcessTick folds tick into every enabled timeframe atomically: the
// method holds an exclusive lock for its whole duration so either every
// per-timeframe state observes the tick, or (on validation failure before
// this is called) none does.
func (s *SymbolState) ProcessTick(tick models.Tick) []models.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := make([]models.Bar, 0, len(s.order))
	for _, tf := range s.order {
		if b := s.states[tf].ProcessTick(tick); b != nil {
			completed = append(completed, *b)
		}
	}
	tickCopy := tick
	s.lastTick = &tickCopy
	s.lastUpdateMs = tick.Timestamp
	return completed
}

// TimeframeState returns the internal state for tf, or nil if tf isn't
// enabled for this symbol. Callers must not mutate the returned pointer
// concurrently with ProcessTick; this is intended for the aggregator and
// checkpoint layers which run under the manager's guarantees.
func (s *SymbolState) TimeframeState(tf models.Timeframe) *bar.TimeframeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[tf]
}

// ViewTimeframe copies tf's open partial and up to n recent completed bars
// under the symbol's read lock, for read-side queries that run concurrently
// with the tick path.
func (s *SymbolState) ViewTimeframe(tf models.Timeframe, n int) (*models.PartialBar, []models.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[tf]
	if !ok {
		return nil, nil, false
	}
	return st.CurrentPartial(), st.LatestBars(n), true
}

// LastTick returns a copy of the last tick observed, or nil if none yet.
func (s *SymbolState) LastTick() *models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastTick == nil {
		return nil
	}
	cp := *s.lastTick
	return &cp
}

// LastUpdateMs returns the timestamp of the last tick observed.
func (s *SymbolState) LastUpdateMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdateMs
}

// EnabledTimeframes returns the timeframes tracked for this symbol.
func (s *SymbolState) EnabledTimeframes() []models.Timeframe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Timeframe, len(s.order))
	copy(out, s.order)
	return out
}

// SymbolSnapshot is a consistent point-in-time view of one symbol across
// every enabled timeframe.
type SymbolSnapshot struct {
	Symbol                   string
	LastTick                 *models.Tick
	LastProcessedTimestampMs int64
	Timeframes               map[models.Timeframe]TimeframeSnapshot
}

// TimeframeSnapshot is one timeframe's recoverable state.
type TimeframeSnapshot struct {
	CurrentPartial  *models.PartialBar
	CompletedBars   []models.Bar
	CompletedBarIDs []string
	TickCount       int64
}

// Snapshot captures a consistent view of every timeframe under a single
// read lock.
func (s *SymbolState) Snapshot() SymbolSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SymbolSnapshot{
		Symbol:                   s.Symbol,
		LastProcessedTimestampMs: s.lastUpdateMs,
		Timeframes:               make(map[models.Timeframe]TimeframeSnapshot, len(s.order)),
	}
	if s.lastTick != nil {
		cp := *s.lastTick
		snap.LastTick = &cp
	}
	for _, tf := range s.order {
		current, completed, ticks := s.states[tf].Snapshot()
		ids := make([]string, len(completed))
		for i, b := range completed {
			ids[i] = b.ID
		}
		snap.Timeframes[tf] = TimeframeSnapshot{
			CurrentPartial:  current,
			CompletedBars:   completed,
			CompletedBarIDs: ids,
			TickCount:       ticks,
		}
	}
	return snap
}

// Restore repopulates a SymbolState from a snapshot taken earlier in this
// process or recovered from a checkpoint.
func (s *SymbolState) Restore(snap SymbolSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.LastTick != nil {
		cp := *snap.LastTick
		s.lastTick = &cp
	}
	s.lastUpdateMs = snap.LastProcessedTimestampMs
	for tf, tfSnap := range snap.Timeframes {
		if st, ok := s.states[tf]; ok {
			st.Restore(tfSnap.CurrentPartial, tfSnap.CompletedBars, tfSnap.TickCount)
		}
	}
}
