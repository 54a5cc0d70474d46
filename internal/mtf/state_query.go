package mtf

import (
	"time"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// defaultQueryDepth is how many recent completed bars a full snapshot
// carries per timeframe; deeper history goes through
// GetLatestCompletedBars with an explicit count.
const defaultQueryDepth = 10

// StateQuery is the read-side facade over a Manager: point-in-time views
// of partial bars, recent completed bars, and per-symbol bookkeeping,
// without exposing the mutable per-symbol states themselves.
type StateQuery struct {
	manager *Manager
}

// NewStateQuery builds a query facade over manager.
func NewStateQuery(manager *Manager) *StateQuery {
	return &StateQuery{manager: manager}
}

// QuerySnapshot is a read-only view of one symbol across every enabled
// timeframe, stamped with how long the query itself took. GetSnapshot
// reads the last tick and each timeframe under separate read-lock
// acquisitions, so a tick processed during the query can show up in some
// fields and not in others; SymbolState.Snapshot reads under one lock.
type QuerySnapshot struct {
	Symbol          string
	TimestampMs     int64
	CurrentTick     *models.Tick
	PartialBars     map[models.Timeframe]*models.PartialBar
	CompletedBars   map[models.Timeframe][]models.Bar
	QueryTimeMicros int64
}

// TimeframeView is one timeframe's read-only state: the open partial, the
// most recent completed bars, and how far the open window has progressed.
type TimeframeView struct {
	Timeframe            models.Timeframe
	PartialBar           *models.PartialBar
	LatestBars           []models.Bar
	CompletionPercentage float64
	TimeRemainingMs      int64
}

// GetSnapshot returns a full per-timeframe view of symbol, or false if the
// symbol is not tracked.
func (q *StateQuery) GetSnapshot(symbol string) (QuerySnapshot, bool) {
	start := time.Now()

	st, ok := q.manager.GetSymbolState(symbol)
	if !ok {
		return QuerySnapshot{}, false
	}

	snap := QuerySnapshot{
		Symbol:        symbol,
		TimestampMs:   st.LastUpdateMs(),
		CurrentTick:   st.LastTick(),
		PartialBars:   make(map[models.Timeframe]*models.PartialBar),
		CompletedBars: make(map[models.Timeframe][]models.Bar),
	}
	for _, tf := range st.EnabledTimeframes() {
		partial, latest, ok := st.ViewTimeframe(tf, defaultQueryDepth)
		if !ok {
			continue
		}
		snap.PartialBars[tf] = partial
		snap.CompletedBars[tf] = latest
	}

	snap.QueryTimeMicros = time.Since(start).Microseconds()
	return snap, true
}

// GetTimeframeSnapshot returns one timeframe's view of symbol, or false if
// the symbol or timeframe is not tracked.
func (q *StateQuery) GetTimeframeSnapshot(symbol string, tf models.Timeframe) (TimeframeView, bool) {
	st, ok := q.manager.GetSymbolState(symbol)
	if !ok {
		return TimeframeView{}, false
	}
	partial, latest, ok := st.ViewTimeframe(tf, defaultQueryDepth)
	if !ok {
		return TimeframeView{}, false
	}

	view := TimeframeView{
		Timeframe:  tf,
		PartialBar: partial,
		LatestBars: latest,
	}
	if view.PartialBar != nil {
		view.CompletionPercentage = view.PartialBar.CompletionPercentage
		view.TimeRemainingMs = view.PartialBar.MsRemaining
	}
	return view, true
}

// GetAllPartialBars returns every enabled timeframe's open partial for
// symbol (nil entries for windows with no tick yet), or false if the
// symbol is not tracked.
func (q *StateQuery) GetAllPartialBars(symbol string) (map[models.Timeframe]*models.PartialBar, bool) {
	st, ok := q.manager.GetSymbolState(symbol)
	if !ok {
		return nil, false
	}
	out := make(map[models.Timeframe]*models.PartialBar)
	for _, tf := range st.EnabledTimeframes() {
		partial, _, ok := st.ViewTimeframe(tf, 0)
		if !ok {
			continue
		}
		out[tf] = partial
	}
	return out, true
}

// GetLatestCompletedBars returns up to count recent completed bars for
// (symbol, tf), oldest first, or false if the symbol or timeframe is not
// tracked.
func (q *StateQuery) GetLatestCompletedBars(symbol string, tf models.Timeframe, count int) ([]models.Bar, bool) {
	st, ok := q.manager.GetSymbolState(symbol)
	if !ok {
		return nil, false
	}
	_, latest, ok := st.ViewTimeframe(tf, count)
	if !ok {
		return nil, false
	}
	return latest, true
}

// GetAllSymbols returns every tracked symbol, sorted.
func (q *StateQuery) GetAllSymbols() []string {
	return q.manager.GetAllSymbols()
}

// HasSymbol reports whether symbol has been seen by the manager.
func (q *StateQuery) HasSymbol(symbol string) bool {
	_, ok := q.manager.GetSymbolState(symbol)
	return ok
}

// MemoryUsage returns the manager's retained-history byte estimate.
func (q *StateQuery) MemoryUsage() int64 {
	return q.manager.MemoryUsageEstimate()
}
