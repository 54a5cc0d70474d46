package bar

import "github.com/ashgroveq/mtfengine/internal/models"

// TimeframeState holds the open partial bar and the bounded ring of
// completed bars for a single (symbol, timeframe) pair. Not safe for
// concurrent use on its own; callers (internal/mtf) serialize access per
// symbol.
type TimeframeState struct {
	Symbol             string
	Timeframe          models.Timeframe
	HistoryLimit       int
	DailyCloseOffsetMs int64 // session-aware shift of D1 boundaries

	current   *models.PartialBar
	completed []models.Bar // ring buffer, oldest first
	tickCount int64
}

// NewTimeframeState constructs empty state for a (symbol, timeframe) pair
// with the given completed-bar ring capacity.
func NewTimeframeState(symbol string, tf models.Timeframe, historyLimit int, dailyCloseOffsetMs int64) *TimeframeState {
	if historyLimit <= 0 {
		historyLimit = 1000
	}
	return &TimeframeState{
		Symbol:             symbol,
		Timeframe:          tf,
		HistoryLimit:       historyLimit,
		DailyCloseOffsetMs: dailyCloseOffsetMs,
		completed:          make([]models.Bar, 0, historyLimit),
	}
}

// ProcessTick folds tick into the state. If the tick
// belongs to the currently open window, the partial is updated in place and
// no bar is returned. If it starts a new window, the previous partial is
// completed, pushed to the ring (evicting the oldest entry if over
// capacity), and a new partial begins. At most one completed bar is
// returned per call.
func (s *TimeframeState) ProcessTick(tick models.Tick) *models.Bar {
	barStart := s.Timeframe.BarStart(tick.Timestamp, s.DailyCloseOffsetMs)
	barEnd := s.Timeframe.BarEnd(tick.Timestamp, s.DailyCloseOffsetMs)

	s.tickCount++

	if s.current == nil {
		p := newPartial(s.Symbol, s.Timeframe, barStart, barEnd, tick)
		s.current = &p
		return nil
	}

	if s.current.BarStartMs != barStart {
		completed := s.current.ToBar()
		s.pushCompleted(completed)

		p := newPartial(s.Symbol, s.Timeframe, barStart, barEnd, tick)
		s.current = &p
		return &completed
	}

	applyTick(s.current, tick)
	return nil
}

// ForceClose completes the current partial (if any) without waiting for a
// boundary-crossing tick, used by session/gap policy to force bar closes.
// Returns nil if there is no open partial.
func (s *TimeframeState) ForceClose() *models.Bar {
	if s.current == nil {
		return nil
	}
	completed := s.current.ToBar()
	s.pushCompleted(completed)
	s.current = nil
	return &completed
}

func (s *TimeframeState) pushCompleted(b models.Bar) {
	s.completed = append(s.completed, b)
	if len(s.completed) > s.HistoryLimit {
		copy(s.completed, s.completed[1:])
		s.completed = s.completed[:len(s.completed)-1]
	}
}

// CurrentPartial returns a copy of the open partial, or nil if none.
func (s *TimeframeState) CurrentPartial() *models.PartialBar {
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// CompletedBars returns a copy of the completed-bar ring, oldest first.
func (s *TimeframeState) CompletedBars() []models.Bar {
	out := make([]models.Bar, len(s.completed))
	copy(out, s.completed)
	return out
}

// LatestBars returns up to n of the most recent completed bars, oldest
// first.
func (s *TimeframeState) LatestBars(n int) []models.Bar {
	if n > len(s.completed) {
		n = len(s.completed)
	}
	if n <= 0 {
		return nil
	}
	out := make([]models.Bar, n)
	copy(out, s.completed[len(s.completed)-n:])
	return out
}

// TickCount returns the number of ticks observed by this state.
func (s *TimeframeState) TickCount() int64 {
	return s.tickCount
}

// CurrentBarBounds returns the open window's [start, end) in ms, and false
// if there is no open partial.
func (s *TimeframeState) CurrentBarBounds() (start, end int64, ok bool) {
	if s.current == nil {
		return 0, 0, false
	}
	return s.current.BarStartMs, s.current.BarEndMs, true
}

// Snapshot returns the internal state for checkpointing.
func (s *TimeframeState) Snapshot() (current *models.PartialBar, completed []models.Bar, tickCount int64) {
	return s.CurrentPartial(), s.CompletedBars(), s.tickCount
}

// Restore repopulates state from a prior Snapshot's output.
func (s *TimeframeState) Restore(current *models.PartialBar, completed []models.Bar, tickCount int64) {
	if current != nil {
		cp := *current
		s.current = &cp
	} else {
		s.current = nil
	}
	s.completed = make([]models.Bar, len(completed))
	copy(s.completed, completed)
	s.tickCount = tickCount
}
