package position

import (
	"sync"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// TradeEventKind discriminates the lifecycle events the manager logs.
type TradeEventKind int

const (
	EventOrderPlaced TradeEventKind = iota
	EventOrderFilled
	EventStopLossTriggered
	EventTakeProfitTriggered
	EventPositionClosed
	EventMarginCall
)

func (k TradeEventKind) String() string {
	switch k {
	case EventOrderPlaced:
		return "order_placed"
	case EventOrderFilled:
		return "order_filled"
	case EventStopLossTriggered:
		return "stop_loss_triggered"
	case EventTakeProfitTriggered:
		return "take_profit_triggered"
	case EventPositionClosed:
		return "position_closed"
	case EventMarginCall:
		return "margin_call"
	default:
		return "unknown"
	}
}

// marginCallsBucket is the dedicated index key MarginCall events are
// retrievable under.
const marginCallsBucket = "margin_calls"

// TradeEvent is an append-only, immutable record of a position lifecycle
// event, used to reconstruct history without replaying every tick.
// Slippage and Commission are meaningful on fill events; zero elsewhere.
type TradeEvent struct {
	Kind        TradeEventKind
	PositionID  string
	Symbol      string
	FromState   State
	ToState     State
	AtMs        int64
	Price       float64
	Quantity    float64
	Slippage    float64
	Commission  float64
	RealizedPnL float64
}

// Hooks are lifecycle callbacks the Manager invokes around tick/bar/
// indicator updates that might trigger a position transition.
type Hooks struct {
	OnOpen   func(*Position)
	OnClose  func(*Position, TradeEvent)
	OnCancel func(*Position)
}

// SymbolStatistics summarizes closed-trade performance for one symbol.
type SymbolStatistics struct {
	TotalClosed int
	TotalWins   int
	TotalLosses int
	LargestWin  float64
	LargestLoss float64 // stored as a positive magnitude
	GrossProfit float64
	GrossLoss   float64 // stored as a positive magnitude
	NetProfit   float64
}

// Manager tracks every live and closed position with symbol and
// parent/child secondary indices for fast lookup. A single
// RWMutex guards the whole store: reads (statistics queries, snapshot
// reads) take the read lock concurrently with each other, while every
// write path — tick-driven price updates, bar-driven close evaluation,
// strategy-driven open/close — serializes on the write lock, matching
// many concurrent readers with occasional writers.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]*Position
	bySymbol  map[string]map[string]bool
	byState   map[State]map[string]bool
	events    map[string][]TradeEvent // keyed by position ID, or marginCallsBucket
	stats     map[string]*SymbolStatistics
	hooks     Hooks
	pnlCalc   *PnLCalculator
}

// NewManager builds an empty manager.
func NewManager(hooks Hooks) *Manager {
	return &Manager{
		positions: make(map[string]*Position),
		bySymbol:  make(map[string]map[string]bool),
		byState:   make(map[State]map[string]bool),
		events:    make(map[string][]TradeEvent),
		stats:     make(map[string]*SymbolStatistics),
		hooks:     hooks,
		pnlCalc:   NewPnLCalculator(),
	}
}

// SetPnLCalculator swaps in a calculator configured with account-specific
// leverage/fees; safe to call before the manager sees any ticks.
func (m *Manager) SetPnLCalculator(calc *PnLCalculator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pnlCalc = calc
}

func (m *Manager) index(p *Position) {
	if m.bySymbol[p.Symbol] == nil {
		m.bySymbol[p.Symbol] = make(map[string]bool)
	}
	m.bySymbol[p.Symbol][p.ID] = true
	if m.byState[p.State] == nil {
		m.byState[p.State] = make(map[string]bool)
	}
	m.byState[p.State][p.ID] = true
}

func (m *Manager) reindexState(p *Position, oldState State) {
	delete(m.byState[oldState], p.ID)
	if m.byState[p.State] == nil {
		m.byState[p.State] = make(map[string]bool)
	}
	m.byState[p.State][p.ID] = true
}

func (m *Manager) record(evt TradeEvent) {
	key := evt.PositionID
	if evt.Kind == EventMarginCall {
		key = marginCallsBucket
	}
	m.events[key] = append(m.events[key], evt)
}

// Submit registers a new Pending position.
func (m *Manager) Submit(p *Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.ID] = p
	m.index(p)
}

// Open transitions id from Pending to Open.
func (m *Manager) Open(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return ErrPositionNotFound
	}
	oldState := p.State
	if err := p.Open(); err != nil {
		return err
	}
	m.reindexState(p, oldState)

	if m.hooks.OnOpen != nil {
		m.hooks.OnOpen(p)
	}
	return nil
}

// Cancel transitions id from Pending to Cancelled.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return ErrPositionNotFound
	}
	oldState := p.State
	if err := p.Cancel(); err != nil {
		return err
	}
	m.reindexState(p, oldState)

	if m.hooks.OnCancel != nil {
		m.hooks.OnCancel(p)
	}
	return nil
}

// OpenPosition is the public entry point: it builds and
// immediately fills a position (Pending -> Open in one step, since a
// backtest order fills synchronously), validates quantity/entry are
// positive, indexes it, and — if parentID names a tracked position —
// appends the new id to the parent's ChildIDs. Returns the new position's
// ID.
func (m *Manager) OpenPosition(symbol string, side Side, quantity, entryPrice float64, stopLoss *float64, takeProfit *float64, parentID string, openedAtMs int64) (string, error) {
	if quantity <= 0 || entryPrice <= 0 {
		return "", ErrInvalidQuantity
	}

	p := New(symbol, side, quantity, entryPrice, openedAtMs)
	p.State = StateOpen
	p.ParentID = parentID
	if stopLoss != nil {
		p.StopLoss, p.HasStopLoss = *stopLoss, true
	}
	if takeProfit != nil {
		p.TakeProfit, p.HasTakeProfit = *takeProfit, true
	}

	m.mu.Lock()
	m.positions[p.ID] = p
	m.index(p)
	if parentID != "" {
		if parent, ok := m.positions[parentID]; ok {
			parent.ChildIDs = append(parent.ChildIDs, p.ID)
		}
	}
	m.record(TradeEvent{Kind: EventOrderPlaced, PositionID: p.ID, Symbol: symbol, ToState: StateOpen, AtMs: openedAtMs, Price: entryPrice, Quantity: quantity})
	m.record(TradeEvent{Kind: EventOrderFilled, PositionID: p.ID, Symbol: symbol, ToState: StateOpen, AtMs: openedAtMs, Price: entryPrice, Quantity: quantity, Commission: m.pnlCalc.Commission(p)})
	m.mu.Unlock()

	if m.hooks.OnOpen != nil {
		m.hooks.OnOpen(p)
	}
	return p.ID, nil
}

// GetPosition returns a copy of the position with id, so callers cannot
// mutate internal state directly.
func (m *Manager) GetPosition(id string) (*Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Get is an alias for GetPosition returning the live pointer, retained for
// internal callers and existing tests that don't need copy semantics.
func (m *Manager) Get(id string) (*Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[id]
	return p, ok
}

// UpdatePositionPrice updates id's current price, allowed only in Pending
// or Open, and reports whether the stop-loss or take-profit was crossed.
// It does not itself close the position — closure is
// left to the caller's context, since a read-only price refresh (e.g.
// BulkUpdatePrices) must not reach into the write path uninvited;
// OnTickUpdate and OnBarComplete are the "mutable context" callers that
// close on breach.
func (m *Manager) UpdatePositionPrice(id string, price float64) (triggered bool, kind TradeEventKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return false, 0, ErrPositionNotFound
	}
	if err := p.UpdatePrice(price); err != nil {
		return false, 0, err
	}

	switch {
	case p.StopTriggered():
		m.record(TradeEvent{Kind: EventStopLossTriggered, PositionID: id, Symbol: p.Symbol, AtMs: p.OpenedAtMs, Price: price})
		return true, EventStopLossTriggered, nil
	case p.TargetTriggered():
		m.record(TradeEvent{Kind: EventTakeProfitTriggered, PositionID: id, Symbol: p.Symbol, AtMs: p.OpenedAtMs, Price: price})
		return true, EventTakeProfitTriggered, nil
	}
	return false, 0, nil
}

// closeLocked is the shared close implementation; callers must hold m.mu.
func (m *Manager) closeLocked(p *Position, exitPrice float64, atMs int64) (float64, error) {
	realized := m.pnlCalc.NetPnL(p, exitPrice)
	oldState := p.State
	if err := p.Close(exitPrice, atMs); err != nil {
		return 0, err
	}
	m.reindexState(p, oldState)
	m.updateStatsLocked(p.Symbol, realized)

	evt := TradeEvent{
		Kind:        EventPositionClosed,
		PositionID:  p.ID,
		Symbol:      p.Symbol,
		FromState:   oldState,
		ToState:     StateClosed,
		AtMs:        atMs,
		Price:       exitPrice,
		Quantity:    p.Quantity,
		RealizedPnL: realized,
	}
	m.record(evt)
	if m.hooks.OnClose != nil {
		m.hooks.OnClose(p, evt)
	}
	return realized, nil
}

func (m *Manager) updateStatsLocked(symbol string, realized float64) {
	s, ok := m.stats[symbol]
	if !ok {
		s = &SymbolStatistics{}
		m.stats[symbol] = s
	}
	s.TotalClosed++
	s.NetProfit += realized
	if realized >= 0 {
		s.TotalWins++
		s.GrossProfit += realized
		if realized > s.LargestWin {
			s.LargestWin = realized
		}
	} else {
		s.TotalLosses++
		s.GrossLoss += -realized
		if -realized > s.LargestLoss {
			s.LargestLoss = -realized
		}
	}
}

// ClosePosition transitions id from Open to Closed at exitPrice/atMs,
// computing and returning realized P&L, recording a TradeEvent, and
// updating per-symbol statistics.
func (m *Manager) ClosePosition(id string, exitPrice float64, atMs int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return 0, ErrPositionNotFound
	}
	return m.closeLocked(p, exitPrice, atMs)
}

// CloseAt is a realized-P&L-discarding alias of ClosePosition, retained for
// callers that only need the error result.
func (m *Manager) CloseAt(id string, exitPrice float64, closedAtMs int64) error {
	_, err := m.ClosePosition(id, exitPrice, closedAtMs)
	return err
}

// PartialClosePosition closes qty of id's quantity at price/atMs, pro-rating
// realized P&L by qty/quantity and decrementing the remaining quantity. If
// the remaining quantity reaches zero the position is fully closed. qty
// must not exceed the position's current quantity.
func (m *Manager) PartialClosePosition(id string, qty, price float64, atMs int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return 0, ErrPositionNotFound
	}
	if p.State != StateOpen {
		return 0, ErrInvalidTransition
	}
	if qty <= 0 || qty > p.Quantity {
		return 0, ErrQuantityExceedsPosition
	}

	portion := *p
	portion.Quantity = qty
	portion.Commission = p.Commission * qty / p.Quantity
	portion.Swap = p.Swap * qty / p.Quantity
	realized := m.pnlCalc.NetPnL(&portion, price)

	remaining := p.Quantity - qty
	if remaining <= 1e-9 {
		return m.closeLocked(p, price, atMs)
	}

	p.Quantity = remaining
	p.Commission -= portion.Commission
	p.Swap -= portion.Swap
	m.record(TradeEvent{
		Kind: EventOrderFilled, PositionID: id, Symbol: p.Symbol, AtMs: atMs,
		Price: price, Quantity: qty, RealizedPnL: realized,
	})
	return realized, nil
}

// BulkUpdatePrices updates CurrentPrice for every open position of each
// symbol named in prices. It holds the manager's write lock for the whole
// pass, iterating the live symbol index without first copying its keys;
// other write paths wait until it finishes.
func (m *Manager) BulkUpdatePrices(prices map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for symbol, price := range prices {
		for id := range m.bySymbol[symbol] {
			p := m.positions[id]
			if p.State == StateOpen {
				_ = p.UpdatePrice(price)
			}
		}
	}
}

// BySymbol returns every position (any state) for symbol.
func (m *Manager) BySymbol(symbol string) []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.bySymbol[symbol]
	out := make([]*Position, 0, len(ids))
	for id := range ids {
		out = append(out, m.positions[id])
	}
	return out
}

// ByState returns every position currently in state.
func (m *Manager) ByState(state State) []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byState[state]
	out := make([]*Position, 0, len(ids))
	for id := range ids {
		out = append(out, m.positions[id])
	}
	return out
}

// OpenPositions returns every Open position for symbol.
func (m *Manager) OpenPositions(symbol string) []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Position
	for id := range m.bySymbol[symbol] {
		if p := m.positions[id]; p.State == StateOpen {
			out = append(out, p)
		}
	}
	return out
}

// Children returns every position whose ParentID is parentID.
func (m *Manager) Children(parentID string) []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Position
	for _, p := range m.positions {
		if p.ParentID == parentID {
			out = append(out, p)
		}
	}
	return out
}

// EventsFor returns a copy of the full trade event log for id, or the
// dedicated margin-call bucket when id is "margin_calls".
func (m *Manager) EventsFor(id string) []TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.events[id]
	out := make([]TradeEvent, len(src))
	copy(out, src)
	return out
}

// Events returns every recorded event across all positions and the
// margin-calls bucket, in no particular cross-key order (retained for
// callers of the original flat log).
func (m *Manager) Events() []TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TradeEvent
	for _, evts := range m.events {
		out = append(out, evts...)
	}
	return out
}

// LogEvent appends an arbitrary trade event to the log, for callers
// (order executors, risk engines) that produce events outside the
// manager's own transitions.
func (m *Manager) LogEvent(evt TradeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(evt)
}

// GetPositionEvents returns the chronological event log for positionID.
func (m *Manager) GetPositionEvents(positionID string) []TradeEvent {
	return m.EventsFor(positionID)
}

// ClearEvents drops the entire trade event log, every position and the
// margin-call bucket included.
func (m *Manager) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]TradeEvent)
}

// RecordMarginCall appends a MarginCall event to the dedicated bucket.
// Risk engines external to this package call this when
// they detect the account's used margin exceeds its equity.
func (m *Manager) RecordMarginCall(symbol string, atMs int64, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(TradeEvent{Kind: EventMarginCall, Symbol: symbol, AtMs: atMs, Price: price})
}

// OnTick recomputes unrealized metrics for every Open position on symbol
// against the latest mid price, without mutating position state. Returns
// net P&L keyed by position ID.
func (m *Manager) OnTick(symbol string, markPrice float64) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64)
	for id := range m.bySymbol[symbol] {
		p := m.positions[id]
		if p.State != StateOpen {
			continue
		}
		out[id] = m.pnlCalc.NetPnL(p, markPrice)
	}
	return out
}

// OnTickUpdate implements interfaces.PositionEventHandler's mutable-context
// tick hook: every open position on symbol is priced at
// bid (Long exit) or ask (Short exit), and a stop/target breach closes the
// position immediately.
func (m *Manager) OnTickUpdate(tick models.Tick, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.bySymbol[symbol] {
		p := m.positions[id]
		if p.State != StateOpen {
			continue
		}
		exit := tick.Bid
		if p.Side == SideShort {
			exit = tick.Ask
		}
		if err := p.UpdatePrice(exit); err != nil {
			continue
		}
		if p.StopTriggered() {
			m.record(TradeEvent{Kind: EventStopLossTriggered, PositionID: id, Symbol: symbol, AtMs: tick.Timestamp, Price: exit})
			m.closeLocked(p, exit, tick.Timestamp)
		} else if p.TargetTriggered() {
			m.record(TradeEvent{Kind: EventTakeProfitTriggered, PositionID: id, Symbol: symbol, AtMs: tick.Timestamp, Price: exit})
			m.closeLocked(p, exit, tick.Timestamp)
		}
	}
}

// OnBarComplete implements interfaces.PositionEventHandler's bar hook:
// positions are priced at the bar's close and a breach
// closes the position.
func (m *Manager) OnBarComplete(bar models.Bar, tf models.Timeframe, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.bySymbol[symbol] {
		p := m.positions[id]
		if p.State != StateOpen {
			continue
		}
		if err := p.UpdatePrice(bar.Close); err != nil {
			continue
		}
		if p.StopTriggered() {
			m.record(TradeEvent{Kind: EventStopLossTriggered, PositionID: id, Symbol: symbol, AtMs: bar.TimestampEndMs, Price: bar.Close})
			m.closeLocked(p, bar.Close, bar.TimestampEndMs)
		} else if p.TargetTriggered() {
			m.record(TradeEvent{Kind: EventTakeProfitTriggered, PositionID: id, Symbol: symbol, AtMs: bar.TimestampEndMs, Price: bar.Close})
			m.closeLocked(p, bar.Close, bar.TimestampEndMs)
		}
	}
}

// OnIndicatorUpdate implements interfaces.PositionEventHandler's indicator
// hook. It is reserved for strategy-level adjustments; the manager applies
// no default side effect.
func (m *Manager) OnIndicatorUpdate(value float64, tf models.Timeframe, symbol string) {}

// GetTotalFloatingPnL sums unrealized net P&L across every open position.
func (m *Manager) GetTotalFloatingPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for id := range m.byState[StateOpen] {
		p := m.positions[id]
		total += m.pnlCalc.NetPnL(p, p.CurrentPrice)
	}
	return total
}

// GetFloatingPnLBySymbol sums unrealized net P&L per symbol.
func (m *Manager) GetFloatingPnLBySymbol() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64)
	for id := range m.byState[StateOpen] {
		p := m.positions[id]
		out[p.Symbol] += m.pnlCalc.NetPnL(p, p.CurrentPrice)
	}
	return out
}

// CalculateTotalMargin sums the margin required to hold every open
// position at its entry price.
func (m *Manager) CalculateTotalMargin() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for id := range m.byState[StateOpen] {
		p := m.positions[id]
		total += m.pnlCalc.MarginRequired(p, p.EntryPrice)
	}
	return total
}

// GetStatistics returns a copy of symbol's closed-trade statistics, or a
// zero value if nothing has closed yet.
func (m *Manager) GetStatistics(symbol string) SymbolStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.stats[symbol]; ok {
		return *s
	}
	return SymbolStatistics{}
}

// CountOpenPositions returns the number of positions currently Open.
func (m *Manager) CountOpenPositions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byState[StateOpen])
}

// CountTotalPositions returns the number of tracked positions, any state.
func (m *Manager) CountTotalPositions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// Count is retained as an alias of CountTotalPositions.
func (m *Manager) Count() int {
	return m.CountTotalPositions()
}

// ClearClosedPositions removes every terminal (Closed or Cancelled)
// position from the store and its indices, freeing memory for long-running
// backtests. Event history for removed positions is retained.
func (m *Manager) ClearClosedPositions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int
	for id, p := range m.positions {
		if p.State != StateClosed && p.State != StateCancelled {
			continue
		}
		delete(m.positions, id)
		delete(m.bySymbol[p.Symbol], id)
		delete(m.byState[p.State], id)
		removed++
	}
	return removed
}

// Snapshot returns copies of every tracked position and the full event
// log, used by the checkpoint layer.
func (m *Manager) Snapshot() ([]*Position, []TradeEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	positions := make([]*Position, 0, len(m.positions))
	for _, p := range m.positions {
		positions = append(positions, p.Clone())
	}
	var events []TradeEvent
	for _, evts := range m.events {
		events = append(events, evts...)
	}
	return positions, events
}

// Restore repopulates the manager from a checkpointed position list and
// event log, rebuilding every secondary index and statistics bucket.
func (m *Manager) Restore(positions []*Position, events []TradeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.positions = make(map[string]*Position, len(positions))
	m.bySymbol = make(map[string]map[string]bool)
	m.byState = make(map[State]map[string]bool)
	m.stats = make(map[string]*SymbolStatistics)

	for _, p := range positions {
		m.positions[p.ID] = p
		m.index(p)
	}
	m.events = make(map[string][]TradeEvent, len(events))
	for _, evt := range events {
		m.record(evt)
		if evt.Kind == EventPositionClosed {
			m.updateStatsLocked(evt.Symbol, evt.RealizedPnL)
		}
	}
}
