package mtf

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// ErrCapacityExceeded is returned when a new symbol would push the manager
// past MaxSymbols.
type ErrCapacityExceeded struct {
	MaxSymbols int
}

func (e *ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("mtf: capacity exceeded, max_symbols=%d", e.MaxSymbols)
}

// Rough per-entity costs used by MemoryUsageEstimate; they do not need to
// be exact, only proportionally useful for capacity planning.
const (
	bytesPerBar            = 100
	bytesPerTimeframeState = 164
	bytesPerSymbolState    = 128
)

// Manager tracks SymbolState per symbol with a hard capacity limit:
// double-checked locking on the read path, a single exclusive section on
// the create path.
type Manager struct {
	mu                 sync.RWMutex
	symbols            map[string]*SymbolState
	maxSymbols         int
	enabledTimeframes  []models.Timeframe
	historyLimit       int
	dailyCloseOffsetMs int64
}

// NewManager builds a manager with the given capacity and per-symbol
// configuration.
func NewManager(maxSymbols int, enabledTimeframes []models.Timeframe, historyLimit int, dailyCloseOffsetMs int64) *Manager {
	return &Manager{
		symbols:            make(map[string]*SymbolState),
		maxSymbols:         maxSymbols,
		enabledTimeframes:  enabledTimeframes,
		historyLimit:       historyLimit,
		dailyCloseOffsetMs: dailyCloseOffsetMs,
	}
}

// GetOrCreateState returns the SymbolState for symbol, creating it if this
// is the first tick seen for it. Double-checked locking: an RLock fast path
// serves the common case of an already-registered symbol; only first-sight
// symbols pay for the exclusive lock.
func (m *Manager) GetOrCreateState(symbol string) (*SymbolState, error) {
	m.mu.RLock()
	if st, ok := m.symbols[symbol]; ok {
		m.mu.RUnlock()
		return st, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.symbols[symbol]; ok {
		return st, nil
	}
	if m.maxSymbols > 0 && len(m.symbols) >= m.maxSymbols {
		return nil, &ErrCapacityExceeded{MaxSymbols: m.maxSymbols}
	}
	st := NewSymbolState(symbol, m.enabledTimeframes, m.historyLimit, m.dailyCloseOffsetMs)
	m.symbols[symbol] = st
	return st, nil
}

// ProcessTick validates and routes tick to its symbol's state, creating the
// state on first sight, and returns any bars the tick completed.
func (m *Manager) ProcessTick(tick models.Tick) ([]models.Bar, error) {
	if err := tick.Validate(); err != nil {
		return nil, err
	}
	st, err := m.GetOrCreateState(tick.Symbol)
	if err != nil {
		return nil, err
	}
	return st.ProcessTick(tick), nil
}

// GetSymbolState returns the state for symbol, or (nil, false) if unknown.
func (m *Manager) GetSymbolState(symbol string) (*SymbolState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.symbols[symbol]
	return st, ok
}

// GetAllSymbols returns every tracked symbol, sorted for deterministic
// iteration.
func (m *Manager) GetAllSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.symbols))
	for sym := range m.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// ClearSymbol drops a symbol's state entirely, freeing its memory.
func (m *Manager) ClearSymbol(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.symbols, symbol)
}

// ClearAll drops every tracked symbol.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols = make(map[string]*SymbolState)
}

// Count returns the number of currently tracked symbols.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.symbols)
}

// MemoryUsageEstimate returns a rough byte estimate of retained bar
// history across all symbols and timeframes, for capacity-planning
// diagnostics. It is an estimate, not an exact accounting: each completed
// bar is costed at bytesPerBar regardless of its field values.
func (m *Manager) MemoryUsageEstimate() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for sym, st := range m.symbols {
		total += int64(len(sym)) + bytesPerSymbolState
		st.mu.RLock()
		for _, tf := range st.order {
			_, completed, _ := st.states[tf].Snapshot()
			total += int64(len(completed))*bytesPerBar + bytesPerTimeframeState
		}
		st.mu.RUnlock()
	}
	return total
}

// ManagerSnapshot is a consistent view of every tracked symbol, used by the
// checkpoint layer.
type ManagerSnapshot struct {
	Symbols map[string]SymbolSnapshot
}

// Snapshot captures every symbol's state. Each symbol is snapshotted
// independently under its own lock; the manager-level RLock only protects
// the registry membership; consistency is guaranteed per symbol, not
// across symbols.
func (m *Manager) Snapshot() ManagerSnapshot {
	m.mu.RLock()
	symbols := make([]string, 0, len(m.symbols))
	states := make(map[string]*SymbolState, len(m.symbols))
	for sym, st := range m.symbols {
		symbols = append(symbols, sym)
		states[sym] = st
	}
	m.mu.RUnlock()

	out := ManagerSnapshot{Symbols: make(map[string]SymbolSnapshot, len(symbols))}
	for _, sym := range symbols {
		out.Symbols[sym] = states[sym].Snapshot()
	}
	return out
}

// Restore repopulates the manager from a snapshot, creating SymbolStates as
// needed. Capacity limits are bypassed during restore: a checkpoint taken
// before a capacity reduction must still load in full, so operators can see
// and explicitly evict.
func (m *Manager) Restore(snap ManagerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sym, symSnap := range snap.Symbols {
		st, ok := m.symbols[sym]
		if !ok {
			st = NewSymbolState(sym, m.enabledTimeframes, m.historyLimit, m.dailyCloseOffsetMs)
			m.symbols[sym] = st
		}
		st.Restore(symSnap)
	}
}
