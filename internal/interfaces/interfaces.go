// Package interfaces defines the narrow contracts the core exposes to
// external collaborators: an order executor, a risk engine, an external
// position store, and a trade logger. internal/position, internal/engine,
// and internal/pubsub provide the production implementations; the only
// implementation living here is MockPositionHandler, a test double for
// wiring tests. Contracts are kept as small, single-purpose interfaces
// rather than one god-interface, so implementations and their callers
// depend on a contract rather than on each other's concrete types.
package interfaces

import (
	"github.com/ashgroveq/mtfengine/internal/models"
	"github.com/ashgroveq/mtfengine/internal/position"
)

// PositionEventHandler is notified of tick, bar, and indicator updates so
// it can adjust simulated orders. internal/position.Manager
// implements this contract via its OnTickUpdate/OnBarComplete/OnIndicatorUpdate methods.
type PositionEventHandler interface {
	OnBarComplete(bar models.Bar, tf models.Timeframe, symbol string)
	OnTickUpdate(tick models.Tick, symbol string)
	OnIndicatorUpdate(value float64, tf models.Timeframe, symbol string)
}

// Spread is a symbol's current best bid/ask, used by ExecutionContext to
// price simulated fills.
type Spread struct {
	Bid float64
	Ask float64
}

// ExecutionContext is the read-only view of live MTF state an order
// executor needs to price and gate simulated fills.
type ExecutionContext interface {
	GetCurrentSpread(symbol string) (Spread, bool)
	GetBarContext(symbol string, tf models.Timeframe) (models.Bar, bool)
	IsMarketOpen(symbol string, timestampMs int64) bool
	GetLastTickTime(symbol string) (int64, bool)
}

// RiskContext is the read-only view a risk engine needs to size and gate
// new positions: indicator lookups for adaptive sizing, an
// ATR-based volatility proxy, margin requirement, and account state.
type RiskContext interface {
	IndicatorValue(symbol string, tf models.Timeframe, name string) (float64, bool)
	Volatility(symbol string, tf models.Timeframe) (float64, bool)
	MarginRequired(symbol string, quantity, price float64) float64
	AccountBalance() float64
	UsedMargin() float64
}

// PositionSnapshot is the opaque-to-the-store wire form of the position
// manager's full state, handed to an external PositionStateStore.
type PositionSnapshot struct {
	TimestampMs    int64
	Version        uint32
	PositionsData  []byte // opaque to the store; owned/decoded by internal/position
	AccountBalance float64
	UsedMargin     float64
	FloatingPnL    float64
}

// PositionStateStore persists and restores PositionSnapshots for an
// external collaborator. internal/pubsub provides a
// Redis-backed implementation; a no-op or in-memory implementation is
// equally valid for tests.
type PositionStateStore interface {
	SavePositions(snapshot PositionSnapshot) error
	RestorePositions() (PositionSnapshot, error)
	IsCompatibleWithMTF(version uint32) bool
	ClearPositionSnapshots() error
	GetLatestSnapshotTime() (int64, bool)
}

// ExecutionModel selects how an order executor prices simulated fills.
type ExecutionModel int

const (
	// ExecutionPerfect fills at exact requested prices, for ideal-case
	// testing.
	ExecutionPerfect ExecutionModel = iota
	// ExecutionRealistic applies spread and slippage to fills.
	ExecutionRealistic
	// ExecutionWorstCase fills at the worst plausible price, for stress
	// testing.
	ExecutionWorstCase
)

func (m ExecutionModel) String() string {
	switch m {
	case ExecutionRealistic:
		return "realistic"
	case ExecutionWorstCase:
		return "worst_case"
	default:
		return "perfect"
	}
}

// TradeLogger records position lifecycle events and serves them back per
// position. internal/position.Manager implements this over its internal
// event log.
type TradeLogger interface {
	LogEvent(evt position.TradeEvent)
	GetPositionEvents(positionID string) []position.TradeEvent
	ClearEvents()
}

var _ TradeLogger = (*position.Manager)(nil)
