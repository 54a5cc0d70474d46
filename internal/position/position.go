// Package position implements the position lifecycle state machine, P&L
// accounting, and the concurrent position store: plain value structs with
// an explicit state machine rather than ad hoc lot bookkeeping.
package position

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State is a position's lifecycle stage.
type State int

const (
	StatePending State = iota
	StateOpen
	StateClosed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Side is the direction of a position.
type Side int

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	if s == SideShort {
		return "short"
	}
	return "long"
}

var (
	// ErrInvalidTransition is returned when a state transition is not
	// permitted from the position's current state.
	ErrInvalidTransition = errors.New("position: invalid state transition")
	ErrPositionNotFound  = errors.New("position: not found")
	// ErrInvalidQuantity is returned by OpenPosition for non-positive
	// quantity/entry price.
	ErrInvalidQuantity = errors.New("position: quantity and entry price must be positive")
	// ErrQuantityExceedsPosition guards partial closes.
	ErrQuantityExceedsPosition = errors.New("position: close quantity exceeds remaining quantity")
)

// transitions lists the only legal state-machine edges:
// Pending -> Open | Cancelled; Open -> Closed | Pending (partial fills).
var transitions = map[State]map[State]bool{
	StatePending: {StateOpen: true, StateCancelled: true},
	StateOpen:    {StateClosed: true, StatePending: true},
}

// Position is one tracked trade, from submission through close.
// ParentID/ChildIDs link hierarchical positions (e.g. partial fills or
// scale-ins) by ID only — a relation and lookup, never an ownership
// pointer — so removing a parent never dangles a child.
type Position struct {
	ID           string
	ParentID     string
	ChildIDs     []string
	Symbol       string
	Side         Side
	State        State
	Quantity     float64
	EntryPrice   float64
	CurrentPrice float64
	ExitPrice    float64
	OpenedAtMs   int64
	ClosedAtMs   int64
	StopLoss     float64
	HasStopLoss  bool
	TakeProfit   float64
	HasTakeProfit bool
	Commission   float64
	Swap         float64
	Metadata     map[string]string
}

// New creates a Pending position with a freshly generated ID.
func New(symbol string, side Side, quantity, entryPrice float64, openedAtMs int64) *Position {
	return &Position{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Side:         side,
		State:        StatePending,
		Quantity:     quantity,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		OpenedAtMs:   openedAtMs,
		Metadata:     make(map[string]string),
	}
}

// Clone returns a deep-enough copy safe for a caller to read or mutate
// without affecting the manager's internal state.
func (p *Position) Clone() *Position {
	cp := *p
	if p.ChildIDs != nil {
		cp.ChildIDs = make([]string, len(p.ChildIDs))
		copy(cp.ChildIDs, p.ChildIDs)
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Transition moves the position to newState, validating the edge against
// the state machine. The position is left unchanged on
// error.
func (p *Position) Transition(newState State) error {
	allowed, ok := transitions[p.State]
	if !ok || !allowed[newState] {
		return ErrInvalidTransition
	}
	p.State = newState
	return nil
}

// Open transitions Pending -> Open.
func (p *Position) Open() error {
	return p.Transition(StateOpen)
}

// Cancel transitions Pending -> Cancelled.
func (p *Position) Cancel() error {
	return p.Transition(StateCancelled)
}

// Regress transitions Open -> Pending, modeling a partial fill being
// unwound.
func (p *Position) Regress() error {
	return p.Transition(StatePending)
}

// Close transitions Open -> Closed, recording the exit price and time.
func (p *Position) Close(exitPrice float64, closedAtMs int64) error {
	if err := p.Transition(StateClosed); err != nil {
		return err
	}
	p.ExitPrice = exitPrice
	p.CurrentPrice = exitPrice
	p.ClosedAtMs = closedAtMs
	return nil
}

// UpdatePrice sets CurrentPrice, allowed only while Pending or Open.
func (p *Position) UpdatePrice(price float64) error {
	if p.State != StatePending && p.State != StateOpen {
		return ErrInvalidTransition
	}
	p.CurrentPrice = price
	return nil
}

// StopTriggered reports whether CurrentPrice has crossed StopLoss, per
// Long triggers when current <= stop, Short when
// current >= stop.
func (p *Position) StopTriggered() bool {
	if !p.HasStopLoss {
		return false
	}
	if p.Side == SideLong {
		return p.CurrentPrice <= p.StopLoss
	}
	return p.CurrentPrice >= p.StopLoss
}

// TargetTriggered reports whether CurrentPrice has crossed TakeProfit, per
// Long triggers when current >= target, Short when
// current <= target.
func (p *Position) TargetTriggered() bool {
	if !p.HasTakeProfit {
		return false
	}
	if p.Side == SideLong {
		return p.CurrentPrice >= p.TakeProfit
	}
	return p.CurrentPrice <= p.TakeProfit
}

// HoldDuration returns the time between open and close (or now, if still
// open) as a time.Duration.
func (p *Position) HoldDuration(nowMs int64) time.Duration {
	end := p.ClosedAtMs
	if p.State != StateClosed {
		end = nowMs
	}
	return time.Duration(end-p.OpenedAtMs) * time.Millisecond
}
