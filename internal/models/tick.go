package models

import "math"

// Tick is an immutable bid/ask quote event for a symbol.
type Tick struct {
	ID        string
	Symbol    string
	Timestamp int64 // milliseconds since epoch
	Bid       float64
	Ask       float64
	BidSize   float64
	AskSize   float64
	HasSizes  bool
}

// Mid returns the tick's mid-price (bid+ask)/2, the canonical
// bar-building price.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// TickVolume returns bid_size + ask_size when both sides are present, else 0.
func (t Tick) TickVolume() float64 {
	if !t.HasSizes {
		return 0
	}
	return t.BidSize + t.AskSize
}

// Validate enforces the tick ingestion contract: finite,
// non-NaN bid/ask, bid <= ask, timestamp >= 0, non-empty symbol. Returns a
// typed *InvalidTickError naming the reason; no state is mutated by the
// caller on a non-nil return.
func (t Tick) Validate() error {
	if t.Symbol == "" {
		return &InvalidTickError{Reason: "empty symbol"}
	}
	if t.Timestamp < 0 {
		return &InvalidTickError{Reason: "negative timestamp"}
	}
	if math.IsNaN(t.Bid) || math.IsNaN(t.Ask) || math.IsInf(t.Bid, 0) || math.IsInf(t.Ask, 0) {
		return &InvalidTickError{Reason: "non-finite bid/ask"}
	}
	if t.Bid > t.Ask {
		return &InvalidTickError{Reason: "bid greater than ask"}
	}
	return nil
}
