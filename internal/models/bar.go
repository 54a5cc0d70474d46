package models

// Bar is an immutable, completed OHLCV aggregate over a timeframe
// window, created only when a timeframe state completes a bar.
type Bar struct {
	ID               string
	Symbol           string
	Timeframe        Timeframe
	TimestampStartMs int64
	TimestampEndMs   int64
	Open             float64
	High             float64
	Low              float64
	Close            float64
	Volume           float64
	TickCount        int64
}

// Validate enforces the bar invariant:
// low <= min(open,close) <= max(open,close) <= high, and the window
// duration matches the timeframe's exact millisecond length.
func (b Bar) Validate() error {
	lo := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	hi := b.Open
	if b.Close > hi {
		hi = b.Close
	}
	if b.Low > lo || hi > b.High {
		return ErrInvalidBar
	}
	if b.TimestampEndMs-b.TimestampStartMs != b.Timeframe.DurationMs() {
		return ErrInvalidBar
	}
	if b.Volume < 0 {
		return ErrInvalidVolume
	}
	return nil
}

// PartialBar is the in-progress bar for the currently open window of a
// given (symbol, timeframe). At most one exists per
// (symbol, timeframe) at a time; it is replaced wholesale, never mutated
// through an outstanding reference, on completion.
type PartialBar struct {
	Symbol               string
	Timeframe            Timeframe
	BarStartMs           int64
	BarEndMs             int64
	Open                 float64
	High                 float64
	Low                  float64
	Close                float64
	Volume               float64
	TickCount            int64
	CompletionPercentage float64
	MsElapsed            int64
	MsRemaining          int64
}

// ToBar converts a partial into its completed form.
func (p PartialBar) ToBar() Bar {
	return Bar{
		Symbol:           p.Symbol,
		Timeframe:        p.Timeframe,
		TimestampStartMs: p.BarStartMs,
		TimestampEndMs:   p.BarEndMs,
		Open:             p.Open,
		High:             p.High,
		Low:              p.Low,
		Close:            p.Close,
		Volume:           p.Volume,
		TickCount:        p.TickCount,
	}
}
