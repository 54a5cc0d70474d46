// Package bar implements the partial-bar builder and bounded per-timeframe
// completed-bar history. It is the
// layer directly below internal/mtf: one bar.TimeframeState tracks a single
// (symbol, timeframe) pair's open window and its ring of completed bars.
package bar

import "github.com/ashgroveq/mtfengine/internal/models"

// newPartial seeds a fresh partial bar from the first tick observed in a
// window: open=high=low=close=price, volume=tick volume,
// tick_count=1.
func newPartial(symbol string, tf models.Timeframe, barStart, barEnd int64, tick models.Tick) models.PartialBar {
	price := tick.Mid()
	p := models.PartialBar{
		Symbol:     symbol,
		Timeframe:  tf,
		BarStartMs: barStart,
		BarEndMs:   barEnd,
		Open:       price,
		High:       price,
		Low:        price,
		Close:      price,
		Volume:     tick.TickVolume(),
		TickCount:  1,
	}
	updateDerived(&p, tick.Timestamp)
	return p
}

// applyTick folds a subsequent tick into an already-open partial:
// high=max(high,price), low=min(low,price), close=price,
// volume+=tick volume, tick_count+=1.
func applyTick(p *models.PartialBar, tick models.Tick) {
	price := tick.Mid()
	if price > p.High {
		p.High = price
	}
	if price < p.Low {
		p.Low = price
	}
	p.Close = price
	p.Volume += tick.TickVolume()
	p.TickCount++
	updateDerived(p, tick.Timestamp)
}

// updateDerived recomputes the completion percentage and elapsed/remaining
// milliseconds for the partial, given the timestamp of the tick that last
// touched it.
func updateDerived(p *models.PartialBar, tMs int64) {
	duration := p.BarEndMs - p.BarStartMs
	elapsed := tMs - p.BarStartMs
	if elapsed < 0 {
		elapsed = 0
	}
	p.MsElapsed = elapsed
	remaining := p.BarEndMs - tMs
	if remaining < 0 {
		remaining = 0
	}
	p.MsRemaining = remaining
	if duration <= 0 {
		p.CompletionPercentage = 100
		return
	}
	pct := 100 * float64(elapsed) / float64(duration)
	p.CompletionPercentage = clampPct(pct)
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// IsComplete reports whether the partial's window has closed for the given
// tick timestamp: t >= bar_end or completion reached 100%.
func IsComplete(p models.PartialBar, tMs int64) bool {
	return tMs >= p.BarEndMs || p.CompletionPercentage >= 100
}
