package session

import (
	"math"
	"time"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// GapKind classifies a detected time gap between consecutive bars, in
// priority order.
type GapKind int

const (
	GapNone GapKind = iota
	GapWeekend
	GapHoliday
	GapPrice
	GapData
	GapUnknown
)

func (k GapKind) String() string {
	switch k {
	case GapWeekend:
		return "Weekend"
	case GapHoliday:
		return "Holiday"
	case GapPrice:
		return "Price"
	case GapData:
		return "Data"
	case GapUnknown:
		return "Unknown"
	default:
		return "None"
	}
}

// priceGapThreshold is the 0.5% open-vs-prior-close move that classifies
// a gap as a Price gap.
const priceGapThreshold = 0.005

// GapDetector flags unexpected time gaps between consecutive bars.
type GapDetector struct {
	MaxGapDuration time.Duration
	Schedule       *MarketSchedule
}

// NewGapDetector builds a detector with the given maximum expected gap.
func NewGapDetector(maxGap time.Duration, schedule *MarketSchedule) *GapDetector {
	return &GapDetector{MaxGapDuration: maxGap, Schedule: schedule}
}

// HasGap reports whether the gap between consecutive bars a and b should be
// reported: gap > max_gap_duration AND not an expected gap.
func (g *GapDetector) HasGap(a, b models.Bar) bool {
	gapMs := b.TimestampStartMs - a.TimestampEndMs
	if gapMs <= int64(g.MaxGapDuration/time.Millisecond) {
		return false
	}
	return !g.isExpectedGap(a, b)
}

// Classify returns the GapKind for the transition a -> b following the
// priority order Weekend -> Holiday -> Price -> Data -> Unknown. Returns
// GapNone if there is no gap at all.
func (g *GapDetector) Classify(a, b models.Bar) GapKind {
	gapMs := b.TimestampStartMs - a.TimestampEndMs
	if gapMs <= 0 {
		return GapNone
	}
	if g.isWeekendTransition(a, b) {
		return GapWeekend
	}
	if g.isHolidayBetween(a, b) {
		return GapHoliday
	}
	if g.isPriceGap(a, b) {
		return GapPrice
	}
	if gapMs > int64(g.MaxGapDuration/time.Millisecond) {
		return GapData
	}
	return GapUnknown
}

func (g *GapDetector) isExpectedGap(a, b models.Bar) bool {
	return g.isWeekendTransition(a, b) || g.isHolidayBetween(a, b)
}

// isWeekendTransition treats a Friday-close -> Sunday/Monday-open jump as
// expected, regardless of the exact hour.
func (g *GapDetector) isWeekendTransition(a, b models.Bar) bool {
	loc := time.UTC
	if g.Schedule != nil {
		loc = g.Schedule.Hours.Location
	}
	aEnd := time.UnixMilli(a.TimestampEndMs).In(loc)
	bStart := time.UnixMilli(b.TimestampStartMs).In(loc)
	if aEnd.Weekday() != time.Friday {
		return false
	}
	return bStart.Weekday() == time.Sunday || bStart.Weekday() == time.Monday
}

// isHolidayBetween reports whether a holiday falls on a's end date or on a
// later date reached from a's end in one-day steps without passing b's
// start. a's end date is always checked; b's start date is checked only
// when b starts no earlier in the day than a ended.
func (g *GapDetector) isHolidayBetween(a, b models.Bar) bool {
	if g.Schedule == nil {
		return false
	}
	loc := g.Schedule.Hours.Location
	cursor := time.UnixMilli(a.TimestampEndMs).In(loc)
	end := time.UnixMilli(b.TimestampStartMs).In(loc)
	for d := cursor.AddDate(0, 0, 0); !d.After(end); d = d.AddDate(0, 0, 1) {
		if g.Schedule.IsHoliday(d) {
			return true
		}
		if !d.Before(end) {
			break
		}
	}
	return false
}

// isPriceGap reports a jump in open vs. prior close exceeding 0.5%.
func (g *GapDetector) isPriceGap(a, b models.Bar) bool {
	mid := (b.Open + a.Close) / 2
	if mid == 0 {
		return false
	}
	return math.Abs(b.Open-a.Close)/mid > priceGapThreshold
}

// FillGap synthesizes flat bars at the previous close, at tf's cadence,
// from a's end up to (but not including) b's start.
func FillGap(a models.Bar, b models.Bar, tf models.Timeframe) []models.Bar {
	var filled []models.Bar
	step := tf.DurationMs()
	for start := a.TimestampEndMs; start < b.TimestampStartMs; start += step {
		end := start + step
		if end > b.TimestampStartMs {
			break
		}
		filled = append(filled, models.Bar{
			Symbol:           a.Symbol,
			Timeframe:        tf,
			TimestampStartMs: start,
			TimestampEndMs:   end,
			Open:             a.Close,
			High:             a.Close,
			Low:              a.Close,
			Close:            a.Close,
			Volume:           0,
			TickCount:        0,
		})
	}
	return filled
}
