package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// A Friday-close -> Sunday-open transition is an
// expected gap and classifies as Weekend.
func TestGapDetector_WeekendGap(t *testing.T) {
	loc := time.UTC
	hours := ForexHours("EURUSD")
	hours.Location = loc
	schedule := NewMarketSchedule(hours)
	det := NewGapDetector(48*time.Hour, schedule)

	fridayEnd := time.Date(2024, 1, 5, 16, 59, 0, 0, loc)
	sundayStart := time.Date(2024, 1, 7, 17, 0, 0, 0, loc)

	a := models.Bar{Symbol: "EURUSD", Timeframe: models.H1, TimestampEndMs: fridayEnd.UnixMilli()}
	b := models.Bar{Symbol: "EURUSD", Timeframe: models.H1, TimestampStartMs: sundayStart.UnixMilli()}

	assert.False(t, det.HasGap(a, b))
	assert.Equal(t, GapWeekend, det.Classify(a, b))
}

func TestGapDetector_PriceGapClassification(t *testing.T) {
	det := NewGapDetector(time.Hour, nil)
	a := models.Bar{Symbol: "EURUSD", TimestampEndMs: 0, Close: 1.1000}
	b := models.Bar{Symbol: "EURUSD", TimestampStartMs: 61 * 60 * 1000, Open: 1.1100}
	assert.Equal(t, GapPrice, det.Classify(a, b))
}

func TestGapDetector_DataGapFallback(t *testing.T) {
	det := NewGapDetector(time.Hour, nil)
	a := models.Bar{Symbol: "EURUSD", TimestampEndMs: 0, Close: 1.1000}
	b := models.Bar{Symbol: "EURUSD", TimestampStartMs: 61 * 60 * 1000, Open: 1.1001}
	assert.Equal(t, GapData, det.Classify(a, b))
}

func TestFillGap_SynthesizesFlatBars(t *testing.T) {
	a := models.Bar{Symbol: "EURUSD", Close: 1.10, TimestampEndMs: 0}
	b := models.Bar{Symbol: "EURUSD", TimestampStartMs: models.M1.DurationMs() * 3}
	filled := FillGap(a, b, models.M1)
	assert.Len(t, filled, 3)
	for _, bar := range filled {
		assert.Equal(t, 1.10, bar.Open)
		assert.Equal(t, 1.10, bar.Close)
	}
}

func TestSessionManager_DailyBoundary(t *testing.T) {
	hours := ForexHours("EURUSD")
	hours.Location = time.UTC
	sm := NewSessionManager(NewMarketSchedule(hours))
	sm.DailyClose = 17 * time.Hour

	boundary := time.Date(2024, 1, 4, 17, 0, 0, 0, time.UTC)
	assert.True(t, sm.IsSessionBoundary(models.D1, boundary.UnixMilli()))

	notBoundary := time.Date(2024, 1, 4, 16, 59, 0, 0, time.UTC)
	assert.False(t, sm.IsSessionBoundary(models.D1, notBoundary.UnixMilli()))
}

func TestSessionManager_H4Boundary(t *testing.T) {
	hours := ForexHours("EURUSD")
	hours.Location = time.UTC
	sm := NewSessionManager(NewMarketSchedule(hours))

	boundary := time.Date(2024, 1, 4, 8, 0, 0, 0, time.UTC)
	assert.True(t, sm.IsSessionBoundary(models.H4, boundary.UnixMilli()))

	notBoundary := time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)
	assert.False(t, sm.IsSessionBoundary(models.H4, notBoundary.UnixMilli()))
}
