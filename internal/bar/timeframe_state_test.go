package bar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgroveq/mtfengine/internal/models"
)

func tick(tsMs int64, bid, ask float64) models.Tick {
	return models.Tick{Symbol: "EURUSD", Timestamp: tsMs, Bid: bid, Ask: ask}
}

// Two ticks in consecutive M1 windows produce exactly one completed bar,
// holding only the first tick, with the documented OHLC values.
func TestTimeframeState_BasicM1Aggregation(t *testing.T) {
	s := NewTimeframeState("EURUSD", models.M1, 1000, 0)

	got := s.ProcessTick(tick(1_704_067_230_000, 1.0920, 1.0922))
	require.Nil(t, got)

	// The second tick lies in the next minute and forces the first bar closed.
	got = s.ProcessTick(tick(1_704_067_290_000, 1.0925, 1.0927))
	require.NotNil(t, got)

	assert.Equal(t, int64(1_704_067_200_000), got.TimestampStartMs)
	assert.Equal(t, int64(1_704_067_260_000), got.TimestampEndMs)
	assert.InDelta(t, 1.0921, got.Open, 1e-9)
	assert.InDelta(t, 1.0921, got.Close, 1e-9)
	assert.InDelta(t, 1.0921, got.High, 1e-9)
	assert.InDelta(t, 1.0921, got.Low, 1e-9)
	assert.Equal(t, int64(1), got.TickCount)

	// A tick one minute later closes the second tick's bar.
	got = s.ProcessTick(tick(1_704_067_320_000, 1.0930, 1.0932))
	require.NotNil(t, got)
	assert.Equal(t, int64(1_704_067_260_000), got.TimestampStartMs)
}

func TestTimeframeState_BarInvariantHolds(t *testing.T) {
	s := NewTimeframeState("EURUSD", models.M1, 10, 0)
	s.ProcessTick(tick(0, 1.10, 1.12))
	s.ProcessTick(tick(10_000, 1.08, 1.09))
	s.ProcessTick(tick(20_000, 1.15, 1.16))
	got := s.ProcessTick(tick(60_000, 1.20, 1.21))
	require.NotNil(t, got)
	require.NoError(t, got.Validate())
}

func TestTimeframeState_RingBufferEvicts(t *testing.T) {
	s := NewTimeframeState("EURUSD", models.M1, 2, 0)
	base := int64(0)
	for i := 0; i < 5; i++ {
		s.ProcessTick(tick(base+int64(i)*60_000, 1.10, 1.11))
	}
	bars := s.CompletedBars()
	assert.LessOrEqual(t, len(bars), 2)
}

func TestTimeframeState_MonotonicBarStarts(t *testing.T) {
	s := NewTimeframeState("EURUSD", models.M1, 100, 0)
	for i := 0; i < 10; i++ {
		s.ProcessTick(tick(int64(i)*60_000, 1.10, 1.11))
	}
	s.ForceClose()
	bars := s.CompletedBars()
	for i := 1; i < len(bars); i++ {
		assert.Greater(t, bars[i].TimestampStartMs, bars[i-1].TimestampStartMs)
	}
}

func TestTimeframeState_ForceCloseNilWhenEmpty(t *testing.T) {
	s := NewTimeframeState("EURUSD", models.M1, 10, 0)
	assert.Nil(t, s.ForceClose())
}

func TestTimeframeState_SnapshotRestoreRoundTrip(t *testing.T) {
	s := NewTimeframeState("EURUSD", models.M1, 10, 0)
	s.ProcessTick(tick(0, 1.10, 1.11))
	s.ProcessTick(tick(60_000, 1.12, 1.13))

	current, completed, ticks := s.Snapshot()

	restored := NewTimeframeState("EURUSD", models.M1, 10, 0)
	restored.Restore(current, completed, ticks)

	rCurrent, rCompleted, rTicks := restored.Snapshot()
	assert.Equal(t, current, rCurrent)
	assert.Equal(t, completed, rCompleted)
	assert.Equal(t, ticks, rTicks)
}
