package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe_AcceptedGrammar(t *testing.T) {
	cases := map[string]Timeframe{
		"1m": M1, "M1": M1,
		"5m": M5, "m5": M5,
		"15m": M15, "M15": M15,
		"1h": H1, "H1": H1, "60m": H1,
		"4h": H4, "h4": H4, "240m": H4,
		"1d": D1, "D1": D1, "DAILY": D1,
	}
	for token, want := range cases {
		got, err := ParseTimeframe(token)
		require.NoError(t, err, "token %q", token)
		assert.Equal(t, want, got, "token %q", token)
	}
}

func TestParseTimeframe_RejectsUnknownTokens(t *testing.T) {
	for _, token := range []string{"", "2m", "30m", "1w", "hourly"} {
		_, err := ParseTimeframe(token)
		require.Error(t, err, "token %q", token)
		var unknown *UnknownTimeframeError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, token, unknown.Token)
		assert.ErrorIs(t, err, ErrUnknownTimeframe)
	}
}

func TestTimeframe_Durations(t *testing.T) {
	assert.Equal(t, int64(60_000), M1.DurationMs())
	assert.Equal(t, int64(300_000), M5.DurationMs())
	assert.Equal(t, int64(900_000), M15.DurationMs())
	assert.Equal(t, int64(3_600_000), H1.DurationMs())
	assert.Equal(t, int64(14_400_000), H4.DurationMs())
	assert.Equal(t, int64(86_400_000), D1.DurationMs())
}

func TestTimeframe_BarBoundaryArithmetic(t *testing.T) {
	ts := int64(1_704_067_230_000) // 30s into a minute
	assert.Equal(t, int64(1_704_067_200_000), M1.BarStart(ts, 0))
	assert.Equal(t, int64(1_704_067_260_000), M1.BarEnd(ts, 0))

	assert.True(t, M1.IsBoundary(1_704_067_200_000, 0))
	assert.False(t, M1.IsBoundary(ts, 0))
}

func TestTimeframe_BarStartWithDailyOffset(t *testing.T) {
	// A 17:00 offset shifts the D1 bucket so a timestamp just after the
	// configured close lands in the next day's bar.
	offset := int64(17 * 3_600_000)
	justAfterClose := offset + 1_000
	assert.Equal(t, offset, D1.BarStart(justAfterClose, offset))

	justBeforeClose := offset - 1_000
	assert.Equal(t, offset-D1.DurationMs(), D1.BarStart(justBeforeClose, offset))
}

func TestTick_ValidateRejectsMalformedTicks(t *testing.T) {
	valid := Tick{Symbol: "EURUSD", Timestamp: 0, Bid: 1.1, Ask: 1.1002}
	require.NoError(t, valid.Validate())

	bad := []Tick{
		{Symbol: "", Timestamp: 0, Bid: 1.1, Ask: 1.2},
		{Symbol: "EURUSD", Timestamp: -1, Bid: 1.1, Ask: 1.2},
		{Symbol: "EURUSD", Timestamp: 0, Bid: 1.2, Ask: 1.1},
	}
	for _, tick := range bad {
		err := tick.Validate()
		require.Error(t, err)
		var invalid *InvalidTickError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestTick_MidAndVolume(t *testing.T) {
	tick := Tick{Symbol: "EURUSD", Bid: 1.0920, Ask: 1.0922, BidSize: 2, AskSize: 3, HasSizes: true}
	assert.InDelta(t, 1.0921, tick.Mid(), 1e-9)
	assert.Equal(t, 5.0, tick.TickVolume())

	noSizes := Tick{Symbol: "EURUSD", Bid: 1.0920, Ask: 1.0922}
	assert.Equal(t, 0.0, noSizes.TickVolume())
}

func TestBar_ValidateEnforcesInvariant(t *testing.T) {
	good := Bar{
		Symbol: "EURUSD", Timeframe: M1,
		TimestampStartMs: 0, TimestampEndMs: 60_000,
		Open: 1.10, High: 1.12, Low: 1.09, Close: 1.11,
	}
	require.NoError(t, good.Validate())

	badLow := good
	badLow.Low = 1.105
	assert.ErrorIs(t, badLow.Validate(), ErrInvalidBar)

	badWindow := good
	badWindow.TimestampEndMs = 61_000
	assert.ErrorIs(t, badWindow.Validate(), ErrInvalidBar)
}

func TestPartialBar_ToBarCopiesFields(t *testing.T) {
	p := PartialBar{
		Symbol: "EURUSD", Timeframe: M1,
		BarStartMs: 0, BarEndMs: 60_000,
		Open: 1.10, High: 1.12, Low: 1.09, Close: 1.11,
		Volume: 5, TickCount: 3,
	}
	b := p.ToBar()
	assert.Equal(t, p.Open, b.Open)
	assert.Equal(t, p.BarStartMs, b.TimestampStartMs)
	assert.Equal(t, p.BarEndMs, b.TimestampEndMs)
	assert.Equal(t, p.TickCount, b.TickCount)
	require.NoError(t, b.Validate())
}
