package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgroveq/mtfengine/internal/models"
)

func ohlcBar(n int, open, high, low, close, volume float64) models.Bar {
	start := int64(n) * models.M1.DurationMs()
	return models.Bar{
		Symbol: "EURUSD", Timeframe: models.M1,
		TimestampStartMs: start, TimestampEndMs: start + models.M1.DurationMs(),
		Open: open, High: high, Low: low, Close: close, Volume: volume,
	}
}

func TestATR_WarmsUpThenSmooths(t *testing.T) {
	atr, err := NewATR(2)
	require.NoError(t, err)

	bars := []models.Bar{
		ohlcBar(0, 1.10, 1.12, 1.09, 1.11, 10),
		ohlcBar(1, 1.11, 1.13, 1.10, 1.12, 10),
		ohlcBar(2, 1.12, 1.14, 1.11, 1.13, 10),
	}
	for _, b := range bars {
		_, err := atr.Update(b)
		require.NoError(t, err)
	}
	assert.True(t, atr.IsReady())
}

func TestBollinger_UpperAboveMiddleAboveLower(t *testing.T) {
	b, err := NewBollinger(3, 2.0)
	require.NoError(t, err)
	for i, c := range []float64{1.0, 1.05, 0.95, 1.1, 0.9} {
		v, err := b.Update(ohlcBar(i, c, c, c, c, 1))
		require.NoError(t, err)
		if b.IsReady() {
			assert.Greater(t, v.Components["upper"], v.Components["middle"])
			assert.Greater(t, v.Components["middle"], v.Components["lower"])
		}
	}
}

func TestOBV_AccumulatesOnRiseSubtractsOnFall(t *testing.T) {
	obv := NewOBV()
	_, _ = obv.Update(ohlcBar(0, 1, 1, 1, 1, 100))
	v, _ := obv.Update(ohlcBar(1, 1, 1, 1, 2, 50))
	assert.Equal(t, 50.0, v.Primary)
	v, _ = obv.Update(ohlcBar(2, 1, 1, 1, 1, 30))
	assert.Equal(t, 20.0, v.Primary)
}

func TestVWAP_AccumulatesUntilReset(t *testing.T) {
	vwap := NewVWAP()
	_, _ = vwap.Update(ohlcBar(0, 1.0, 1.2, 0.8, 1.0, 10))
	v, _ := vwap.Update(ohlcBar(1, 1.0, 1.2, 0.8, 1.1, 10))
	require.True(t, vwap.IsReady())
	assert.Greater(t, v.Primary, 0.0)

	vwap.Reset()
	assert.False(t, vwap.IsReady())
}

func TestADX_BecomesReadyAfterTwoPeriods(t *testing.T) {
	adx, err := NewADX(2)
	require.NoError(t, err)
	bars := []models.Bar{
		ohlcBar(0, 1.0, 1.05, 0.95, 1.0, 10),
		ohlcBar(1, 1.0, 1.10, 0.98, 1.05, 10),
		ohlcBar(2, 1.05, 1.15, 1.00, 1.10, 10),
		ohlcBar(3, 1.10, 1.20, 1.05, 1.15, 10),
		ohlcBar(4, 1.15, 1.25, 1.10, 1.20, 10),
	}
	for _, b := range bars {
		_, err := adx.Update(b)
		require.NoError(t, err)
	}
	assert.True(t, adx.IsReady())
}

func TestPivots_ComputesClassicLevels(t *testing.T) {
	p := NewPivots()
	v, err := p.Update(ohlcBar(0, 1.0, 1.2, 0.8, 1.1, 0))
	require.NoError(t, err)
	expectedPivot := (1.2 + 0.8 + 1.1) / 3
	assert.InDelta(t, expectedPivot, v.Components["pivot"], 1e-9)
	assert.InDelta(t, 2*expectedPivot-0.8, v.Components["r1"], 1e-9)
	assert.InDelta(t, 2*expectedPivot-1.2, v.Components["s1"], 1e-9)
}

func TestTechanSMA_MatchesHandRolledAtWarmup(t *testing.T) {
	// techan's MMA-as-SMA only coincides with a plain rolling SMA up through
	// the bar where it first becomes ready (a simple mean of everything seen
	// so far); beyond that it switches to Wilder-style smoothing, so the
	// comparison is only valid at the exact warm-up point.
	techSMA := NewTechanSMA(3)
	handSMA, err := NewSMA(3)
	require.NoError(t, err)

	var techVal, handVal IndicatorValue
	for i, c := range []float64{1.0, 2.0, 3.0} {
		techVal, err = techSMA.Update(closeBar(i, c))
		require.NoError(t, err)
		handVal, err = handSMA.Update(closeBar(i, c))
		require.NoError(t, err)
	}
	require.True(t, techSMA.IsReady())
	require.True(t, handSMA.IsReady())
	assert.InDelta(t, handVal.Primary, techVal.Primary, 1e-6)
}

func TestRegisterTechanVariants_AddsPrefixedTypes(t *testing.T) {
	r := NewDefaultRegistry()
	require.NoError(t, RegisterTechanVariants(r))

	calc, err := r.Build("techan_rsi", map[string]string{"period": "5"})
	require.NoError(t, err)
	assert.Equal(t, "techan_rsi_5", calc.Name())
}
