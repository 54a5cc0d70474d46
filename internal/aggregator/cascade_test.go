package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgroveq/mtfengine/internal/models"
	"github.com/ashgroveq/mtfengine/internal/session"
)

func m1Bar(n int, open, high, low, close, volume float64) models.Bar {
	start := int64(n) * models.M1.DurationMs()
	return models.Bar{
		Symbol:           "EURUSD",
		Timeframe:        models.M1,
		TimestampStartMs: start,
		TimestampEndMs:   start + models.M1.DurationMs(),
		Open:             open,
		High:             high,
		Low:              low,
		Close:            close,
		Volume:           volume,
		TickCount:        1,
	}
}

func TestAggregator_EmitsOnceBatchFull(t *testing.T) {
	a := NewAggregator(DefaultCascadeRules())

	var emitted []models.Bar
	a.SetOnEmit(func(b models.Bar) { emitted = append(emitted, b) })

	for i := 0; i < 4; i++ {
		out := a.IngestBar(m1Bar(i, 1.1, 1.12, 1.09, 1.11, 10))
		assert.Empty(t, out)
	}
	out := a.IngestBar(m1Bar(4, 1.1, 1.13, 1.08, 1.105, 10))
	require.Len(t, out, 1)
	assert.Equal(t, models.M5, out[0].Timeframe)
	assert.Equal(t, 1.1, out[0].Open)
	assert.Equal(t, 1.105, out[0].Close)
	assert.Equal(t, 1.13, out[0].High)
	assert.Equal(t, 1.08, out[0].Low)
	assert.Equal(t, 50.0, out[0].Volume)

	assert.Equal(t, emitted, out)
}

func TestAggregator_MultiHopCascade(t *testing.T) {
	rules := []CascadeRule{
		{SourceTF: models.M1, TargetTF: models.M5, BarsPerAggregation: 5, Method: MethodStandard},
		{SourceTF: models.M5, TargetTF: models.M15, BarsPerAggregation: 3, Method: MethodStandard},
	}
	a := NewAggregator(rules)

	var allEmitted []models.Bar
	for i := 0; i < 15; i++ {
		out := a.IngestBar(m1Bar(i, 1.1, 1.11, 1.09, 1.1, 1))
		allEmitted = append(allEmitted, out...)
	}

	var m5Count, m15Count int
	for _, b := range allEmitted {
		switch b.Timeframe {
		case models.M5:
			m5Count++
		case models.M15:
			m15Count++
		}
	}
	assert.Equal(t, 3, m5Count)
	assert.Equal(t, 1, m15Count)
}

func TestAggregator_ForceEmitFlushesPartialBatch(t *testing.T) {
	a := NewAggregator(DefaultCascadeRules())

	a.IngestBar(m1Bar(0, 1.1, 1.12, 1.09, 1.11, 10))
	a.IngestBar(m1Bar(1, 1.11, 1.13, 1.10, 1.12, 10))
	assert.Equal(t, 2, a.PendingCount("EURUSD", models.M1))

	b := a.ForceEmit("EURUSD", models.M1)
	require.NotNil(t, b)
	assert.Equal(t, models.M5, b.Timeframe)
	assert.Equal(t, 0, a.PendingCount("EURUSD", models.M1))
}

func TestAggregator_UnknownSourceTimeframeIsNoop(t *testing.T) {
	a := NewAggregator(DefaultCascadeRules())
	out := a.IngestBar(models.Bar{Symbol: "EURUSD", Timeframe: models.D1})
	assert.Empty(t, out)
	assert.Nil(t, a.ForceEmit("EURUSD", models.D1))
}

func TestAggregator_PendingIsPerSymbol(t *testing.T) {
	a := NewAggregator(DefaultCascadeRules())
	a.IngestBar(m1Bar(0, 1.1, 1.1, 1.1, 1.1, 1))

	eur := m1Bar(0, 1.1, 1.1, 1.1, 1.1, 1)
	gbp := eur
	gbp.Symbol = "GBPUSD"
	a.IngestBar(gbp)

	assert.Equal(t, 1, a.PendingCount("EURUSD", models.M1))
	assert.Equal(t, 1, a.PendingCount("GBPUSD", models.M1))
}

func TestAggregator_SessionBoundaryFlushesShortBatch(t *testing.T) {
	a := NewAggregator(DefaultCascadeRules())
	hours := session.ForexHours("EURUSD")
	hours.Location = time.UTC
	sm := session.NewSessionManager(session.NewMarketSchedule(hours))
	a.SetSessionManager(sm)

	// Two M1 bars whose second ends exactly on a 5-minute mark: the batch
	// flushes at the boundary instead of waiting for five bars.
	out := a.IngestBar(m1Bar(3, 1.1, 1.11, 1.09, 1.1, 1))
	assert.Empty(t, out)
	out = a.IngestBar(m1Bar(4, 1.1, 1.12, 1.08, 1.105, 1))
	require.Len(t, out, 1)
	assert.Equal(t, models.M5, out[0].Timeframe)
	assert.Equal(t, 1.1, out[0].Open)
	assert.Equal(t, 1.105, out[0].Close)
	assert.Equal(t, 0, a.PendingCount("EURUSD", models.M1))
}

func TestAggregator_GapFlushesAvailableBars(t *testing.T) {
	a := NewAggregator(DefaultCascadeRules())
	a.SetGapDetector(session.NewGapDetector(time.Minute, nil))

	a.IngestBar(m1Bar(1, 1.1, 1.11, 1.09, 1.1, 1))
	// The next bar arrives ten minutes later, an unexpected gap; the queue
	// aggregates what it has rather than waiting for the missing windows.
	out := a.IngestBar(m1Bar(12, 1.1, 1.12, 1.08, 1.105, 1))
	require.Len(t, out, 1)
	assert.Equal(t, models.M5, out[0].Timeframe)
	assert.Equal(t, 0, a.PendingCount("EURUSD", models.M1))
}

func TestVolumeAggregator_SumsAndVWAP(t *testing.T) {
	va := NewVolumeAggregator().WithVolumeWeighting(true)
	bars := []models.Bar{
		m1Bar(0, 1.0, 1.2, 0.8, 1.0, 10), // typical 1.0
		m1Bar(1, 1.0, 1.5, 0.9, 1.2, 30), // typical 1.2
	}

	assert.Equal(t, 40.0, va.AggregateVolume(bars))
	assert.Equal(t, int64(2), va.AggregateTickCount(bars))

	vwap, ok := va.CalculateVWAP(bars)
	require.True(t, ok)
	assert.InDelta(t, (1.0*10+1.2*30)/40, vwap, 1e-9)

	_, ok = va.CalculateVWAP([]models.Bar{m1Bar(0, 1, 1, 1, 1, 0)})
	assert.False(t, ok)
}

func TestAggregator_VolumeWeightedRuleRecordsBatchVWAP(t *testing.T) {
	rules := []CascadeRule{
		{SourceTF: models.M1, TargetTF: models.M5, BarsPerAggregation: 2, Method: MethodVolumeWeighted},
	}
	a := NewAggregator(rules)

	_, ok := a.LastBatchVWAP("EURUSD", models.M1)
	assert.False(t, ok)

	a.IngestBar(m1Bar(0, 1.0, 1.2, 0.8, 1.0, 10))
	out := a.IngestBar(m1Bar(1, 1.0, 1.5, 0.9, 1.2, 30))
	require.Len(t, out, 1)

	vwap, ok := a.LastBatchVWAP("EURUSD", models.M1)
	require.True(t, ok)
	assert.InDelta(t, (1.0*10+1.2*30)/40, vwap, 1e-9)
}
