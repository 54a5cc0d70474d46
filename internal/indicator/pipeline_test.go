package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgroveq/mtfengine/internal/models"
	pkgindicator "github.com/ashgroveq/mtfengine/pkg/indicator"
)

func testBar(n int, close float64, tf models.Timeframe) models.Bar {
	start := int64(n) * tf.DurationMs()
	return models.Bar{
		Symbol: "EURUSD", Timeframe: tf,
		TimestampStartMs: start, TimestampEndMs: start + tf.DurationMs(),
		Open: close, High: close, Low: close, Close: close, Volume: 1,
	}
}

func testPipeline() *Pipeline {
	reg := pkgindicator.NewDefaultRegistry()
	specs := []Spec{
		{TypeName: "sma", Params: map[string]string{"period": "3"}, Timeframes: []models.Timeframe{models.M1}},
		{TypeName: "ema", Params: map[string]string{"period": "3"}, Timeframes: []models.Timeframe{models.M1}},
	}
	return NewPipeline(reg, specs, 10, 0)
}

func TestPipeline_UpdateAll_ProducesResultsOnlyOnceReady(t *testing.T) {
	p := testPipeline()

	results, err := p.UpdateAll("EURUSD", testBar(0, 1.0, models.M1))
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = p.UpdateAll("EURUSD", testBar(1, 2.0, models.M1))
	require.NoError(t, err)

	results, err = p.UpdateAll("EURUSD", testBar(2, 3.0, models.M1))
	require.NoError(t, err)
	assert.Contains(t, results, "sma_3")
}

func TestPipeline_ScopesIndicatorsByTimeframe(t *testing.T) {
	p := testPipeline()
	results, err := p.UpdateAll("EURUSD", testBar(0, 1.0, models.M5))
	require.NoError(t, err)
	assert.Empty(t, results, "no indicator is configured for M5")
}

func TestPipeline_CachesResults(t *testing.T) {
	p := testPipeline()
	for i := 0; i < 3; i++ {
		_, err := p.UpdateAll("EURUSD", testBar(i, float64(i+1), models.M1))
		require.NoError(t, err)
	}
	v, ok := p.Cache().Latest("EURUSD", models.M1, "sma_3")
	require.True(t, ok)
	assert.InDelta(t, 2.0, v.Primary, 1e-9)
}

func TestPipeline_ParallelDispatchMatchesSequential(t *testing.T) {
	reg := pkgindicator.NewDefaultRegistry()
	specs := []Spec{
		{TypeName: "sma", Params: map[string]string{"period": "2"}, Timeframes: []models.Timeframe{models.M1}},
		{TypeName: "ema", Params: map[string]string{"period": "2"}, Timeframes: []models.Timeframe{models.M1}},
		{TypeName: "rsi", Params: map[string]string{"period": "2"}, Timeframes: []models.Timeframe{models.M1}},
	}
	parallel := NewPipeline(reg, specs, 10, 1)
	sequential := NewPipeline(reg, specs, 10, 0)

	for i := 0; i < 5; i++ {
		bar := testBar(i, float64(i+1), models.M1)
		pr, err := parallel.UpdateAll("EURUSD", bar)
		require.NoError(t, err)
		sr, err := sequential.UpdateAll("EURUSD", bar)
		require.NoError(t, err)
		assert.Equal(t, len(sr), len(pr))
	}
}

func TestPipeline_Reset_ClearsCalculatorsAndCache(t *testing.T) {
	p := testPipeline()
	for i := 0; i < 3; i++ {
		_, err := p.UpdateAll("EURUSD", testBar(i, float64(i+1), models.M1))
		require.NoError(t, err)
	}
	p.Reset("EURUSD")

	_, ok := p.Cache().Latest("EURUSD", models.M1, "sma_3")
	assert.False(t, ok)
}

func TestPipeline_StatsCountWarmupAsFailed(t *testing.T) {
	p := testPipeline() // sma_3 + ema_3 on M1

	_, stats, err := p.UpdateAllWithStats("EURUSD", testBar(0, 1.0, models.M1))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.UpdatedCount)
	assert.Equal(t, 2, stats.FailedCount, "warming-up indicators count as failed")

	_, _, err = p.UpdateAllWithStats("EURUSD", testBar(1, 2.0, models.M1))
	require.NoError(t, err)

	_, stats, err = p.UpdateAllWithStats("EURUSD", testBar(2, 3.0, models.M1))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.UpdatedCount)
	assert.Equal(t, 0, stats.FailedCount)
}
