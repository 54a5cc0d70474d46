package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgroveq/mtfengine/internal/models"
)

func TestMockPositionHandler_RecordsAllEventKinds(t *testing.T) {
	h := NewMockPositionHandler(ExecutionRealistic)

	h.OnTickUpdate(models.Tick{Symbol: "EURUSD", Bid: 1.0920, Ask: 1.0922}, "EURUSD")
	h.OnBarComplete(models.Bar{Symbol: "EURUSD", Timeframe: models.M1, Close: 1.0921}, models.M1, "EURUSD")
	h.OnIndicatorUpdate(55.2, models.M1, "EURUSD")

	log := h.EventLog()
	require.Len(t, log, 3)
	assert.Contains(t, log[0], "tick EURUSD")
	assert.Contains(t, log[1], "bar_complete EURUSD M1")
	assert.Contains(t, log[2], "indicator EURUSD M1")

	m := h.Metrics()
	assert.Equal(t, 1, m.TickCount)
	assert.Equal(t, 1, m.BarCount)
	assert.Equal(t, 1, m.IndicatorCount)
}

func TestMockPositionHandler_MetricsAverages(t *testing.T) {
	h := NewMockPositionHandler(ExecutionPerfect)
	assert.Equal(t, 0.0, h.Metrics().AverageTickMicros())

	for i := 0; i < 5; i++ {
		h.OnTickUpdate(models.Tick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002}, "EURUSD")
	}
	m := h.Metrics()
	assert.Equal(t, 5, m.TickCount)
	assert.GreaterOrEqual(t, m.MaxTickMicros, int64(0))
	assert.GreaterOrEqual(t, m.AverageTickMicros(), 0.0)
}

func TestMockPositionHandler_Reset(t *testing.T) {
	h := NewMockPositionHandler(ExecutionWorstCase)
	h.OnTickUpdate(models.Tick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002}, "EURUSD")
	require.NotEmpty(t, h.EventLog())

	h.Reset()
	assert.Empty(t, h.EventLog())
	assert.Equal(t, 0, h.Metrics().TickCount)
	assert.Equal(t, ExecutionWorstCase, h.Model())
}

func TestExecutionModel_Strings(t *testing.T) {
	assert.Equal(t, "perfect", ExecutionPerfect.String())
	assert.Equal(t, "realistic", ExecutionRealistic.String())
	assert.Equal(t, "worst_case", ExecutionWorstCase.String())
}
