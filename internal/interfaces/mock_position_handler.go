package interfaces

import (
	"fmt"
	"sync"
	"time"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// HandlerMetrics accumulates per-event-kind processing counts and timings
// for a MockPositionHandler, so integration tests can assert both that
// events arrived and that handling stayed within budget.
type HandlerMetrics struct {
	TickCount      int
	BarCount       int
	IndicatorCount int

	TotalTickMicros      int64
	TotalBarMicros       int64
	TotalIndicatorMicros int64

	MaxTickMicros      int64
	MaxBarMicros       int64
	MaxIndicatorMicros int64
}

// AverageTickMicros returns the mean tick-handling time, 0 before any tick.
func (m HandlerMetrics) AverageTickMicros() float64 {
	if m.TickCount == 0 {
		return 0
	}
	return float64(m.TotalTickMicros) / float64(m.TickCount)
}

// AverageBarMicros returns the mean bar-handling time, 0 before any bar.
func (m HandlerMetrics) AverageBarMicros() float64 {
	if m.BarCount == 0 {
		return 0
	}
	return float64(m.TotalBarMicros) / float64(m.BarCount)
}

// AverageIndicatorMicros returns the mean indicator-handling time, 0 before
// any update.
func (m HandlerMetrics) AverageIndicatorMicros() float64 {
	if m.IndicatorCount == 0 {
		return 0
	}
	return float64(m.TotalIndicatorMicros) / float64(m.IndicatorCount)
}

// MockPositionHandler is a PositionEventHandler double for wiring tests:
// it records every event it receives as a human-readable log line and
// tracks handling metrics, without any real position side effects.
type MockPositionHandler struct {
	mu       sync.Mutex
	model    ExecutionModel
	eventLog []string
	metrics  HandlerMetrics
}

// NewMockPositionHandler builds a handler tagged with the execution model
// under test.
func NewMockPositionHandler(model ExecutionModel) *MockPositionHandler {
	return &MockPositionHandler{model: model}
}

// OnBarComplete records the completed bar.
func (h *MockPositionHandler) OnBarComplete(bar models.Bar, tf models.Timeframe, symbol string) {
	start := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eventLog = append(h.eventLog, fmt.Sprintf("bar_complete %s %s close=%.5f", symbol, tf, bar.Close))
	elapsed := time.Since(start).Microseconds()
	h.metrics.BarCount++
	h.metrics.TotalBarMicros += elapsed
	if elapsed > h.metrics.MaxBarMicros {
		h.metrics.MaxBarMicros = elapsed
	}
}

// OnTickUpdate records the tick.
func (h *MockPositionHandler) OnTickUpdate(tick models.Tick, symbol string) {
	start := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eventLog = append(h.eventLog, fmt.Sprintf("tick %s bid=%.5f ask=%.5f", symbol, tick.Bid, tick.Ask))
	elapsed := time.Since(start).Microseconds()
	h.metrics.TickCount++
	h.metrics.TotalTickMicros += elapsed
	if elapsed > h.metrics.MaxTickMicros {
		h.metrics.MaxTickMicros = elapsed
	}
}

// OnIndicatorUpdate records the indicator value.
func (h *MockPositionHandler) OnIndicatorUpdate(value float64, tf models.Timeframe, symbol string) {
	start := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eventLog = append(h.eventLog, fmt.Sprintf("indicator %s %s value=%.5f", symbol, tf, value))
	elapsed := time.Since(start).Microseconds()
	h.metrics.IndicatorCount++
	h.metrics.TotalIndicatorMicros += elapsed
	if elapsed > h.metrics.MaxIndicatorMicros {
		h.metrics.MaxIndicatorMicros = elapsed
	}
}

// Model returns the execution model this handler was built with.
func (h *MockPositionHandler) Model() ExecutionModel {
	return h.model
}

// EventLog returns a copy of every recorded log line, in arrival order.
func (h *MockPositionHandler) EventLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.eventLog))
	copy(out, h.eventLog)
	return out
}

// Metrics returns a copy of the accumulated handling metrics.
func (h *MockPositionHandler) Metrics() HandlerMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}

// Reset clears the log and metrics for reuse across test cases.
func (h *MockPositionHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eventLog = nil
	h.metrics = HandlerMetrics{}
}

var _ PositionEventHandler = (*MockPositionHandler)(nil)
