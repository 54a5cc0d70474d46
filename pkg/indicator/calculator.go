// Package indicator implements the streaming technical-indicator library:
// one Calculator per indicator, fed one completed bar at a time, each
// tracking its own warm-up period. Results are IndicatorValue rather than
// a bare float64 so multi-series indicators (MACD, Bollinger, Stochastic,
// ADX, pivots) fit the same interface.
package indicator

import (
	"fmt"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// IndicatorValue is one Calculator's output for one bar. Primary carries the
// single-number reading most indicators need; Components carries named
// sub-series for multi-value indicators (e.g. MACD's "macd"/"signal"/
// "histogram", Bollinger's "upper"/"middle"/"lower").
type IndicatorValue struct {
	TimestampMs int64
	Primary     float64
	Components  map[string]float64
}

// Calculator is the streaming contract every indicator implements.
// Update is called once per completed bar, in timeframe
// order; Value returns the last computed reading without reprocessing.
type Calculator interface {
	Name() string
	Update(bar models.Bar) (IndicatorValue, error)
	Value() (IndicatorValue, error)
	Reset()
	IsReady() bool
}

// WindowedCalculator extends Calculator for indicators with a fixed warm-up
// window.
type WindowedCalculator interface {
	Calculator
	WindowSize() int
	BarsProcessed() int
}

// ErrNotReady is wrapped by a Calculator's Value() while warming up.
type ErrNotReady struct {
	Name string
	Need int
	Got  int
}

func (e *ErrNotReady) Error() string {
	return fmt.Sprintf("%s not ready: need %d bars, have %d", e.Name, e.Need, e.Got)
}

func errBarNil(name string) error {
	return fmt.Errorf("%s: bar cannot be the zero value", name)
}
