package indicator

import (
	"fmt"
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// TechanCalculator wraps a github.com/sdcoffey/techan indicator to
// implement this package's Calculator contract, so the hand-rolled
// streaming calculators and a techan-backed series can sit side by side
// behind the same registry.
type TechanCalculator struct {
	name      string
	series    *techan.TimeSeries
	indicator techan.Indicator
	build     func(*techan.TimeSeries) techan.Indicator
	period    int
	ready     bool
	last      IndicatorValue
}

// newTechanCalculator builds a calculator bound to series; buildIndicator
// constructs the techan.Indicator over that same series (techan indicators
// must share the TimeSeries they read candles from).
func newTechanCalculator(name string, period int, buildIndicator func(*techan.TimeSeries) techan.Indicator) *TechanCalculator {
	series := techan.NewTimeSeries()
	return &TechanCalculator{
		name:      name,
		series:    series,
		indicator: buildIndicator(series),
		build:     buildIndicator,
		period:    period,
	}
}

func (t *TechanCalculator) Name() string { return t.name }

func (t *TechanCalculator) Update(bar models.Bar) (IndicatorValue, error) {
	period := techan.NewTimePeriod(time.UnixMilli(bar.TimestampEndMs), time.Duration(bar.Timeframe.DurationMs())*time.Millisecond)
	candle := techan.NewCandle(period)
	candle.OpenPrice = big.NewDecimal(bar.Open)
	candle.MaxPrice = big.NewDecimal(bar.High)
	candle.MinPrice = big.NewDecimal(bar.Low)
	candle.ClosePrice = big.NewDecimal(bar.Close)
	candle.Volume = big.NewDecimal(bar.Volume)
	t.series.AddCandle(candle)

	lastIndex := t.series.LastIndex()
	if lastIndex < 0 {
		return IndicatorValue{}, nil
	}

	value := t.indicator.Calculate(lastIndex).Float()
	if value != value { // NaN
		return IndicatorValue{}, nil
	}

	t.ready = true
	t.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: value}
	return t.last, nil
}

func (t *TechanCalculator) Value() (IndicatorValue, error) {
	if !t.ready {
		return IndicatorValue{}, &ErrNotReady{Name: t.name, Need: t.period, Got: t.series.LastIndex() + 1}
	}
	return t.last, nil
}

func (t *TechanCalculator) Reset() {
	t.series = techan.NewTimeSeries()
	t.indicator = t.build(t.series)
	t.ready = false
	t.last = IndicatorValue{}
}

func (t *TechanCalculator) IsReady() bool      { return t.ready }
func (t *TechanCalculator) WindowSize() int    { return t.period }
func (t *TechanCalculator) BarsProcessed() int { return t.series.LastIndex() + 1 }

// NewTechanRSI builds a techan-backed RSI calculator, an alternative to the
// hand-rolled RSI for validating the two implementations against each other
// in tests.
func NewTechanRSI(period int) *TechanCalculator {
	return newTechanCalculator(fmt.Sprintf("techan_rsi_%d", period), period, func(s *techan.TimeSeries) techan.Indicator {
		return techan.NewRelativeStrengthIndexIndicator(techan.NewClosePriceIndicator(s), period)
	})
}

// NewTechanEMA builds a techan-backed EMA calculator.
func NewTechanEMA(period int) *TechanCalculator {
	return newTechanCalculator(fmt.Sprintf("techan_ema_%d", period), period, func(s *techan.TimeSeries) techan.Indicator {
		return techan.NewEMAIndicator(techan.NewClosePriceIndicator(s), period)
	})
}

// NewTechanSMA builds a calculator over techan's modified moving average:
// it equals the simple mean of the first period closes, and after that it
// applies Wilder-style smoothing rather than a rolling simple mean.
func NewTechanSMA(period int) *TechanCalculator {
	return newTechanCalculator(fmt.Sprintf("techan_sma_%d", period), period, func(s *techan.TimeSeries) techan.Indicator {
		return techan.NewMMAIndicator(techan.NewClosePriceIndicator(s), period)
	})
}

// NewTechanATR builds a techan-backed ATR calculator.
func NewTechanATR(period int) *TechanCalculator {
	return newTechanCalculator(fmt.Sprintf("techan_atr_%d", period), period, func(s *techan.TimeSeries) techan.Indicator {
		return techan.NewAverageTrueRangeIndicator(s, period)
	})
}

// NewTechanStochastic builds a techan-backed fast-stochastic calculator.
func NewTechanStochastic(period int) *TechanCalculator {
	return newTechanCalculator(fmt.Sprintf("techan_stoch_%d", period), period, func(s *techan.TimeSeries) techan.Indicator {
		return techan.NewFastStochasticIndicator(s, period)
	})
}

// RegisterTechanVariants adds "techan_"-prefixed variants of the
// cross-checkable indicators to r, alongside the hand-rolled ones.
func RegisterTechanVariants(r *Registry) error {
	if err := r.Register("techan_sma", func(p map[string]string) (Calculator, error) {
		return NewTechanSMA(intParam(p, "period", 20)), nil
	}); err != nil {
		return err
	}
	if err := r.Register("techan_ema", func(p map[string]string) (Calculator, error) {
		return NewTechanEMA(intParam(p, "period", 20)), nil
	}); err != nil {
		return err
	}
	if err := r.Register("techan_rsi", func(p map[string]string) (Calculator, error) {
		return NewTechanRSI(intParam(p, "period", 14)), nil
	}); err != nil {
		return err
	}
	if err := r.Register("techan_atr", func(p map[string]string) (Calculator, error) {
		return NewTechanATR(intParam(p, "period", 14)), nil
	}); err != nil {
		return err
	}
	if err := r.Register("techan_stochastic", func(p map[string]string) (Calculator, error) {
		return NewTechanStochastic(intParam(p, "period", 14)), nil
	}); err != nil {
		return err
	}
	return nil
}
