package indicator

import (
	"fmt"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// SMA computes the simple moving average over period closes.
type SMA struct {
	period    int
	name      string
	prices    []float64
	ready     bool
	processed int
	last      IndicatorValue
}

func NewSMA(period int) (*SMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("sma: period must be at least 1, got %d", period)
	}
	return &SMA{period: period, name: fmt.Sprintf("sma_%d", period), prices: make([]float64, 0, period)}, nil
}

func (s *SMA) Name() string { return s.name }

func (s *SMA) Update(bar models.Bar) (IndicatorValue, error) {
	s.prices = append(s.prices, bar.Close)
	s.processed++
	if len(s.prices) > s.period {
		copy(s.prices, s.prices[1:])
		s.prices = s.prices[:len(s.prices)-1]
	}
	if len(s.prices) >= s.period {
		s.ready = true
		s.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: s.average()}
	}
	return s.last, nil
}

func (s *SMA) average() float64 {
	var sum float64
	for _, p := range s.prices {
		sum += p
	}
	return sum / float64(len(s.prices))
}

func (s *SMA) Value() (IndicatorValue, error) {
	if !s.ready {
		return IndicatorValue{}, &ErrNotReady{Name: s.name, Need: s.period, Got: len(s.prices)}
	}
	return s.last, nil
}

func (s *SMA) Reset() {
	s.prices = s.prices[:0]
	s.ready = false
	s.processed = 0
	s.last = IndicatorValue{}
}

func (s *SMA) IsReady() bool      { return s.ready }
func (s *SMA) WindowSize() int    { return s.period }
func (s *SMA) BarsProcessed() int { return s.processed }

// EMA computes the exponential moving average with smoothing factor
// 2/(period+1), seeded from the first period closes' SMA.
type EMA struct {
	period     int
	name       string
	multiplier float64
	seedPrices []float64
	value      float64
	ready      bool
	processed  int
	last       IndicatorValue
}

func NewEMA(period int) (*EMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("ema: period must be at least 1, got %d", period)
	}
	return &EMA{
		period:     period,
		name:       fmt.Sprintf("ema_%d", period),
		multiplier: 2.0 / float64(period+1),
		seedPrices: make([]float64, 0, period),
	}, nil
}

func (e *EMA) Name() string { return e.name }

func (e *EMA) Update(bar models.Bar) (IndicatorValue, error) {
	e.processed++
	price := bar.Close

	if !e.ready {
		e.seedPrices = append(e.seedPrices, price)
		if len(e.seedPrices) < e.period {
			return IndicatorValue{}, nil
		}
		var sum float64
		for _, p := range e.seedPrices {
			sum += p
		}
		e.value = sum / float64(len(e.seedPrices))
		e.ready = true
		e.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: e.value}
		return e.last, nil
	}

	e.value = (price-e.value)*e.multiplier + e.value
	e.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: e.value}
	return e.last, nil
}

func (e *EMA) Value() (IndicatorValue, error) {
	if !e.ready {
		return IndicatorValue{}, &ErrNotReady{Name: e.name, Need: e.period, Got: e.processed}
	}
	return e.last, nil
}

func (e *EMA) Reset() {
	e.seedPrices = e.seedPrices[:0]
	e.value = 0
	e.ready = false
	e.processed = 0
	e.last = IndicatorValue{}
}

func (e *EMA) IsReady() bool      { return e.ready }
func (e *EMA) WindowSize() int    { return e.period }
func (e *EMA) BarsProcessed() int { return e.processed }

// currentValue exposes the raw smoothed value for composite indicators
// (MACD, DEMA) that chain EMAs together without going through Value()'s
// readiness error.
func (e *EMA) currentValue() float64 { return e.value }

// WMA computes the linearly-weighted moving average, most recent price
// weighted highest.
type WMA struct {
	period    int
	name      string
	prices    []float64
	ready     bool
	processed int
	last      IndicatorValue
}

func NewWMA(period int) (*WMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("wma: period must be at least 1, got %d", period)
	}
	return &WMA{period: period, name: fmt.Sprintf("wma_%d", period), prices: make([]float64, 0, period)}, nil
}

func (w *WMA) Name() string { return w.name }

func (w *WMA) Update(bar models.Bar) (IndicatorValue, error) {
	w.prices = append(w.prices, bar.Close)
	w.processed++
	if len(w.prices) > w.period {
		copy(w.prices, w.prices[1:])
		w.prices = w.prices[:w.period]
	}
	if len(w.prices) >= w.period {
		w.ready = true
		w.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: w.weighted()}
	}
	return w.last, nil
}

func (w *WMA) weighted() float64 {
	var num, den float64
	for i, p := range w.prices {
		weight := float64(i + 1)
		num += p * weight
		den += weight
	}
	return num / den
}

func (w *WMA) Value() (IndicatorValue, error) {
	if !w.ready {
		return IndicatorValue{}, &ErrNotReady{Name: w.name, Need: w.period, Got: len(w.prices)}
	}
	return w.last, nil
}

func (w *WMA) Reset() {
	w.prices = w.prices[:0]
	w.ready = false
	w.processed = 0
	w.last = IndicatorValue{}
}

func (w *WMA) IsReady() bool      { return w.ready }
func (w *WMA) WindowSize() int    { return w.period }
func (w *WMA) BarsProcessed() int { return w.processed }

// DEMA computes the double exponential moving average,
// DEMA = 2*EMA(price) - EMA(EMA(price)), which reduces the lag of a plain
// EMA.
type DEMA struct {
	period int
	name   string
	ema1   *EMA
	ema2   *EMA
	ready  bool
	last   IndicatorValue
}

func NewDEMA(period int) (*DEMA, error) {
	ema1, err := NewEMA(period)
	if err != nil {
		return nil, fmt.Errorf("dema: %w", err)
	}
	ema2, err := NewEMA(period)
	if err != nil {
		return nil, fmt.Errorf("dema: %w", err)
	}
	return &DEMA{period: period, name: fmt.Sprintf("dema_%d", period), ema1: ema1, ema2: ema2}, nil
}

func (d *DEMA) Name() string { return d.name }

func (d *DEMA) Update(bar models.Bar) (IndicatorValue, error) {
	if _, err := d.ema1.Update(bar); err != nil {
		return IndicatorValue{}, err
	}
	if !d.ema1.IsReady() {
		return IndicatorValue{}, nil
	}
	ema1Bar := bar
	ema1Bar.Close = d.ema1.currentValue()
	if _, err := d.ema2.Update(ema1Bar); err != nil {
		return IndicatorValue{}, err
	}
	if !d.ema2.IsReady() {
		return IndicatorValue{}, nil
	}
	d.ready = true
	value := 2*d.ema1.currentValue() - d.ema2.currentValue()
	d.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: value}
	return d.last, nil
}

func (d *DEMA) Value() (IndicatorValue, error) {
	if !d.ready {
		return IndicatorValue{}, &ErrNotReady{Name: d.name, Need: 2 * d.period, Got: d.ema1.BarsProcessed()}
	}
	return d.last, nil
}

func (d *DEMA) Reset() {
	d.ema1.Reset()
	d.ema2.Reset()
	d.ready = false
	d.last = IndicatorValue{}
}

func (d *DEMA) IsReady() bool      { return d.ready }
func (d *DEMA) WindowSize() int    { return 2 * d.period }
func (d *DEMA) BarsProcessed() int { return d.ema1.BarsProcessed() }
