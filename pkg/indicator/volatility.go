package indicator

import (
	"fmt"
	"math"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// Bollinger computes Bollinger Bands: an SMA middle band with upper/lower
// bands numStdDev standard deviations away.
type Bollinger struct {
	name      string
	period    int
	numStdDev float64
	prices    []float64
	ready     bool
	processed int
	last      IndicatorValue
}

func NewBollinger(period int, numStdDev float64) (*Bollinger, error) {
	if period < 1 {
		return nil, fmt.Errorf("bollinger: period must be at least 1, got %d", period)
	}
	return &Bollinger{name: fmt.Sprintf("bollinger_%d_%.1f", period, numStdDev), period: period, numStdDev: numStdDev}, nil
}

func (b *Bollinger) Name() string { return b.name }

func (b *Bollinger) Update(bar models.Bar) (IndicatorValue, error) {
	b.prices = append(b.prices, bar.Close)
	b.processed++
	if len(b.prices) > b.period {
		b.prices = b.prices[1:]
	}
	if len(b.prices) < b.period {
		return IndicatorValue{}, nil
	}

	var sum float64
	for _, p := range b.prices {
		sum += p
	}
	mean := sum / float64(len(b.prices))

	var variance float64
	for _, p := range b.prices {
		d := p - mean
		variance += d * d
	}
	variance /= float64(len(b.prices))
	stddev := math.Sqrt(variance)

	upper := mean + b.numStdDev*stddev
	lower := mean - b.numStdDev*stddev

	b.ready = true
	b.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     mean,
		Components:  map[string]float64{"upper": upper, "middle": mean, "lower": lower},
	}
	return b.last, nil
}

func (b *Bollinger) Value() (IndicatorValue, error) {
	if !b.ready {
		return IndicatorValue{}, &ErrNotReady{Name: b.name, Need: b.period, Got: b.processed}
	}
	return b.last, nil
}

func (b *Bollinger) Reset() {
	*b = Bollinger{name: b.name, period: b.period, numStdDev: b.numStdDev}
}

func (b *Bollinger) IsReady() bool      { return b.ready }
func (b *Bollinger) WindowSize() int    { return b.period }
func (b *Bollinger) BarsProcessed() int { return b.processed }

// ATR computes Wilder's average true range over period bars.
type ATR struct {
	name       string
	period     int
	prevClose  float64
	haveFirst  bool
	trueRanges []float64
	avgTR      float64
	seeded     bool
	processed  int
	ready      bool
	last       IndicatorValue
}

func NewATR(period int) (*ATR, error) {
	if period < 1 {
		return nil, fmt.Errorf("atr: period must be at least 1, got %d", period)
	}
	return &ATR{name: fmt.Sprintf("atr_%d", period), period: period}, nil
}

func (a *ATR) Name() string { return a.name }

func trueRange(bar models.Bar, prevClose float64) float64 {
	hl := bar.High - bar.Low
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

func (a *ATR) Update(bar models.Bar) (IndicatorValue, error) {
	if !a.haveFirst {
		a.prevClose = bar.Close
		a.haveFirst = true
		return IndicatorValue{}, nil
	}
	tr := trueRange(bar, a.prevClose)
	a.prevClose = bar.Close
	a.processed++

	if !a.seeded {
		a.trueRanges = append(a.trueRanges, tr)
		if len(a.trueRanges) < a.period {
			return IndicatorValue{}, nil
		}
		var sum float64
		for _, v := range a.trueRanges {
			sum += v
		}
		a.avgTR = sum / float64(a.period)
		a.seeded = true
	} else {
		a.avgTR = (a.avgTR*float64(a.period-1) + tr) / float64(a.period)
	}

	a.ready = true
	a.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: a.avgTR}
	return a.last, nil
}

func (a *ATR) Value() (IndicatorValue, error) {
	if !a.ready {
		return IndicatorValue{}, &ErrNotReady{Name: a.name, Need: a.period + 1, Got: a.processed}
	}
	return a.last, nil
}

func (a *ATR) Reset() {
	*a = ATR{name: a.name, period: a.period}
}

func (a *ATR) IsReady() bool      { return a.ready }
func (a *ATR) WindowSize() int    { return a.period + 1 }
func (a *ATR) BarsProcessed() int { return a.processed }

// Keltner computes Keltner Channels: an EMA middle line with bands
// multiplier*ATR away.
type Keltner struct {
	name       string
	ema        *EMA
	atr        *ATR
	multiplier float64
	ready      bool
	last       IndicatorValue
}

func NewKeltner(emaPeriod, atrPeriod int, multiplier float64) (*Keltner, error) {
	ema, err := NewEMA(emaPeriod)
	if err != nil {
		return nil, fmt.Errorf("keltner: %w", err)
	}
	atr, err := NewATR(atrPeriod)
	if err != nil {
		return nil, fmt.Errorf("keltner: %w", err)
	}
	return &Keltner{
		name:       fmt.Sprintf("keltner_%d_%d_%.1f", emaPeriod, atrPeriod, multiplier),
		ema:        ema,
		atr:        atr,
		multiplier: multiplier,
	}, nil
}

func (k *Keltner) Name() string { return k.name }

func (k *Keltner) Update(bar models.Bar) (IndicatorValue, error) {
	if _, err := k.ema.Update(bar); err != nil {
		return IndicatorValue{}, err
	}
	if _, err := k.atr.Update(bar); err != nil {
		return IndicatorValue{}, err
	}
	if !k.ema.IsReady() || !k.atr.IsReady() {
		return IndicatorValue{}, nil
	}

	mid := k.ema.currentValue()
	atrVal, _ := k.atr.Value()
	upper := mid + k.multiplier*atrVal.Primary
	lower := mid - k.multiplier*atrVal.Primary

	k.ready = true
	k.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     mid,
		Components:  map[string]float64{"upper": upper, "middle": mid, "lower": lower},
	}
	return k.last, nil
}

func (k *Keltner) Value() (IndicatorValue, error) {
	if !k.ready {
		return IndicatorValue{}, &ErrNotReady{Name: k.name, Need: k.atr.WindowSize(), Got: k.atr.BarsProcessed()}
	}
	return k.last, nil
}

func (k *Keltner) Reset() {
	k.ema.Reset()
	k.atr.Reset()
	k.ready = false
	k.last = IndicatorValue{}
}

func (k *Keltner) IsReady() bool { return k.ready }

// Donchian computes Donchian Channels: the highest high and lowest low over
// period bars, with the midline as their average.
type Donchian struct {
	name      string
	period    int
	highs     []float64
	lows      []float64
	processed int
	ready     bool
	last      IndicatorValue
}

func NewDonchian(period int) (*Donchian, error) {
	if period < 1 {
		return nil, fmt.Errorf("donchian: period must be at least 1, got %d", period)
	}
	return &Donchian{name: fmt.Sprintf("donchian_%d", period), period: period}, nil
}

func (d *Donchian) Name() string { return d.name }

func (d *Donchian) Update(bar models.Bar) (IndicatorValue, error) {
	d.highs = append(d.highs, bar.High)
	d.lows = append(d.lows, bar.Low)
	d.processed++
	if len(d.highs) > d.period {
		d.highs = d.highs[1:]
		d.lows = d.lows[1:]
	}
	if len(d.highs) < d.period {
		return IndicatorValue{}, nil
	}

	highest, lowest := d.highs[0], d.lows[0]
	for i := range d.highs {
		if d.highs[i] > highest {
			highest = d.highs[i]
		}
		if d.lows[i] < lowest {
			lowest = d.lows[i]
		}
	}
	mid := (highest + lowest) / 2

	d.ready = true
	d.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     mid,
		Components:  map[string]float64{"upper": highest, "middle": mid, "lower": lowest},
	}
	return d.last, nil
}

func (d *Donchian) Value() (IndicatorValue, error) {
	if !d.ready {
		return IndicatorValue{}, &ErrNotReady{Name: d.name, Need: d.period, Got: d.processed}
	}
	return d.last, nil
}

func (d *Donchian) Reset() {
	*d = Donchian{name: d.name, period: d.period}
}

func (d *Donchian) IsReady() bool      { return d.ready }
func (d *Donchian) WindowSize() int    { return d.period }
func (d *Donchian) BarsProcessed() int { return d.processed }
