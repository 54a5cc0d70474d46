package indicator

import (
	"fmt"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// RSI computes the Wilder relative strength index over period bars.
type RSI struct {
	period    int
	name      string
	prevClose float64
	haveFirst bool
	avgGain   float64
	avgLoss   float64
	seeded    bool
	gains     []float64
	losses    []float64
	processed int
	ready     bool
	last      IndicatorValue
}

func NewRSI(period int) (*RSI, error) {
	if period < 1 {
		return nil, fmt.Errorf("rsi: period must be at least 1, got %d", period)
	}
	return &RSI{period: period, name: fmt.Sprintf("rsi_%d", period)}, nil
}

func (r *RSI) Name() string { return r.name }

func (r *RSI) Update(bar models.Bar) (IndicatorValue, error) {
	if !r.haveFirst {
		r.prevClose = bar.Close
		r.haveFirst = true
		return IndicatorValue{}, nil
	}
	change := bar.Close - r.prevClose
	r.prevClose = bar.Close
	r.processed++

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if !r.seeded {
		r.gains = append(r.gains, gain)
		r.losses = append(r.losses, loss)
		if len(r.gains) < r.period {
			return IndicatorValue{}, nil
		}
		var sumGain, sumLoss float64
		for i := range r.gains {
			sumGain += r.gains[i]
			sumLoss += r.losses[i]
		}
		r.avgGain = sumGain / float64(r.period)
		r.avgLoss = sumLoss / float64(r.period)
		r.seeded = true
	} else {
		r.avgGain = (r.avgGain*float64(r.period-1) + gain) / float64(r.period)
		r.avgLoss = (r.avgLoss*float64(r.period-1) + loss) / float64(r.period)
	}

	r.ready = true
	r.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: r.rsiValue()}
	return r.last, nil
}

func (r *RSI) rsiValue() float64 {
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - (100 / (1 + rs))
}

func (r *RSI) Value() (IndicatorValue, error) {
	if !r.ready {
		return IndicatorValue{}, &ErrNotReady{Name: r.name, Need: r.period + 1, Got: r.processed}
	}
	return r.last, nil
}

func (r *RSI) Reset() {
	*r = RSI{period: r.period, name: r.name}
}

func (r *RSI) IsReady() bool      { return r.ready }
func (r *RSI) WindowSize() int    { return r.period + 1 }
func (r *RSI) BarsProcessed() int { return r.processed }

// MACD computes the moving-average-convergence-divergence line, its signal
// line, and their histogram.
type MACD struct {
	name   string
	fast   *EMA
	slow   *EMA
	signal *EMA
	ready  bool
	last   IndicatorValue
}

func NewMACD(fastPeriod, slowPeriod, signalPeriod int) (*MACD, error) {
	fast, err := NewEMA(fastPeriod)
	if err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}
	slow, err := NewEMA(slowPeriod)
	if err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}
	signal, err := NewEMA(signalPeriod)
	if err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}
	return &MACD{
		name:   fmt.Sprintf("macd_%d_%d_%d", fastPeriod, slowPeriod, signalPeriod),
		fast:   fast,
		slow:   slow,
		signal: signal,
	}, nil
}

func (m *MACD) Name() string { return m.name }

func (m *MACD) Update(bar models.Bar) (IndicatorValue, error) {
	if _, err := m.fast.Update(bar); err != nil {
		return IndicatorValue{}, err
	}
	if _, err := m.slow.Update(bar); err != nil {
		return IndicatorValue{}, err
	}
	if !m.fast.IsReady() || !m.slow.IsReady() {
		return IndicatorValue{}, nil
	}

	macdLine := m.fast.currentValue() - m.slow.currentValue()
	signalBar := bar
	signalBar.Close = macdLine
	if _, err := m.signal.Update(signalBar); err != nil {
		return IndicatorValue{}, err
	}
	if !m.signal.IsReady() {
		return IndicatorValue{}, nil
	}

	m.ready = true
	signalLine := m.signal.currentValue()
	m.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     macdLine,
		Components: map[string]float64{
			"macd":      macdLine,
			"signal":    signalLine,
			"histogram": macdLine - signalLine,
		},
	}
	return m.last, nil
}

func (m *MACD) Value() (IndicatorValue, error) {
	if !m.ready {
		return IndicatorValue{}, &ErrNotReady{Name: m.name, Need: m.slow.WindowSize(), Got: m.slow.BarsProcessed()}
	}
	return m.last, nil
}

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.ready = false
	m.last = IndicatorValue{}
}

func (m *MACD) IsReady() bool { return m.ready }

// Stochastic computes %K and %D over period bars.
type Stochastic struct {
	name      string
	period    int
	dPeriod   int
	highs     []float64
	lows      []float64
	kValues   []float64
	ready     bool
	processed int
	last      IndicatorValue
}

func NewStochastic(period, dPeriod int) (*Stochastic, error) {
	if period < 1 || dPeriod < 1 {
		return nil, fmt.Errorf("stochastic: periods must be at least 1")
	}
	return &Stochastic{name: fmt.Sprintf("stoch_%d_%d", period, dPeriod), period: period, dPeriod: dPeriod}, nil
}

func (s *Stochastic) Name() string { return s.name }

func (s *Stochastic) Update(bar models.Bar) (IndicatorValue, error) {
	s.highs = append(s.highs, bar.High)
	s.lows = append(s.lows, bar.Low)
	s.processed++
	if len(s.highs) > s.period {
		s.highs = s.highs[1:]
		s.lows = s.lows[1:]
	}
	if len(s.highs) < s.period {
		return IndicatorValue{}, nil
	}

	highest, lowest := s.highs[0], s.lows[0]
	for i := range s.highs {
		if s.highs[i] > highest {
			highest = s.highs[i]
		}
		if s.lows[i] < lowest {
			lowest = s.lows[i]
		}
	}
	k := 50.0
	if highest != lowest {
		k = (bar.Close - lowest) / (highest - lowest) * 100
	}

	s.kValues = append(s.kValues, k)
	if len(s.kValues) > s.dPeriod {
		s.kValues = s.kValues[1:]
	}
	d := k
	if len(s.kValues) >= s.dPeriod {
		var sum float64
		for _, v := range s.kValues {
			sum += v
		}
		d = sum / float64(len(s.kValues))
	}

	s.ready = true
	s.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     k,
		Components:  map[string]float64{"k": k, "d": d},
	}
	return s.last, nil
}

func (s *Stochastic) Value() (IndicatorValue, error) {
	if !s.ready {
		return IndicatorValue{}, &ErrNotReady{Name: s.name, Need: s.period, Got: s.processed}
	}
	return s.last, nil
}

func (s *Stochastic) Reset() {
	*s = Stochastic{name: s.name, period: s.period, dPeriod: s.dPeriod}
}

func (s *Stochastic) IsReady() bool      { return s.ready }
func (s *Stochastic) WindowSize() int    { return s.period }
func (s *Stochastic) BarsProcessed() int { return s.processed }

// CCI computes the commodity channel index over period bars using the
// typical price (H+L+C)/3 and Lambert's 0.015 constant.
type CCI struct {
	name      string
	period    int
	typicals  []float64
	processed int
	ready     bool
	last      IndicatorValue
}

const cciConstant = 0.015

func NewCCI(period int) (*CCI, error) {
	if period < 1 {
		return nil, fmt.Errorf("cci: period must be at least 1, got %d", period)
	}
	return &CCI{name: fmt.Sprintf("cci_%d", period), period: period}, nil
}

func (c *CCI) Name() string { return c.name }

func (c *CCI) Update(bar models.Bar) (IndicatorValue, error) {
	typical := (bar.High + bar.Low + bar.Close) / 3
	c.typicals = append(c.typicals, typical)
	c.processed++
	if len(c.typicals) > c.period {
		c.typicals = c.typicals[1:]
	}
	if len(c.typicals) < c.period {
		return IndicatorValue{}, nil
	}

	var sum float64
	for _, t := range c.typicals {
		sum += t
	}
	mean := sum / float64(len(c.typicals))

	var meanDev float64
	for _, t := range c.typicals {
		d := t - mean
		if d < 0 {
			d = -d
		}
		meanDev += d
	}
	meanDev /= float64(len(c.typicals))

	value := 0.0
	if meanDev != 0 {
		value = (typical - mean) / (cciConstant * meanDev)
	}

	c.ready = true
	c.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: value}
	return c.last, nil
}

func (c *CCI) Value() (IndicatorValue, error) {
	if !c.ready {
		return IndicatorValue{}, &ErrNotReady{Name: c.name, Need: c.period, Got: c.processed}
	}
	return c.last, nil
}

func (c *CCI) Reset() {
	*c = CCI{name: c.name, period: c.period}
}

func (c *CCI) IsReady() bool      { return c.ready }
func (c *CCI) WindowSize() int    { return c.period }
func (c *CCI) BarsProcessed() int { return c.processed }

// WilliamsR computes Williams %R over period bars.
type WilliamsR struct {
	name      string
	period    int
	highs     []float64
	lows      []float64
	processed int
	ready     bool
	last      IndicatorValue
}

func NewWilliamsR(period int) (*WilliamsR, error) {
	if period < 1 {
		return nil, fmt.Errorf("williams_r: period must be at least 1, got %d", period)
	}
	return &WilliamsR{name: fmt.Sprintf("williams_r_%d", period), period: period}, nil
}

func (w *WilliamsR) Name() string { return w.name }

func (w *WilliamsR) Update(bar models.Bar) (IndicatorValue, error) {
	w.highs = append(w.highs, bar.High)
	w.lows = append(w.lows, bar.Low)
	w.processed++
	if len(w.highs) > w.period {
		w.highs = w.highs[1:]
		w.lows = w.lows[1:]
	}
	if len(w.highs) < w.period {
		return IndicatorValue{}, nil
	}

	highest, lowest := w.highs[0], w.lows[0]
	for i := range w.highs {
		if w.highs[i] > highest {
			highest = w.highs[i]
		}
		if w.lows[i] < lowest {
			lowest = w.lows[i]
		}
	}
	value := -50.0
	if highest != lowest {
		value = (highest - bar.Close) / (highest - lowest) * -100
	}

	w.ready = true
	w.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: value}
	return w.last, nil
}

func (w *WilliamsR) Value() (IndicatorValue, error) {
	if !w.ready {
		return IndicatorValue{}, &ErrNotReady{Name: w.name, Need: w.period, Got: w.processed}
	}
	return w.last, nil
}

func (w *WilliamsR) Reset() {
	*w = WilliamsR{name: w.name, period: w.period}
}

func (w *WilliamsR) IsReady() bool      { return w.ready }
func (w *WilliamsR) WindowSize() int    { return w.period }
func (w *WilliamsR) BarsProcessed() int { return w.processed }
