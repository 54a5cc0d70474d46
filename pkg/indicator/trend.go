package indicator

import (
	"fmt"
	"math"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// ADX computes the average directional index with its +DI/-DI components,
// Wilder-smoothed over period bars.
type ADX struct {
	name       string
	period     int
	haveFirst  bool
	prevHigh   float64
	prevLow    float64
	prevClose  float64
	plusDMs    []float64
	minusDMs   []float64
	trs        []float64
	avgPlusDM  float64
	avgMinusDM float64
	avgTR      float64
	seeded     bool
	dxValues   []float64
	adx        float64
	ready      bool
	processed  int
	last       IndicatorValue
}

func NewADX(period int) (*ADX, error) {
	if period < 1 {
		return nil, fmt.Errorf("adx: period must be at least 1, got %d", period)
	}
	return &ADX{name: fmt.Sprintf("adx_%d", period), period: period}, nil
}

func (a *ADX) Name() string { return a.name }

func (a *ADX) Update(bar models.Bar) (IndicatorValue, error) {
	if !a.haveFirst {
		a.prevHigh, a.prevLow, a.prevClose = bar.High, bar.Low, bar.Close
		a.haveFirst = true
		return IndicatorValue{}, nil
	}

	upMove := bar.High - a.prevHigh
	downMove := a.prevLow - bar.Low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	tr := trueRange(bar, a.prevClose)

	a.prevHigh, a.prevLow, a.prevClose = bar.High, bar.Low, bar.Close
	a.processed++

	if !a.seeded {
		a.plusDMs = append(a.plusDMs, plusDM)
		a.minusDMs = append(a.minusDMs, minusDM)
		a.trs = append(a.trs, tr)
		if len(a.trs) < a.period {
			return IndicatorValue{}, nil
		}
		for _, v := range a.plusDMs {
			a.avgPlusDM += v
		}
		for _, v := range a.minusDMs {
			a.avgMinusDM += v
		}
		for _, v := range a.trs {
			a.avgTR += v
		}
		a.seeded = true
	} else {
		a.avgPlusDM = a.avgPlusDM - a.avgPlusDM/float64(a.period) + plusDM
		a.avgMinusDM = a.avgMinusDM - a.avgMinusDM/float64(a.period) + minusDM
		a.avgTR = a.avgTR - a.avgTR/float64(a.period) + tr
	}

	plusDI, minusDI := 0.0, 0.0
	if a.avgTR != 0 {
		plusDI = 100 * a.avgPlusDM / a.avgTR
		minusDI = 100 * a.avgMinusDM / a.avgTR
	}

	dx := 0.0
	if plusDI+minusDI != 0 {
		dx = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	a.dxValues = append(a.dxValues, dx)
	if len(a.dxValues) > a.period {
		a.dxValues = a.dxValues[1:]
	}
	if len(a.dxValues) < a.period {
		return IndicatorValue{}, nil
	}

	if a.adx == 0 {
		var sum float64
		for _, v := range a.dxValues {
			sum += v
		}
		a.adx = sum / float64(len(a.dxValues))
	} else {
		a.adx = (a.adx*float64(a.period-1) + dx) / float64(a.period)
	}

	a.ready = true
	a.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     a.adx,
		Components:  map[string]float64{"adx": a.adx, "plus_di": plusDI, "minus_di": minusDI},
	}
	return a.last, nil
}

func (a *ADX) Value() (IndicatorValue, error) {
	if !a.ready {
		return IndicatorValue{}, &ErrNotReady{Name: a.name, Need: 2 * a.period, Got: a.processed}
	}
	return a.last, nil
}

func (a *ADX) Reset() {
	*a = ADX{name: a.name, period: a.period}
}

func (a *ADX) IsReady() bool      { return a.ready }
func (a *ADX) WindowSize() int    { return 2 * a.period }
func (a *ADX) BarsProcessed() int { return a.processed }

// ParabolicSAR computes Wilder's parabolic stop-and-reverse, tracking
// acceleration-factor-weighted extreme points per trend leg.
type ParabolicSAR struct {
	name       string
	step       float64
	maxStep    float64
	sar        float64
	ep         float64
	af         float64
	uptrend    bool
	haveFirst  bool
	haveSecond bool
	prevHigh   float64
	prevLow    float64
	ready      bool
	processed  int
	last       IndicatorValue
}

func NewParabolicSAR(step, maxStep float64) (*ParabolicSAR, error) {
	if step <= 0 || maxStep <= 0 {
		return nil, fmt.Errorf("parabolic_sar: step and max_step must be positive")
	}
	return &ParabolicSAR{name: fmt.Sprintf("psar_%.2f_%.2f", step, maxStep), step: step, maxStep: maxStep, af: step}, nil
}

func (p *ParabolicSAR) Name() string { return p.name }

func (p *ParabolicSAR) Update(bar models.Bar) (IndicatorValue, error) {
	p.processed++
	if !p.haveFirst {
		p.prevHigh, p.prevLow = bar.High, bar.Low
		p.haveFirst = true
		return IndicatorValue{}, nil
	}
	if !p.haveSecond {
		p.uptrend = bar.Close >= (p.prevHigh+p.prevLow)/2
		if p.uptrend {
			p.sar = p.prevLow
			p.ep = bar.High
		} else {
			p.sar = p.prevHigh
			p.ep = bar.Low
		}
		p.af = p.step
		p.haveSecond = true
		p.prevHigh, p.prevLow = bar.High, bar.Low
		p.ready = true
		p.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: p.sar}
		return p.last, nil
	}

	nextSAR := p.sar + p.af*(p.ep-p.sar)

	if p.uptrend {
		if bar.Low < nextSAR {
			p.uptrend = false
			nextSAR = p.ep
			p.ep = bar.Low
			p.af = p.step
		} else {
			if bar.High > p.ep {
				p.ep = bar.High
				p.af = math.Min(p.af+p.step, p.maxStep)
			}
			if nextSAR > p.prevLow {
				nextSAR = p.prevLow
			}
		}
	} else {
		if bar.High > nextSAR {
			p.uptrend = true
			nextSAR = p.ep
			p.ep = bar.High
			p.af = p.step
		} else {
			if bar.Low < p.ep {
				p.ep = bar.Low
				p.af = math.Min(p.af+p.step, p.maxStep)
			}
			if nextSAR < p.prevHigh {
				nextSAR = p.prevHigh
			}
		}
	}

	p.sar = nextSAR
	p.prevHigh, p.prevLow = bar.High, bar.Low
	p.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     p.sar,
		Components:  map[string]float64{"sar": p.sar, "ep": p.ep, "af": p.af},
	}
	return p.last, nil
}

func (p *ParabolicSAR) Value() (IndicatorValue, error) {
	if !p.ready {
		return IndicatorValue{}, &ErrNotReady{Name: p.name, Need: 2, Got: p.processed}
	}
	return p.last, nil
}

func (p *ParabolicSAR) Reset() {
	*p = ParabolicSAR{name: p.name, step: p.step, maxStep: p.maxStep, af: p.step}
}

func (p *ParabolicSAR) IsReady() bool { return p.ready }
