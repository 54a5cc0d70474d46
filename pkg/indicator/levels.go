package indicator

import (
	"fmt"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// Pivots computes classic floor-trader pivot points from the prior
// completed bar: pivot = (H+L+C)/3, with R1-R3/S1-S3 derived from it.
// Every Update, the first included, recomputes the levels from
// the bar just closed, so callers feed it the higher-timeframe (e.g. D1)
// bar whose levels should apply to the next session.
type Pivots struct {
	name      string
	ready     bool
	processed int
	last      IndicatorValue
}

func NewPivots() *Pivots {
	return &Pivots{name: "pivots"}
}

func (p *Pivots) Name() string { return p.name }

func (p *Pivots) Update(bar models.Bar) (IndicatorValue, error) {
	p.processed++
	pivot := (bar.High + bar.Low + bar.Close) / 3
	r1 := 2*pivot - bar.Low
	s1 := 2*pivot - bar.High
	r2 := pivot + (bar.High - bar.Low)
	s2 := pivot - (bar.High - bar.Low)
	r3 := bar.High + 2*(pivot-bar.Low)
	s3 := bar.Low - 2*(bar.High-pivot)

	p.ready = true
	p.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     pivot,
		Components: map[string]float64{
			"pivot": pivot,
			"r1": r1, "r2": r2, "r3": r3,
			"s1": s1, "s2": s2, "s3": s3,
		},
	}
	return p.last, nil
}

func (p *Pivots) Value() (IndicatorValue, error) {
	if !p.ready {
		return IndicatorValue{}, &ErrNotReady{Name: p.name, Need: 1, Got: p.processed}
	}
	return p.last, nil
}

func (p *Pivots) Reset() {
	*p = Pivots{name: p.name}
}

func (p *Pivots) IsReady() bool { return p.ready }

// SupportResistance tracks the highest high and lowest low over a rolling
// lookback window as naive support/resistance levels, a
// simpler cousin of Donchian restricted to the two outer bands.
type SupportResistance struct {
	name      string
	lookback  int
	highs     []float64
	lows      []float64
	processed int
	ready     bool
	last      IndicatorValue
}

func NewSupportResistance(lookback int) (*SupportResistance, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("support_resistance: lookback must be at least 1, got %d", lookback)
	}
	return &SupportResistance{name: fmt.Sprintf("support_resistance_%d", lookback), lookback: lookback}, nil
}

func (s *SupportResistance) Name() string { return s.name }

func (s *SupportResistance) Update(bar models.Bar) (IndicatorValue, error) {
	s.highs = append(s.highs, bar.High)
	s.lows = append(s.lows, bar.Low)
	s.processed++
	if len(s.highs) > s.lookback {
		s.highs = s.highs[1:]
		s.lows = s.lows[1:]
	}
	if len(s.highs) < s.lookback {
		return IndicatorValue{}, nil
	}

	resistance, support := s.highs[0], s.lows[0]
	for i := range s.highs {
		if s.highs[i] > resistance {
			resistance = s.highs[i]
		}
		if s.lows[i] < support {
			support = s.lows[i]
		}
	}

	s.ready = true
	s.last = IndicatorValue{
		TimestampMs: bar.TimestampEndMs,
		Primary:     resistance,
		Components:  map[string]float64{"resistance": resistance, "support": support},
	}
	return s.last, nil
}

func (s *SupportResistance) Value() (IndicatorValue, error) {
	if !s.ready {
		return IndicatorValue{}, &ErrNotReady{Name: s.name, Need: s.lookback, Got: s.processed}
	}
	return s.last, nil
}

func (s *SupportResistance) Reset() {
	*s = SupportResistance{name: s.name, lookback: s.lookback}
}

func (s *SupportResistance) IsReady() bool      { return s.ready }
func (s *SupportResistance) WindowSize() int    { return s.lookback }
func (s *SupportResistance) BarsProcessed() int { return s.processed }
