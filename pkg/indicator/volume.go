package indicator

import (
	"fmt"

	"github.com/ashgroveq/mtfengine/internal/models"
)

// OBV computes on-balance volume: a running total that adds a bar's volume
// when the close rises and subtracts it when the close falls.
type OBV struct {
	name      string
	prevClose float64
	haveFirst bool
	value     float64
	ready     bool
	processed int
}

func NewOBV() *OBV {
	return &OBV{name: "obv"}
}

func (o *OBV) Name() string { return o.name }

func (o *OBV) Update(bar models.Bar) (IndicatorValue, error) {
	o.processed++
	if !o.haveFirst {
		o.prevClose = bar.Close
		o.haveFirst = true
		o.ready = true
		return IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: o.value}, nil
	}
	switch {
	case bar.Close > o.prevClose:
		o.value += bar.Volume
	case bar.Close < o.prevClose:
		o.value -= bar.Volume
	}
	o.prevClose = bar.Close
	return IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: o.value}, nil
}

func (o *OBV) Value() (IndicatorValue, error) {
	if !o.ready {
		return IndicatorValue{}, &ErrNotReady{Name: o.name, Need: 1, Got: o.processed}
	}
	return IndicatorValue{Primary: o.value}, nil
}

func (o *OBV) Reset() {
	*o = OBV{name: o.name}
}

func (o *OBV) IsReady() bool { return o.ready }

// VolumeSMA computes a simple moving average of bar volume over period
// bars: the SMA rolling window, over Volume instead of Close.
type VolumeSMA struct {
	name      string
	period    int
	volumes   []float64
	ready     bool
	processed int
	last      IndicatorValue
}

func NewVolumeSMA(period int) (*VolumeSMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("volume_sma: period must be at least 1, got %d", period)
	}
	return &VolumeSMA{name: fmt.Sprintf("volume_sma_%d", period), period: period}, nil
}

func (v *VolumeSMA) Name() string { return v.name }

func (v *VolumeSMA) Update(bar models.Bar) (IndicatorValue, error) {
	v.volumes = append(v.volumes, bar.Volume)
	v.processed++
	if len(v.volumes) > v.period {
		v.volumes = v.volumes[1:]
	}
	if len(v.volumes) < v.period {
		return IndicatorValue{}, nil
	}
	var sum float64
	for _, vol := range v.volumes {
		sum += vol
	}
	v.ready = true
	v.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: sum / float64(len(v.volumes))}
	return v.last, nil
}

func (v *VolumeSMA) Value() (IndicatorValue, error) {
	if !v.ready {
		return IndicatorValue{}, &ErrNotReady{Name: v.name, Need: v.period, Got: v.processed}
	}
	return v.last, nil
}

func (v *VolumeSMA) Reset() {
	*v = VolumeSMA{name: v.name, period: v.period}
}

func (v *VolumeSMA) IsReady() bool      { return v.ready }
func (v *VolumeSMA) WindowSize() int    { return v.period }
func (v *VolumeSMA) BarsProcessed() int { return v.processed }

// VWAP computes the volume-weighted average price, accumulated since the
// last Reset. Callers reset it at each session boundary to
// get the conventional intraday-anchored VWAP; left unreset it behaves as a
// running VWAP over the calculator's whole life: a cumulative
// typical-price*volume total rather than a sliding time window.
type VWAP struct {
	name           string
	cumPriceVolume float64
	cumVolume      float64
	ready          bool
	processed      int
	last           IndicatorValue
}

func NewVWAP() *VWAP {
	return &VWAP{name: "vwap"}
}

func (v *VWAP) Name() string { return v.name }

func (v *VWAP) Update(bar models.Bar) (IndicatorValue, error) {
	v.processed++
	typical := (bar.High + bar.Low + bar.Close) / 3
	v.cumPriceVolume += typical * bar.Volume
	v.cumVolume += bar.Volume

	if v.cumVolume == 0 {
		return IndicatorValue{}, nil
	}
	v.ready = true
	v.last = IndicatorValue{TimestampMs: bar.TimestampEndMs, Primary: v.cumPriceVolume / v.cumVolume}
	return v.last, nil
}

func (v *VWAP) Value() (IndicatorValue, error) {
	if !v.ready {
		return IndicatorValue{}, &ErrNotReady{Name: v.name, Need: 1, Got: v.processed}
	}
	return v.last, nil
}

func (v *VWAP) Reset() {
	*v = VWAP{name: v.name}
}

func (v *VWAP) IsReady() bool { return v.ready }
