package aggregator

import "github.com/ashgroveq/mtfengine/internal/models"

// VolumeAggregator sums volume and tick counts across a batch of source
// bars and computes the batch's volume-weighted average price. It is the
// single place batch volume math lives, so Standard and VolumeWeighted
// rules stay consistent with each other.
type VolumeAggregator struct {
	volumeWeighted bool
}

// NewVolumeAggregator builds a plain (non-weighted) volume aggregator.
func NewVolumeAggregator() *VolumeAggregator {
	return &VolumeAggregator{}
}

// WithVolumeWeighting records the volume-weighting flag and returns the
// aggregator for chaining. The sum and VWAP methods give the same results
// whether the flag is set or not.
func (v *VolumeAggregator) WithVolumeWeighting(enabled bool) *VolumeAggregator {
	v.volumeWeighted = enabled
	return v
}

// AggregateVolume sums the batch's volume; 0 for an empty batch.
func (v *VolumeAggregator) AggregateVolume(bars []models.Bar) float64 {
	var total float64
	for _, b := range bars {
		total += b.Volume
	}
	return total
}

// AggregateTickCount sums the batch's tick counts; 0 for an empty batch.
func (v *VolumeAggregator) AggregateTickCount(bars []models.Bar) int64 {
	var total int64
	for _, b := range bars {
		total += b.TickCount
	}
	return total
}

// CalculateVWAP returns the volume-weighted average of the batch's typical
// prices (H+L+C)/3, and false when the batch carries no volume to weight
// by.
func (v *VolumeAggregator) CalculateVWAP(bars []models.Bar) (float64, bool) {
	var totalVolume, weightedSum float64
	for _, b := range bars {
		if b.Volume <= 0 {
			continue
		}
		typical := (b.High + b.Low + b.Close) / 3
		weightedSum += typical * b.Volume
		totalVolume += b.Volume
	}
	if totalVolume == 0 {
		return 0, false
	}
	return weightedSum / totalVolume, true
}
