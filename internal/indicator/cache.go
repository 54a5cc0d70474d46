// Package indicator implements the indicator cache and update pipeline
// sitting on top of pkg/indicator's Calculator contract, split into a
// Cache (bounded result history) and a Pipeline (dispatch) so the
// per-timeframe fan-out stays separate from result retention.
package indicator

import (
	"sync"

	"github.com/ashgroveq/mtfengine/internal/models"
	pkgindicator "github.com/ashgroveq/mtfengine/pkg/indicator"
)

// seriesKey identifies one calculator's result history.
type seriesKey struct {
	symbol        string
	timeframe     models.Timeframe
	indicatorName string
}

// Cache retains a bounded number of recent IndicatorValues per
// (symbol, timeframe, indicator name) so consumers can look back without
// recomputation.
type Cache struct {
	mu     sync.RWMutex
	limit  int
	series map[seriesKey][]pkgindicator.IndicatorValue
}

// NewCache builds a cache retaining up to limit values per series.
func NewCache(limit int) *Cache {
	if limit < 1 {
		limit = 1
	}
	return &Cache{limit: limit, series: make(map[seriesKey][]pkgindicator.IndicatorValue)}
}

// Push appends a value to (symbol, tf, indicatorName)'s series, evicting
// the oldest entry once the cache's limit is exceeded.
func (c *Cache) Push(symbol string, tf models.Timeframe, indicatorName string, v pkgindicator.IndicatorValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := seriesKey{symbol: symbol, timeframe: tf, indicatorName: indicatorName}
	series := append(c.series[key], v)
	if len(series) > c.limit {
		series = series[len(series)-c.limit:]
	}
	c.series[key] = series
}

// Latest returns the most recent value for a series, or (zero, false) if
// none has been pushed yet.
func (c *Cache) Latest(symbol string, tf models.Timeframe, indicatorName string) (pkgindicator.IndicatorValue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	series := c.series[seriesKey{symbol: symbol, timeframe: tf, indicatorName: indicatorName}]
	if len(series) == 0 {
		return pkgindicator.IndicatorValue{}, false
	}
	return series[len(series)-1], true
}

// History returns a copy of the retained series, oldest first.
func (c *Cache) History(symbol string, tf models.Timeframe, indicatorName string) []pkgindicator.IndicatorValue {
	c.mu.RLock()
	defer c.mu.RUnlock()

	series := c.series[seriesKey{symbol: symbol, timeframe: tf, indicatorName: indicatorName}]
	out := make([]pkgindicator.IndicatorValue, len(series))
	copy(out, series)
	return out
}

// LatestAll returns every indicator's latest value for (symbol, tf), keyed
// by indicator name.
func (c *Cache) LatestAll(symbol string, tf models.Timeframe) map[string]pkgindicator.IndicatorValue {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]pkgindicator.IndicatorValue)
	for key, series := range c.series {
		if key.symbol != symbol || key.timeframe != tf || len(series) == 0 {
			continue
		}
		out[key.indicatorName] = series[len(series)-1]
	}
	return out
}

// ClearSymbol drops every series for symbol, across all timeframes.
func (c *Cache) ClearSymbol(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.series {
		if key.symbol == symbol {
			delete(c.series, key)
		}
	}
}

// ClearIndicator drops every series for indicatorName, across every symbol
// and timeframe, e.g. when an indicator is reconfigured and
// its history is no longer comparable.
func (c *Cache) ClearIndicator(indicatorName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.series {
		if key.indicatorName == indicatorName {
			delete(c.series, key)
		}
	}
}

// ClearTimeframe drops every series for tf, across every symbol and
// indicator, e.g. when a timeframe is disabled at runtime.
func (c *Cache) ClearTimeframe(tf models.Timeframe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.series {
		if key.timeframe == tf {
			delete(c.series, key)
		}
	}
}

// CacheEntry is one (symbol, timeframe, indicator) series in exported,
// gob-serializable form, used by the checkpoint layer to capture the
// pipeline's cached results.
type CacheEntry struct {
	Symbol        string
	Timeframe     models.Timeframe
	IndicatorName string
	Values        []pkgindicator.IndicatorValue
}

// Snapshot returns every cached series as a flat list, in no particular
// cross-series order.
func (c *Cache) Snapshot() []CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CacheEntry, 0, len(c.series))
	for key, series := range c.series {
		values := make([]pkgindicator.IndicatorValue, len(series))
		copy(values, series)
		out = append(out, CacheEntry{Symbol: key.symbol, Timeframe: key.timeframe, IndicatorName: key.indicatorName, Values: values})
	}
	return out
}

// Restore replaces the cache's contents with entries, e.g. when
// reconstructing a pipeline from a checkpoint.
func (c *Cache) Restore(entries []CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = make(map[seriesKey][]pkgindicator.IndicatorValue, len(entries))
	for _, e := range entries {
		values := make([]pkgindicator.IndicatorValue, len(e.Values))
		copy(values, e.Values)
		c.series[seriesKey{symbol: e.Symbol, timeframe: e.Timeframe, indicatorName: e.IndicatorName}] = values
	}
}
