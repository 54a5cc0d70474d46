package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/ashgroveq/mtfengine/internal/models"
	pkgindicator "github.com/ashgroveq/mtfengine/pkg/indicator"
)

// Spec describes one indicator to instantiate per (symbol, timeframe): its
// registered type name, constructor params, and the timeframes it runs on.
type Spec struct {
	TypeName   string
	Params     map[string]string
	Timeframes []models.Timeframe
}

// OnIndicatorsUpdated is invoked after a bar updates every indicator
// configured for its (symbol, timeframe).
type OnIndicatorsUpdated func(symbol string, tf models.Timeframe, values map[string]pkgindicator.IndicatorValue)

// symbolTimeframeKey indexes a symbol's live calculator set for one
// timeframe.
type symbolTimeframeKey struct {
	symbol    string
	timeframe models.Timeframe
}

// Pipeline fans a completed bar out to every configured indicator for its
// (symbol, timeframe), dispatching sequentially or across goroutines
// depending on ParallelThreshold, and caches every result.
type Pipeline struct {
	mu                sync.Mutex
	registry          *pkgindicator.Registry
	specs             []Spec
	calculators       map[symbolTimeframeKey]map[string]pkgindicator.Calculator
	cache             *Cache
	onUpdated         OnIndicatorsUpdated
	parallelThreshold int // dispatch in parallel once a (symbol,tf) has more than this many calculators
}

// NewPipeline builds a pipeline over registry using specs, caching up to
// cacheLimit values per series. parallelThreshold of 0 disables parallel
// dispatch entirely.
func NewPipeline(registry *pkgindicator.Registry, specs []Spec, cacheLimit, parallelThreshold int) *Pipeline {
	return &Pipeline{
		registry:          registry,
		specs:             specs,
		calculators:       make(map[symbolTimeframeKey]map[string]pkgindicator.Calculator),
		cache:             NewCache(cacheLimit),
		parallelThreshold: parallelThreshold,
	}
}

// SetOnIndicatorsUpdated registers a callback for post-update notification.
func (p *Pipeline) SetOnIndicatorsUpdated(fn OnIndicatorsUpdated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdated = fn
}

// Cache exposes the pipeline's result cache for read-side consumers.
func (p *Pipeline) Cache() *Cache { return p.cache }

// Specs returns the indicator specs this pipeline was built from, used by
// the checkpoint layer to describe how to rebuild calculators after a
// restore. Live calculator state (warm-up buffers, running
// sums) is not part of this — only the cache of values already produced
// survives a checkpoint round-trip; restored calculators resume
// accumulating from the next bar they see.
func (p *Pipeline) Specs() []Spec {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Spec, len(p.specs))
	copy(out, p.specs)
	return out
}

// calculatorsFor returns (creating if needed) the live calculator set for
// (symbol, tf), instantiated from every Spec whose Timeframes include tf.
func (p *Pipeline) calculatorsFor(symbol string, tf models.Timeframe) (map[string]pkgindicator.Calculator, error) {
	key := symbolTimeframeKey{symbol: symbol, timeframe: tf}
	if calcs, ok := p.calculators[key]; ok {
		return calcs, nil
	}

	calcs := make(map[string]pkgindicator.Calculator)
	for _, spec := range p.specs {
		if !containsTimeframe(spec.Timeframes, tf) {
			continue
		}
		calc, err := p.registry.Build(spec.TypeName, spec.Params)
		if err != nil {
			return nil, fmt.Errorf("indicator pipeline: building %q for %s/%s: %w", spec.TypeName, symbol, tf, err)
		}
		calcs[calc.Name()] = calc
	}
	p.calculators[key] = calcs
	return calcs, nil
}

func containsTimeframe(tfs []models.Timeframe, tf models.Timeframe) bool {
	for _, t := range tfs {
		if t == tf {
			return true
		}
	}
	return false
}

// UpdateAll feeds bar to every indicator configured for its
// (symbol, timeframe), dispatching sequentially for small sets and across
// goroutines once the set exceeds ParallelThreshold. Results
// are pushed to the cache and returned keyed by indicator name; only
// indicators that produced a value this bar (i.e. past warm-up) appear.
func (p *Pipeline) UpdateAll(symbol string, bar models.Bar) (map[string]pkgindicator.IndicatorValue, error) {
	p.mu.Lock()
	calcs, err := p.calculatorsFor(symbol, bar.Timeframe)
	cache := p.cache
	onUpdated := p.onUpdated
	threshold := p.parallelThreshold
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	results := make(map[string]pkgindicator.IndicatorValue, len(calcs))
	var resMu sync.Mutex
	record := func(name string, v pkgindicator.IndicatorValue, ready bool) {
		if !ready {
			return
		}
		resMu.Lock()
		results[name] = v
		resMu.Unlock()
		cache.Push(symbol, bar.Timeframe, name, v)
	}

	runOne := func(name string, calc pkgindicator.Calculator) error {
		v, err := calc.Update(bar)
		if err != nil {
			return fmt.Errorf("indicator %q update: %w", name, err)
		}
		record(name, v, calc.IsReady())
		return nil
	}

	if threshold > 0 && len(calcs) > threshold {
		var wg sync.WaitGroup
		errs := make(chan error, len(calcs))
		for name, calc := range calcs {
			wg.Add(1)
			go func(name string, calc pkgindicator.Calculator) {
				defer wg.Done()
				if err := runOne(name, calc); err != nil {
					errs <- err
				}
			}(name, calc)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			return nil, err
		}
	} else {
		for name, calc := range calcs {
			if err := runOne(name, calc); err != nil {
				return nil, err
			}
		}
	}

	if onUpdated != nil && len(results) > 0 {
		onUpdated(symbol, bar.Timeframe, results)
	}
	return results, nil
}

// Reset clears every live calculator for symbol across all timeframes and
// drops its cached history, used on position close or rehydration mismatch.
func (p *Pipeline) Reset(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, calcs := range p.calculators {
		if key.symbol != symbol {
			continue
		}
		for _, c := range calcs {
			c.Reset()
		}
	}
	p.cache.ClearSymbol(symbol)
}

// ResetAll clears every live calculator for every symbol and timeframe, and
// drops the entire result cache, used when reconfiguring
// the indicator set wholesale rather than on a single symbol.
func (p *Pipeline) ResetAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, calcs := range p.calculators {
		for _, c := range calcs {
			c.Reset()
		}
	}
	p.calculators = make(map[symbolTimeframeKey]map[string]pkgindicator.Calculator)
	p.cache = NewCache(p.cache.limit)
}

// UpdateStats summarizes one UpdateAll dispatch: how many indicators
// produced a fresh value, how many did not (still warming up, or errored),
// and how long the whole fan-out took.
type UpdateStats struct {
	UpdatedCount   int
	FailedCount    int
	DurationMicros int64
}

// UpdateAllWithStats feeds bar to the same calculator set as UpdateAll,
// additionally reporting dispatch timing and per-indicator failure counts.
// Unlike UpdateAll it always runs the indicators sequentially; the
// parallel threshold is not consulted. "Failed" means the indicator
// produced no value this bar — it is still inside its warm-up window, or
// its Update errored; errors are counted rather than propagated, so one
// misbehaving indicator cannot block the rest of the fan-out from being
// recorded.
func (p *Pipeline) UpdateAllWithStats(symbol string, bar models.Bar) (map[string]pkgindicator.IndicatorValue, UpdateStats, error) {
	start := time.Now()

	p.mu.Lock()
	calcs, err := p.calculatorsFor(symbol, bar.Timeframe)
	cache := p.cache
	onUpdated := p.onUpdated
	p.mu.Unlock()
	if err != nil {
		return nil, UpdateStats{}, err
	}

	results := make(map[string]pkgindicator.IndicatorValue, len(calcs))
	var failed int
	for name, calc := range calcs {
		v, err := calc.Update(bar)
		if err != nil {
			failed++
			continue
		}
		if !calc.IsReady() {
			failed++
			continue
		}
		results[name] = v
		cache.Push(symbol, bar.Timeframe, name, v)
	}

	if onUpdated != nil && len(results) > 0 {
		onUpdated(symbol, bar.Timeframe, results)
	}

	stats := UpdateStats{
		UpdatedCount:   len(results),
		FailedCount:    failed,
		DurationMicros: time.Since(start).Microseconds(),
	}
	return results, stats, nil
}
