package indicator

import (
	"fmt"
	"sync"
)

// Factory builds a fresh Calculator instance from string params. Every
// (symbol, timeframe) pair gets its own Calculator, so the registry holds
// constructors, not instances.
type Factory func(params map[string]string) (Calculator, error)

// Registry holds the set of known indicator type names and how to build
// them.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates typeName (e.g. "sma", "rsi", "macd") with a Factory.
func (r *Registry) Register(typeName string, factory Factory) error {
	if typeName == "" {
		return fmt.Errorf("indicator: type name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("indicator: factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typeName]; exists {
		return fmt.Errorf("indicator: type %q already registered", typeName)
	}
	r.factories[typeName] = factory
	return nil
}

// Build constructs a new Calculator instance of typeName using params.
func (r *Registry) Build(typeName string, params map[string]string) (Calculator, error) {
	r.mu.RLock()
	factory, exists := r.factories[typeName]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("indicator: type %q not registered", typeName)
	}
	return factory(params)
}

// List returns every registered type name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Unregister removes typeName from the registry.
func (r *Registry) Unregister(typeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, typeName)
}

// NewDefaultRegistry builds a Registry with every built-in indicator type
// registered under its canonical name.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	mustRegister(r, "sma", func(p map[string]string) (Calculator, error) {
		return NewSMA(intParam(p, "period", 20))
	})
	mustRegister(r, "ema", func(p map[string]string) (Calculator, error) {
		return NewEMA(intParam(p, "period", 20))
	})
	mustRegister(r, "wma", func(p map[string]string) (Calculator, error) {
		return NewWMA(intParam(p, "period", 20))
	})
	mustRegister(r, "dema", func(p map[string]string) (Calculator, error) {
		return NewDEMA(intParam(p, "period", 20))
	})
	mustRegister(r, "rsi", func(p map[string]string) (Calculator, error) {
		return NewRSI(intParam(p, "period", 14))
	})
	mustRegister(r, "macd", func(p map[string]string) (Calculator, error) {
		return NewMACD(intParam(p, "fast", 12), intParam(p, "slow", 26), intParam(p, "signal", 9))
	})
	mustRegister(r, "stochastic", func(p map[string]string) (Calculator, error) {
		return NewStochastic(intParam(p, "period", 14), intParam(p, "d_period", 3))
	})
	mustRegister(r, "cci", func(p map[string]string) (Calculator, error) {
		return NewCCI(intParam(p, "period", 20))
	})
	mustRegister(r, "williams_r", func(p map[string]string) (Calculator, error) {
		return NewWilliamsR(intParam(p, "period", 14))
	})
	mustRegister(r, "bollinger", func(p map[string]string) (Calculator, error) {
		return NewBollinger(intParam(p, "period", 20), floatParam(p, "num_std_dev", 2.0))
	})
	mustRegister(r, "atr", func(p map[string]string) (Calculator, error) {
		return NewATR(intParam(p, "period", 14))
	})
	mustRegister(r, "keltner", func(p map[string]string) (Calculator, error) {
		return NewKeltner(intParam(p, "ema_period", 20), intParam(p, "atr_period", 10), floatParam(p, "multiplier", 2.0))
	})
	mustRegister(r, "donchian", func(p map[string]string) (Calculator, error) {
		return NewDonchian(intParam(p, "period", 20))
	})
	mustRegister(r, "obv", func(p map[string]string) (Calculator, error) {
		return NewOBV(), nil
	})
	mustRegister(r, "volume_sma", func(p map[string]string) (Calculator, error) {
		return NewVolumeSMA(intParam(p, "period", 20))
	})
	mustRegister(r, "vwap", func(p map[string]string) (Calculator, error) {
		return NewVWAP(), nil
	})
	mustRegister(r, "adx", func(p map[string]string) (Calculator, error) {
		return NewADX(intParam(p, "period", 14))
	})
	mustRegister(r, "parabolic_sar", func(p map[string]string) (Calculator, error) {
		return NewParabolicSAR(floatParam(p, "step", 0.02), floatParam(p, "max_step", 0.2))
	})
	mustRegister(r, "pivots", func(p map[string]string) (Calculator, error) {
		return NewPivots(), nil
	})
	mustRegister(r, "support_resistance", func(p map[string]string) (Calculator, error) {
		return NewSupportResistance(intParam(p, "lookback", 50))
	})

	return r
}

func mustRegister(r *Registry, name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(fmt.Sprintf("indicator: default registry setup failed for %q: %v", name, err))
	}
}
