package engine

import (
	"time"

	"github.com/ashgroveq/mtfengine/internal/interfaces"
	"github.com/ashgroveq/mtfengine/internal/models"
	"github.com/ashgroveq/mtfengine/internal/position"
)

// executionContext adapts the engine's live MTF state to the read-only view
// an order executor needs. All answers come from state the tick path has
// already committed; nothing here blocks or mutates.
type executionContext struct {
	e *Engine
}

// ExecutionContext returns a read-only view over the engine for pricing and
// gating simulated fills.
func (e *Engine) ExecutionContext() interfaces.ExecutionContext {
	return &executionContext{e: e}
}

func (c *executionContext) GetCurrentSpread(symbol string) (interfaces.Spread, bool) {
	st, ok := c.e.mtf.GetSymbolState(symbol)
	if !ok {
		return interfaces.Spread{}, false
	}
	tick := st.LastTick()
	if tick == nil {
		return interfaces.Spread{}, false
	}
	return interfaces.Spread{Bid: tick.Bid, Ask: tick.Ask}, true
}

func (c *executionContext) GetBarContext(symbol string, tf models.Timeframe) (models.Bar, bool) {
	st, ok := c.e.mtf.GetSymbolState(symbol)
	if !ok {
		return models.Bar{}, false
	}
	_, latest, ok := st.ViewTimeframe(tf, 1)
	if !ok || len(latest) == 0 {
		return models.Bar{}, false
	}
	return latest[len(latest)-1], true
}

func (c *executionContext) IsMarketOpen(symbol string, timestampMs int64) bool {
	return c.e.session.Schedule.IsTradingDay(time.UnixMilli(timestampMs))
}

func (c *executionContext) GetLastTickTime(symbol string) (int64, bool) {
	st, ok := c.e.mtf.GetSymbolState(symbol)
	if !ok {
		return 0, false
	}
	ts := st.LastUpdateMs()
	return ts, ts > 0
}

var _ interfaces.ExecutionContext = (*executionContext)(nil)

// riskContext adapts the engine's indicator cache and position store to the
// read-only view a risk engine needs to size and gate new positions.
type riskContext struct {
	e       *Engine
	balance float64
	calc    *position.PnLCalculator
}

// RiskContext returns a read-only risk view over the engine. balance is the
// account equity the caller wants sizing computed against; leverage and
// fees come from calc (pass nil for the 1x-no-fee default).
func (e *Engine) RiskContext(balance float64, calc *position.PnLCalculator) interfaces.RiskContext {
	if calc == nil {
		calc = position.NewPnLCalculator()
	}
	return &riskContext{e: e, balance: balance, calc: calc}
}

func (c *riskContext) IndicatorValue(symbol string, tf models.Timeframe, name string) (float64, bool) {
	v, ok := c.e.indicators.Cache().Latest(symbol, tf, name)
	if !ok {
		return 0, false
	}
	return v.Primary, true
}

// Volatility reports the most recent ATR reading for (symbol, tf),
// preferring the default atr_14 series and falling back to any cached
// series whose name carries the atr_ prefix.
func (c *riskContext) Volatility(symbol string, tf models.Timeframe) (float64, bool) {
	if v, ok := c.e.indicators.Cache().Latest(symbol, tf, "atr_14"); ok {
		return v.Primary, true
	}
	for name, v := range c.e.indicators.Cache().LatestAll(symbol, tf) {
		if len(name) > 4 && name[:4] == "atr_" {
			return v.Primary, true
		}
	}
	return 0, false
}

func (c *riskContext) MarginRequired(symbol string, quantity, price float64) float64 {
	p := position.New(symbol, position.SideLong, quantity, price, 0)
	return c.calc.MarginRequired(p, price)
}

func (c *riskContext) AccountBalance() float64 {
	return c.balance
}

func (c *riskContext) UsedMargin() float64 {
	return c.e.positions.CalculateTotalMargin()
}

var _ interfaces.RiskContext = (*riskContext)(nil)
