package position

import "math"

// DefaultPipSize is the standard forex pip size for a 4-decimal quote pair;
// JPY crosses and indices override via the PipValueTable.
const DefaultPipSize = 0.0001

// PipValueTable maps a symbol to its pip size: 0.01 for JPY crosses,
// 0.0001 for other forex majors, 1.0 for major indices, with
// DefaultPipSize as the fallback for anything not listed.
var PipValueTable = map[string]float64{
	"USDJPY": 0.01,
	"EURJPY": 0.01,
	"GBPJPY": 0.01,
	"AUDJPY": 0.01,
	"CHFJPY": 0.01,
	"EURUSD": 0.0001,
	"GBPUSD": 0.0001,
	"AUDUSD": 0.0001,
	"NZDUSD": 0.0001,
	"USDCAD": 0.0001,
	"USDCHF": 0.0001,
	"US30":   1.0,
	"US500":  1.0,
	"NAS100": 1.0,
}

// PipSizeFor returns the configured pip size for symbol, falling back to
// DefaultPipSize when the symbol is unlisted.
func PipSizeFor(symbol string) float64 {
	if v, ok := PipValueTable[symbol]; ok {
		return v
	}
	return DefaultPipSize
}

// PnLCalculator computes realized and unrealized P&L metrics for a
// Position: a stateless calculator over a Position snapshot rather than
// fields mutated in place on every tick.
type PnLCalculator struct {
	// PipSize overrides PipSizeFor's lookup when set (>0); otherwise each
	// method looks the position's symbol up in PipValueTable.
	PipSize float64
	// Leverage is the account leverage used by MarginRequired. Defaults
	// to 1 (no leverage) when unset.
	Leverage float64
	// PerLotFee is the flat round-trip commission per 100,000 units of
	// quantity.
	PerLotFee float64
	// SwapRatePoints and the position's pip size (PipSize, or the
	// PipValueTable entry) feed the Swap formula;
	// Swap is computed per call rather than accrued automatically.
	SwapRatePoints float64
}

// NewPnLCalculator builds a calculator with 1x leverage and no fees; set
// PerLotFee/SwapRatePoints/Leverage explicitly to model a specific account.
func NewPnLCalculator() *PnLCalculator {
	return &PnLCalculator{Leverage: 1}
}

func (c *PnLCalculator) pipSize(p *Position) float64 {
	if c.PipSize > 0 {
		return c.PipSize
	}
	return PipSizeFor(p.Symbol)
}

func (c *PnLCalculator) leverage() float64 {
	if c.Leverage <= 0 {
		return 1
	}
	return c.Leverage
}

func (c *PnLCalculator) markPrice(p *Position, markPrice float64) float64 {
	if p.State == StateClosed {
		return p.ExitPrice
	}
	return markPrice
}

// GrossPnL is (exit-entry)*quantity for a long, negated for a short.
func (c *PnLCalculator) GrossPnL(p *Position, markPrice float64) float64 {
	exit := c.markPrice(p, markPrice)
	diff := exit - p.EntryPrice
	if p.Side == SideShort {
		diff = -diff
	}
	return diff * p.Quantity
}

// NetPnL subtracts commission and swap from GrossPnL.
func (c *PnLCalculator) NetPnL(p *Position, markPrice float64) float64 {
	return c.GrossPnL(p, markPrice) - p.Commission - p.Swap
}

// Pips converts the price move into pips.
func (c *PnLCalculator) Pips(p *Position, markPrice float64) float64 {
	exit := c.markPrice(p, markPrice)
	diff := exit - p.EntryPrice
	if p.Side == SideShort {
		diff = -diff
	}
	return diff / c.pipSize(p)
}

// Commission is the flat round-trip fee: (quantity/100_000) * PerLotFee * 2.
func (c *PnLCalculator) Commission(p *Position) float64 {
	return (p.Quantity / 100_000) * c.PerLotFee * 2
}

// Swap is the overnight financing charge for holding quantity for days,
// expressed in account currency: (quantity/100_000) * swap_rate_points *
// days * pip_value * 10.
func (c *PnLCalculator) Swap(p *Position, days float64) float64 {
	return (p.Quantity / 100_000) * c.SwapRatePoints * days * c.pipSize(p) * 10
}

// MarginRequired is quantity * price / leverage.
func (c *PnLCalculator) MarginRequired(p *Position, price float64) float64 {
	lev := c.leverage()
	if lev == 0 {
		return 0
	}
	return p.Quantity * price / lev
}

// ROI is unrealized P&L as a percentage of required margin:
// unrealized / margin * 100. Returns 0 if margin is 0.
func (c *PnLCalculator) ROI(p *Position, markPrice float64) float64 {
	margin := c.MarginRequired(p, p.EntryPrice)
	if margin == 0 {
		return 0
	}
	return c.NetPnL(p, markPrice) / margin * 100
}

// RiskReward is the ratio of the configured take-profit distance to the
// stop-loss distance from entry. Returns 0 if either is
// unset or the distance is non-positive, to avoid a division by zero
// masquerading as an infinite ratio.
func (c *PnLCalculator) RiskReward(p *Position) float64 {
	if !p.HasStopLoss || !p.HasTakeProfit {
		return 0
	}
	var reward, risk float64
	switch p.Side {
	case SideLong:
		reward = p.TakeProfit - p.EntryPrice
		risk = p.EntryPrice - p.StopLoss
	case SideShort:
		reward = p.EntryPrice - p.TakeProfit
		risk = p.StopLoss - p.EntryPrice
	}
	if risk <= 0 || reward <= 0 {
		return 0
	}
	return reward / risk
}

// TypicalPrice is (high+low+close)/3 at bar granularity, used by VWAP and
// volume-profile helpers.
func TypicalPrice(high, low, close float64) float64 {
	return (high + low + close) / 3
}

// VWAP computes the volume-weighted average price over a slice of
// (typicalPrice, volume) pairs.
func VWAP(typicalPrices, volumes []float64) float64 {
	var pv, v float64
	n := len(typicalPrices)
	if len(volumes) < n {
		n = len(volumes)
	}
	for i := 0; i < n; i++ {
		pv += typicalPrices[i] * volumes[i]
		v += volumes[i]
	}
	if v == 0 {
		return 0
	}
	return pv / v
}

// VolumeProfile buckets volume by price level, rounded to bucketSize, for a
// coarse volume-at-price helper.
func VolumeProfile(prices, volumes []float64, bucketSize float64) map[float64]float64 {
	profile := make(map[float64]float64)
	if bucketSize <= 0 {
		bucketSize = 1
	}
	n := len(prices)
	if len(volumes) < n {
		n = len(volumes)
	}
	for i := 0; i < n; i++ {
		bucket := math.Round(prices[i]/bucketSize) * bucketSize
		profile[bucket] += volumes[i]
	}
	return profile
}

// Sharpe computes the Sharpe ratio of a return series against riskFreeRate:
// (mean(returns) - rf) / stddev(returns, sample), annualization left to the
// caller since the sampling interval is context-dependent. Returns 0 for
// fewer than two samples or a zero-variance series.
func Sharpe(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return (mean - riskFreeRate) / stddev
}
