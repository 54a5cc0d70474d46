package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_ValidLifecycle(t *testing.T) {
	p := New("EURUSD", SideLong, 1.0, 1.1000, 0)
	require.Equal(t, StatePending, p.State)

	require.NoError(t, p.Open())
	assert.Equal(t, StateOpen, p.State)

	require.NoError(t, p.Close(1.1050, 1000))
	assert.Equal(t, StateClosed, p.State)
	assert.Equal(t, 1.1050, p.ExitPrice)
}

func TestPosition_CancelFromPending(t *testing.T) {
	p := New("EURUSD", SideLong, 1.0, 1.1000, 0)
	require.NoError(t, p.Cancel())
	assert.Equal(t, StateCancelled, p.State)
}

func TestPosition_RejectsInvalidTransitions(t *testing.T) {
	p := New("EURUSD", SideLong, 1.0, 1.1000, 0)
	require.NoError(t, p.Open())

	err := p.Cancel()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = p.Open()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPosition_ClosedIsTerminal(t *testing.T) {
	p := New("EURUSD", SideLong, 1.0, 1.1000, 0)
	require.NoError(t, p.Open())
	require.NoError(t, p.Close(1.1050, 1000))

	assert.ErrorIs(t, p.Close(1.2, 2000), ErrInvalidTransition)
}

func TestPnLCalculator_LongGrossAndNet(t *testing.T) {
	p := New("EURUSD", SideLong, 10000, 1.1000, 0)
	p.Commission = 2
	p.Swap = 0.5
	require.NoError(t, p.Open())

	calc := NewPnLCalculator()
	gross := calc.GrossPnL(p, 1.1050)
	assert.InDelta(t, 50.0, gross, 1e-9)

	net := calc.NetPnL(p, 1.1050)
	assert.InDelta(t, 47.5, net, 1e-9)
}

func TestPnLCalculator_ShortInvertsDirection(t *testing.T) {
	p := New("EURUSD", SideShort, 10000, 1.1000, 0)
	require.NoError(t, p.Open())

	calc := NewPnLCalculator()
	gross := calc.GrossPnL(p, 1.0950)
	assert.InDelta(t, 50.0, gross, 1e-9)
}

func TestPnLCalculator_Pips(t *testing.T) {
	p := New("EURUSD", SideLong, 1, 1.1000, 0)
	require.NoError(t, p.Open())

	calc := NewPnLCalculator()
	pips := calc.Pips(p, 1.1050)
	assert.InDelta(t, 50.0, pips, 1e-6)
}

func TestPnLCalculator_RiskReward(t *testing.T) {
	p := New("EURUSD", SideLong, 1, 1.1000, 0)
	p.StopLoss = 1.0950
	p.HasStopLoss = true
	p.TakeProfit = 1.1150
	p.HasTakeProfit = true
	require.NoError(t, p.Open())

	calc := NewPnLCalculator()
	rr := calc.RiskReward(p)
	assert.InDelta(t, 3.0, rr, 1e-9)
}

func TestSharpe_ZeroVarianceIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Sharpe([]float64{1, 1, 1}, 0))
}

func TestSharpe_PositiveMeanPositiveVariance(t *testing.T) {
	s := Sharpe([]float64{1, 2, 3, -1, 2}, 0)
	assert.Greater(t, s, 0.0)
}

func TestSharpe_RiskFreeRateShiftsTheMean(t *testing.T) {
	returns := []float64{1, 2, 3, -1, 2}
	base := Sharpe(returns, 0)
	discounted := Sharpe(returns, 0.5)
	assert.Less(t, discounted, base)

	// A risk-free rate equal to the mean drives the ratio to zero.
	assert.InDelta(t, 0.0, Sharpe(returns, 1.4), 1e-9)
}

func TestPnLCalculator_CommissionAndSwap(t *testing.T) {
	p := New("EURUSD", SideLong, 100_000, 1.1000, 0)
	calc := &PnLCalculator{PerLotFee: 7, SwapRatePoints: 1, Leverage: 50}

	assert.InDelta(t, 14.0, calc.Commission(p), 1e-9) // 1 lot * 7 * 2
	swap := calc.Swap(p, 3)
	assert.InDelta(t, 0.0001*10*3, swap, 1e-9)
}

func TestPnLCalculator_MarginAndROI(t *testing.T) {
	p := New("EURUSD", SideLong, 100_000, 1.1000, 0)
	require.NoError(t, p.Open())
	calc := &PnLCalculator{Leverage: 50}

	margin := calc.MarginRequired(p, 1.1000)
	assert.InDelta(t, 2200.0, margin, 1e-6)

	roi := calc.ROI(p, 1.1050)
	assert.Greater(t, roi, 0.0)
}

func TestPnLCalculator_PipSizeTable(t *testing.T) {
	assert.InDelta(t, 0.01, PipSizeFor("USDJPY"), 1e-9)
	assert.InDelta(t, 0.0001, PipSizeFor("EURUSD"), 1e-9)
	assert.InDelta(t, DefaultPipSize, PipSizeFor("UNKNOWN"), 1e-9)
}

func TestPosition_StopAndTargetTriggers(t *testing.T) {
	long := New("EURUSD", SideLong, 1, 1.1000, 0)
	long.StopLoss, long.HasStopLoss = 1.0950, true
	long.TakeProfit, long.HasTakeProfit = 1.1100, true
	require.NoError(t, long.Open())

	require.NoError(t, long.UpdatePrice(1.0940))
	assert.True(t, long.StopTriggered())
	assert.False(t, long.TargetTriggered())

	require.NoError(t, long.UpdatePrice(1.1150))
	assert.False(t, long.StopTriggered())
	assert.True(t, long.TargetTriggered())

	short := New("EURUSD", SideShort, 1, 1.1000, 0)
	short.StopLoss, short.HasStopLoss = 1.1050, true
	short.TakeProfit, short.HasTakeProfit = 1.0900, true
	require.NoError(t, short.Open())

	require.NoError(t, short.UpdatePrice(1.1060))
	assert.True(t, short.StopTriggered())

	require.NoError(t, short.UpdatePrice(1.0890))
	assert.True(t, short.TargetTriggered())
}

func TestPosition_RegressFromOpenToPending(t *testing.T) {
	p := New("EURUSD", SideLong, 1, 1.1000, 0)
	require.NoError(t, p.Open())
	require.NoError(t, p.Regress())
	assert.Equal(t, StatePending, p.State)
}

func TestPosition_CloneIsIndependent(t *testing.T) {
	p := New("EURUSD", SideLong, 1, 1.1000, 0)
	p.ChildIDs = append(p.ChildIDs, "child-1")
	p.Metadata["strategy"] = "breakout"

	cp := p.Clone()
	cp.ChildIDs[0] = "mutated"
	cp.Metadata["strategy"] = "mutated"

	assert.Equal(t, "child-1", p.ChildIDs[0])
	assert.Equal(t, "breakout", p.Metadata["strategy"])
}
