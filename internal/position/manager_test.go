package position

import (
	"testing"

	"github.com/ashgroveq/mtfengine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SubmitOpenClose(t *testing.T) {
	var opened, closed bool
	m := NewManager(Hooks{
		OnOpen:  func(p *Position) { opened = true },
		OnClose: func(p *Position, evt TradeEvent) { closed = true },
	})

	p := New("EURUSD", SideLong, 1, 1.1000, 0)
	m.Submit(p)

	require.NoError(t, m.Open(p.ID))
	assert.True(t, opened)

	require.NoError(t, m.CloseAt(p.ID, 1.1050, 1000))
	assert.True(t, closed)

	got, ok := m.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, StateClosed, got.State)
}

func TestManager_BySymbolAndByState(t *testing.T) {
	m := NewManager(Hooks{})
	p1 := New("EURUSD", SideLong, 1, 1.1, 0)
	p2 := New("EURUSD", SideShort, 1, 1.1, 0)
	p3 := New("GBPUSD", SideLong, 1, 1.3, 0)
	m.Submit(p1)
	m.Submit(p2)
	m.Submit(p3)

	require.NoError(t, m.Open(p1.ID))

	assert.Len(t, m.BySymbol("EURUSD"), 2)
	assert.Len(t, m.BySymbol("GBPUSD"), 1)
	assert.Len(t, m.ByState(StatePending), 2)
	assert.Len(t, m.ByState(StateOpen), 1)
}

func TestManager_OpenPositions(t *testing.T) {
	m := NewManager(Hooks{})
	p1 := New("EURUSD", SideLong, 1, 1.1, 0)
	p2 := New("EURUSD", SideLong, 1, 1.1, 0)
	m.Submit(p1)
	m.Submit(p2)
	require.NoError(t, m.Open(p1.ID))

	open := m.OpenPositions("EURUSD")
	require.Len(t, open, 1)
	assert.Equal(t, p1.ID, open[0].ID)
}

func TestManager_ChildrenByParentID(t *testing.T) {
	m := NewManager(Hooks{})
	parent := New("EURUSD", SideLong, 2, 1.1, 0)
	m.Submit(parent)

	child := New("EURUSD", SideLong, 1, 1.1, 0)
	child.ParentID = parent.ID
	m.Submit(child)

	children := m.Children(parent.ID)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)
}

func TestManager_EventsRecordedOnClose(t *testing.T) {
	m := NewManager(Hooks{})
	p := New("EURUSD", SideLong, 1, 1.1, 0)
	m.Submit(p)
	require.NoError(t, m.Open(p.ID))
	require.NoError(t, m.CloseAt(p.ID, 1.105, 500))

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, StateOpen, events[0].FromState)
	assert.Equal(t, StateClosed, events[0].ToState)
}

func TestManager_OnTick_OnlyOpenPositions(t *testing.T) {
	m := NewManager(Hooks{})
	p1 := New("EURUSD", SideLong, 10000, 1.1000, 0)
	p2 := New("EURUSD", SideLong, 10000, 1.1000, 0)
	m.Submit(p1)
	m.Submit(p2)
	require.NoError(t, m.Open(p1.ID))

	pnl := m.OnTick("EURUSD", 1.1050)
	require.Len(t, pnl, 1)
	assert.Contains(t, pnl, p1.ID)
}

func TestManager_OperationsOnUnknownIDFail(t *testing.T) {
	m := NewManager(Hooks{})
	assert.ErrorIs(t, m.Open("missing"), ErrPositionNotFound)
	assert.ErrorIs(t, m.Cancel("missing"), ErrPositionNotFound)
	assert.ErrorIs(t, m.CloseAt("missing", 1.0, 0), ErrPositionNotFound)
}

func TestManager_OpenPosition_ValidatesAndLinksParent(t *testing.T) {
	m := NewManager(Hooks{})

	parentID, err := m.OpenPosition("EURUSD", SideLong, 2, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)

	sl := 1.0950
	childID, err := m.OpenPosition("EURUSD", SideLong, 1, 1.1000, &sl, nil, parentID, 100)
	require.NoError(t, err)

	parent, ok := m.Get(parentID)
	require.True(t, ok)
	assert.Contains(t, parent.ChildIDs, childID)

	_, err = m.OpenPosition("EURUSD", SideLong, 0, 1.1000, nil, nil, "", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestManager_GetPositionReturnsCopy(t *testing.T) {
	m := NewManager(Hooks{})
	id, err := m.OpenPosition("EURUSD", SideLong, 1, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)

	cp, ok := m.GetPosition(id)
	require.True(t, ok)
	cp.Quantity = 999

	live, _ := m.Get(id)
	assert.Equal(t, 1.0, live.Quantity)
}

func TestManager_ClosePositionComputesRealizedPnLAndStats(t *testing.T) {
	m := NewManager(Hooks{})
	id, err := m.OpenPosition("EURUSD", SideLong, 10000, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)

	realized, err := m.ClosePosition(id, 1.1050, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, realized, 1e-9)

	stats := m.GetStatistics("EURUSD")
	assert.Equal(t, 1, stats.TotalClosed)
	assert.Equal(t, 1, stats.TotalWins)
	assert.InDelta(t, 50.0, stats.NetProfit, 1e-9)
}

func TestManager_PartialClosePosition(t *testing.T) {
	m := NewManager(Hooks{})
	id, err := m.OpenPosition("EURUSD", SideLong, 10000, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)

	realized, err := m.PartialClosePosition(id, 4000, 1.1050, 500)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, realized, 1e-9)

	p, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateOpen, p.State)
	assert.InDelta(t, 6000.0, p.Quantity, 1e-9)

	_, err = m.PartialClosePosition(id, 7000, 1.1050, 600)
	assert.ErrorIs(t, err, ErrQuantityExceedsPosition)

	realized, err = m.PartialClosePosition(id, 6000, 1.1050, 700)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, realized, 1e-9)

	p, _ = m.Get(id)
	assert.Equal(t, StateClosed, p.State)
}

func TestManager_UpdatePositionPriceReportsTrigger(t *testing.T) {
	m := NewManager(Hooks{})
	sl := 1.0950
	id, err := m.OpenPosition("EURUSD", SideLong, 1, 1.1000, &sl, nil, "", 0)
	require.NoError(t, err)

	triggered, kind, err := m.UpdatePositionPrice(id, 1.0940)
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, EventStopLossTriggered, kind)

	p, _ := m.Get(id)
	assert.Equal(t, StateOpen, p.State) // UpdatePositionPrice reports, it does not close
}

func TestManager_OnTickUpdateClosesOnStopBreach(t *testing.T) {
	m := NewManager(Hooks{})
	sl := 1.0950
	id, err := m.OpenPosition("EURUSD", SideLong, 1, 1.1000, &sl, nil, "", 0)
	require.NoError(t, err)

	m.OnTickUpdate(models.Tick{Symbol: "EURUSD", Timestamp: 1000, Bid: 1.0940, Ask: 1.0942}, "EURUSD")

	p, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateClosed, p.State)
}

func TestManager_OnBarCompleteClosesOnTargetBreach(t *testing.T) {
	m := NewManager(Hooks{})
	tp := 1.1100
	id, err := m.OpenPosition("EURUSD", SideLong, 1, 1.1000, nil, &tp, "", 0)
	require.NoError(t, err)

	bar := models.Bar{Symbol: "EURUSD", Timeframe: models.M1, TimestampEndMs: 60000, Close: 1.1150}
	m.OnBarComplete(bar, models.M1, "EURUSD")

	p, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateClosed, p.State)
}

func TestManager_BulkUpdatePrices(t *testing.T) {
	m := NewManager(Hooks{})
	id, err := m.OpenPosition("EURUSD", SideLong, 1, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)

	m.BulkUpdatePrices(map[string]float64{"EURUSD": 1.1030, "GBPUSD": 1.3000})

	p, _ := m.Get(id)
	assert.InDelta(t, 1.1030, p.CurrentPrice, 1e-9)
}

func TestManager_AggregateQueries(t *testing.T) {
	m := NewManager(Hooks{})
	id1, err := m.OpenPosition("EURUSD", SideLong, 10000, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)
	_, err = m.OpenPosition("GBPUSD", SideLong, 10000, 1.3000, nil, nil, "", 0)
	require.NoError(t, err)

	m.BulkUpdatePrices(map[string]float64{"EURUSD": 1.1050})

	assert.Equal(t, 2, m.CountOpenPositions())
	assert.Equal(t, 2, m.CountTotalPositions())

	total := m.GetTotalFloatingPnL()
	assert.Greater(t, total, 0.0)

	bySymbol := m.GetFloatingPnLBySymbol()
	assert.InDelta(t, 50.0, bySymbol["EURUSD"], 1e-9)

	margin := m.CalculateTotalMargin()
	assert.Greater(t, margin, 0.0)

	_, err = m.ClosePosition(id1, 1.1050, 1000)
	require.NoError(t, err)
	removed := m.ClearClosedPositions()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.CountTotalPositions())
}

func TestManager_SnapshotAndRestore(t *testing.T) {
	m := NewManager(Hooks{})
	id, err := m.OpenPosition("EURUSD", SideLong, 1, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)
	_, err = m.ClosePosition(id, 1.1050, 1000)
	require.NoError(t, err)

	positions, events := m.Snapshot()

	restored := NewManager(Hooks{})
	restored.Restore(positions, events)

	assert.Equal(t, 1, restored.CountTotalPositions())
	stats := restored.GetStatistics("EURUSD")
	assert.Equal(t, 1, stats.TotalClosed)
}

func TestManager_RecordMarginCall(t *testing.T) {
	m := NewManager(Hooks{})
	m.RecordMarginCall("EURUSD", 1000, 1.1000)

	events := m.EventsFor(marginCallsBucket)
	require.Len(t, events, 1)
	assert.Equal(t, EventMarginCall, events[0].Kind)
}

func TestManager_TradeLogSurface(t *testing.T) {
	m := NewManager(Hooks{})
	id, err := m.OpenPosition("EURUSD", SideLong, 100_000, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)

	events := m.GetPositionEvents(id)
	require.Len(t, events, 2) // placed + filled
	assert.Equal(t, EventOrderPlaced, events[0].Kind)
	assert.Equal(t, EventOrderFilled, events[1].Kind)

	m.LogEvent(TradeEvent{Kind: EventOrderFilled, PositionID: id, Symbol: "EURUSD", AtMs: 100, Price: 1.1001, Quantity: 50_000, Slippage: 0.0001})
	events = m.GetPositionEvents(id)
	require.Len(t, events, 3)
	assert.InDelta(t, 0.0001, events[2].Slippage, 1e-12)

	m.ClearEvents()
	assert.Empty(t, m.GetPositionEvents(id))
}

func TestManager_FillEventCarriesCommission(t *testing.T) {
	m := NewManager(Hooks{})
	m.SetPnLCalculator(&PnLCalculator{Leverage: 1, PerLotFee: 7})

	id, err := m.OpenPosition("EURUSD", SideLong, 100_000, 1.1000, nil, nil, "", 0)
	require.NoError(t, err)

	events := m.GetPositionEvents(id)
	require.Len(t, events, 2)
	assert.InDelta(t, 14.0, events[1].Commission, 1e-9) // 1 lot * 7 * 2
}
