package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgroveq/mtfengine/internal/interfaces"
	"github.com/ashgroveq/mtfengine/internal/position"
)

func makeTestSnapshot() interfaces.PositionSnapshot {
	return interfaces.PositionSnapshot{
		TimestampMs:    1_704_067_200_000,
		Version:        positionSnapshotVersion,
		PositionsData:  []byte(`{"positions":[]}`),
		AccountBalance: 10_000,
		UsedMargin:     500,
		FloatingPnL:    12.5,
	}
}

func TestEventRelay_PublishTradeEvent(t *testing.T) {
	client := dialTestClient(t)
	relay := NewEventRelay(client, "mtfengine.test."+t.Name())

	evt := position.TradeEvent{
		Kind:        position.EventPositionClosed,
		PositionID:  "pos-1",
		Symbol:      "EURUSD",
		AtMs:        1_704_067_200_000,
		Price:       1.1000,
		Quantity:    10_000,
		RealizedPnL: 42.5,
	}
	require.NoError(t, relay.PublishTradeEvent(context.Background(), evt))
}

func TestNewEventRelay_PanicsOnNilClient(t *testing.T) {
	require.Panics(t, func() {
		NewEventRelay(nil, "mtfengine.test")
	})
}

func TestPositionStore_SaveAndRestoreRoundTrip(t *testing.T) {
	client := dialTestClient(t)
	store := NewPositionStore(client, "test-"+t.Name())
	require.NoError(t, store.ClearPositionSnapshots())

	_, ok := store.GetLatestSnapshotTime()
	require.False(t, ok)

	snap := makeTestSnapshot()
	require.NoError(t, store.SavePositions(snap))

	got, err := store.RestorePositions()
	require.NoError(t, err)
	require.Equal(t, snap.TimestampMs, got.TimestampMs)
	require.Equal(t, snap.PositionsData, got.PositionsData)
	require.Equal(t, snap.AccountBalance, got.AccountBalance)

	ts, ok := store.GetLatestSnapshotTime()
	require.True(t, ok)
	require.Equal(t, snap.TimestampMs, ts)

	require.True(t, store.IsCompatibleWithMTF(positionSnapshotVersion))
	require.False(t, store.IsCompatibleWithMTF(positionSnapshotVersion+1))

	require.NoError(t, store.ClearPositionSnapshots())
	_, ok = store.GetLatestSnapshotTime()
	require.False(t, ok)
}
