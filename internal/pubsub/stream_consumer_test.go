package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgroveq/mtfengine/internal/config"
	"github.com/ashgroveq/mtfengine/internal/models"
)

// dialTestClient connects to a local Redis instance, skipping the test when
// none is reachable.
func dialTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis-backed test in short mode")
	}
	cfg := config.DefaultRedisConfig()
	client, err := NewClient(cfg)
	if err != nil {
		t.Skipf("skipping test: Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestEventRelay_PublishAndConsumeBarCompletion(t *testing.T) {
	client := dialTestClient(t)
	stream := "mtfengine.test." + t.Name()
	relay := NewEventRelay(client, stream)

	bar := models.Bar{
		Symbol:           "EURUSD",
		Timeframe:        models.M1,
		TimestampStartMs: 1_704_067_200_000,
		TimestampEndMs:   1_704_067_260_000,
		Open:             1.0920,
		High:             1.0925,
		Low:              1.0918,
		Close:            1.0923,
		Volume:           10,
		TickCount:        3,
	}
	require.NoError(t, relay.PublishBarCompletion(context.Background(), bar))

	consumer := NewRelayConsumer(client, stream+".bars", "test-group", "test-consumer")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ch, err := consumer.BarCompletions(ctx)
	require.NoError(t, err)

	select {
	case payload := <-ch:
		assert.Equal(t, "EURUSD", payload.Symbol)
		assert.Equal(t, "M1", payload.Timeframe)
		assert.InDelta(t, 1.0923, payload.Close, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed bar completion")
	}
}
