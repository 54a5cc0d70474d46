package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashgroveq/mtfengine/pkg/logger"
)

// RelayConsumer reads relay messages back out of a Redis stream for
// out-of-process consumers (e.g. a reporting process): a consumer-group
// read loop over a single stream of JSON payloads.
type RelayConsumer struct {
	client   *Client
	stream   string
	group    string
	consumer string
}

// NewRelayConsumer builds a consumer reading stream as group/consumer,
// creating the consumer group (with MKSTREAM) on first use.
func NewRelayConsumer(client *Client, stream, group, consumer string) *RelayConsumer {
	if client == nil {
		panic("pubsub: NewRelayConsumer requires a non-nil client")
	}
	return &RelayConsumer{client: client, stream: stream, group: group, consumer: consumer}
}

// BarCompletions starts a background read loop and returns a channel of
// decoded bar-completion payloads; the channel closes when ctx is
// cancelled. Malformed messages are logged and skipped rather than
// stalling the consumer.
func (c *RelayConsumer) BarCompletions(ctx context.Context) (<-chan barCompletionPayload, error) {
	if err := c.ensureGroup(ctx); err != nil {
		return nil, err
	}
	out := make(chan barCompletionPayload, 100)
	go c.readLoop(ctx, out)
	return out, nil
}

func (c *RelayConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *RelayConsumer) readLoop(ctx context.Context, out chan<- barCompletionPayload) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := c.client.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Warn("pubsub: relay consumer read failed", logger.ErrorField(err), logger.String("stream", c.stream))
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				raw, ok := msg.Values[streamFieldName].(string)
				if !ok {
					continue
				}
				var payload barCompletionPayload
				if err := json.Unmarshal([]byte(raw), &payload); err != nil {
					logger.Warn("pubsub: relay consumer decode failed", logger.ErrorField(err))
					continue
				}
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
				c.client.rdb.XAck(ctx, c.stream, c.group, msg.ID)
			}
		}
	}
}
