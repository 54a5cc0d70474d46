package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ashgroveq/mtfengine/internal/models"
	"github.com/ashgroveq/mtfengine/internal/position"
	"github.com/ashgroveq/mtfengine/pkg/logger"
)

// barCompletionPayload and tradeEventPayload are the JSON wire shapes
// written to the relay stream; kept distinct from the domain types so a
// wire-format change never forces a domain-type change.
type barCompletionPayload struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	StartMs   int64   `json:"start_ms"`
	EndMs     int64   `json:"end_ms"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	TickCount int64   `json:"tick_count"`
}

type tradeEventPayload struct {
	Kind        string  `json:"kind"`
	PositionID  string  `json:"position_id"`
	Symbol      string  `json:"symbol"`
	AtMs        int64   `json:"at_ms"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	Slippage    float64 `json:"slippage,omitempty"`
	Commission  float64 `json:"commission,omitempty"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// streamFieldName is the single field every message is carried under; the
// stream's value is always a JSON blob, never a flat field set, so schema
// evolution never requires a stream field migration.
const streamFieldName = "payload"

// EventRelay mirrors BarCompletion and TradeEvent onto a Redis stream so
// out-of-process consumers (reporting, dashboards) can observe the backtest
// without coupling to the in-process event.Bus. Purely
// additive: publish errors are logged, never propagated onto the tick path.
type EventRelay struct {
	client      *Client
	barStream   string
	tradeStream string
}

// NewEventRelay builds a relay over client, publishing bar completions and
// trade events to "<streamName>.bars" and "<streamName>.trades"
// respectively. Panics if client is nil.
func NewEventRelay(client *Client, streamName string) *EventRelay {
	if client == nil {
		panic("pubsub: NewEventRelay requires a non-nil client")
	}
	if streamName == "" {
		streamName = "mtfengine.events"
	}
	return &EventRelay{
		client:      client,
		barStream:   streamName + ".bars",
		tradeStream: streamName + ".trades",
	}
}

// PublishBarCompletion mirrors a completed bar onto the bar stream. Errors
// are returned to the caller (internal/engine logs and swallows them) since
// relay publish is defined as an out-of-band, best-effort side channel.
func (r *EventRelay) PublishBarCompletion(ctx context.Context, bar models.Bar) error {
	payload := barCompletionPayload{
		Symbol:    bar.Symbol,
		Timeframe: bar.Timeframe.String(),
		StartMs:   bar.TimestampStartMs,
		EndMs:     bar.TimestampEndMs,
		Open:      bar.Open,
		High:      bar.High,
		Low:       bar.Low,
		Close:     bar.Close,
		Volume:    bar.Volume,
		TickCount: bar.TickCount,
	}
	return r.publish(ctx, r.barStream, payload)
}

// PublishTradeEvent mirrors a position lifecycle event onto the trade
// stream.
func (r *EventRelay) PublishTradeEvent(ctx context.Context, evt position.TradeEvent) error {
	payload := tradeEventPayload{
		Kind:        evt.Kind.String(),
		PositionID:  evt.PositionID,
		Symbol:      evt.Symbol,
		AtMs:        evt.AtMs,
		Price:       evt.Price,
		Quantity:    evt.Quantity,
		Slippage:    evt.Slippage,
		Commission:  evt.Commission,
		RealizedPnL: evt.RealizedPnL,
	}
	return r.publish(ctx, r.tradeStream, payload)
}

func (r *EventRelay) publish(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pubsub: marshal payload: %w", err)
	}
	err = r.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{streamFieldName: string(data)},
	}).Err()
	if err != nil {
		logger.Warn("pubsub: relay publish failed",
			logger.ErrorField(err),
			logger.String("stream", stream),
		)
		return fmt.Errorf("pubsub: publish to %s: %w", stream, err)
	}
	return nil
}
