// Package pubsub implements the engine's optional distributed fan-out: an
// EventRelay that mirrors BarCompletion and TradeEvent onto a Redis stream
// for out-of-process consumers, and a Redis-backed PositionStateStore
// for external consumers. The in-process internal/event.Bus remains the
// synchronous source of truth the tick path depends on; everything in
// this package is additive and never sits on the tick path.
package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashgroveq/mtfengine/internal/config"
	"github.com/ashgroveq/mtfengine/pkg/logger"
)

// Client wraps a go-redis connection, verified reachable at construction
// time.
type Client struct {
	rdb *redis.Client
}

// NewClient dials Redis per cfg and pings it with a short timeout. Returns
// an error rather than panicking since Redis is an optional collaborator —
// callers decide whether its absence is fatal.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pubsub: connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
	)
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
