package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashgroveq/mtfengine/internal/interfaces"
)

// positionSnapshotVersion is the wire version this store writes; bumped
// whenever the on-disk JSON shape changes incompatibly.
const positionSnapshotVersion = 1

// positionKey is the single key holding the latest snapshot. Older
// snapshots are not retained; an external store only ever needs the
// most recent compatible one.
func positionKey(namespace string) string { return namespace + ":position_snapshot" }

// wireSnapshot is the JSON form of interfaces.PositionSnapshot; PositionsData
// travels base64-encoded implicitly via encoding/json's []byte handling.
type wireSnapshot struct {
	TimestampMs    int64   `json:"timestamp_ms"`
	Version        uint32  `json:"version"`
	PositionsData  []byte  `json:"positions_data"`
	AccountBalance float64 `json:"account_balance"`
	UsedMargin     float64 `json:"used_margin"`
	FloatingPnL    float64 `json:"floating_pnl"`
}

// PositionStore is a Redis-backed interfaces.PositionStateStore
// implementation: one JSON blob under a namespaced key, no separate index
// structure needed since there is only ever one "latest" snapshot per
// namespace.
type PositionStore struct {
	client     *Client
	namespace  string
	ctxTimeout time.Duration
}

// NewPositionStore builds a store over client, namespacing its key by
// namespace (e.g. the backtest ID) so multiple concurrent backtests don't
// collide on the same Redis instance. Panics if client is nil.
func NewPositionStore(client *Client, namespace string) *PositionStore {
	if client == nil {
		panic("pubsub: NewPositionStore requires a non-nil client")
	}
	if namespace == "" {
		namespace = "default"
	}
	return &PositionStore{client: client, namespace: namespace, ctxTimeout: 5 * time.Second}
}

// SavePositions writes snapshot as the namespace's latest snapshot.
func (s *PositionStore) SavePositions(snapshot interfaces.PositionSnapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctxTimeout)
	defer cancel()

	wire := wireSnapshot{
		TimestampMs:    snapshot.TimestampMs,
		Version:        snapshot.Version,
		PositionsData:  snapshot.PositionsData,
		AccountBalance: snapshot.AccountBalance,
		UsedMargin:     snapshot.UsedMargin,
		FloatingPnL:    snapshot.FloatingPnL,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("pubsub: marshal position snapshot: %w", err)
	}
	if err := s.client.rdb.Set(ctx, positionKey(s.namespace), data, 0).Err(); err != nil {
		return fmt.Errorf("pubsub: save position snapshot: %w", err)
	}
	return nil
}

// RestorePositions reads the namespace's latest snapshot. Returns a zero
// snapshot and a nil error if none has been saved yet.
func (s *PositionStore) RestorePositions() (interfaces.PositionSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctxTimeout)
	defer cancel()

	raw, err := s.client.rdb.Get(ctx, positionKey(s.namespace)).Bytes()
	if err == redis.Nil {
		return interfaces.PositionSnapshot{}, nil
	}
	if err != nil {
		return interfaces.PositionSnapshot{}, fmt.Errorf("pubsub: restore position snapshot: %w", err)
	}

	var wire wireSnapshot
	if err := json.Unmarshal(raw, &wire); err != nil {
		return interfaces.PositionSnapshot{}, fmt.Errorf("pubsub: decode position snapshot: %w", err)
	}
	return interfaces.PositionSnapshot{
		TimestampMs:    wire.TimestampMs,
		Version:        wire.Version,
		PositionsData:  wire.PositionsData,
		AccountBalance: wire.AccountBalance,
		UsedMargin:     wire.UsedMargin,
		FloatingPnL:    wire.FloatingPnL,
	}, nil
}

// IsCompatibleWithMTF reports whether version matches the version this
// store writes.
func (s *PositionStore) IsCompatibleWithMTF(version uint32) bool {
	return version == positionSnapshotVersion
}

// ClearPositionSnapshots deletes the namespace's latest snapshot.
func (s *PositionStore) ClearPositionSnapshots() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctxTimeout)
	defer cancel()
	if err := s.client.rdb.Del(ctx, positionKey(s.namespace)).Err(); err != nil {
		return fmt.Errorf("pubsub: clear position snapshots: %w", err)
	}
	return nil
}

// GetLatestSnapshotTime returns the timestamp of the namespace's latest
// snapshot, or (0, false) if none exists.
func (s *PositionStore) GetLatestSnapshotTime() (int64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctxTimeout)
	defer cancel()

	raw, err := s.client.rdb.Get(ctx, positionKey(s.namespace)).Bytes()
	if err != nil {
		return 0, false
	}
	var wire wireSnapshot
	if err := json.Unmarshal(raw, &wire); err != nil {
		return 0, false
	}
	return wire.TimestampMs, true
}

var _ interfaces.PositionStateStore = (*PositionStore)(nil)
