package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "inventory:snapshot:"

// SnapshotCache keeps per-dealer ledger snapshots in Redis. Reads may be
// eventually stale relative to in-flight transactions, which is acceptable for
// the browse surface.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache instantiates the cache helper.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Fetch loads a cached snapshot or populates it using the loader.
func (c *SnapshotCache) Fetch(ctx context.Context, dealerID int64, loader func(context.Context) ([]Entry, error)) ([]Entry, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := snapshotKey(dealerID)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var entries []Entry
		if err := json.Unmarshal(payload, &entries); err == nil {
			return entries, nil
		}
	} else if err != redis.Nil {
		return nil, err
	}
	entries, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Invalidate drops the dealer's snapshot after a ledger mutation.
func (c *SnapshotCache) Invalidate(ctx context.Context, dealerID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, snapshotKey(dealerID)).Err()
}

func snapshotKey(dealerID int64) string {
	return fmt.Sprintf("%s%d", snapshotKeyPrefix, dealerID)
}
