// Package cache provides the Redis fast path for slot availability.
// The counter is a performance optimization over the durable slot row,
// never an authority: it is only written under the same lock as the
// durable write, and a miss falls back to the row.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL must outlive the booking horizon so warm counters stay
// warm; it is refreshed on every read and write.
const counterTTL = 24 * time.Hour

// SlotCounter caches one integer per slot: the remaining available
// capacity as of the last durable write.
type SlotCounter struct {
	rdb *redis.Client
}

// NewSlotCounter returns a SlotCounter bound to the given client.
func NewSlotCounter(rdb *redis.Client) *SlotCounter {
	return &SlotCounter{rdb: rdb}
}

func counterKey(storeID uint64, date, slotTime string) string {
	return fmt.Sprintf("slot:%d:%s:%s", storeID, date, slotTime)
}

// Get returns the cached available count for a slot.  The second return
// is false on a cache miss; callers must then consult the durable row
// and repopulate via Set.  A hit refreshes the key's TTL.
func (c *SlotCounter) Get(ctx context.Context, storeID uint64, date, slotTime string) (int, bool, error) {
	key := counterKey(storeID, date, slotTime)
	n, err := c.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	// Refresh expiry on access; failure here only shortens cache life.
	_ = c.rdb.Expire(ctx, key, counterTTL).Err()
	return n, true, nil
}

// Set writes the available count for a slot.  Called under the slot's
// lock, immediately after the durable row is updated, so the counter
// and the row agree by the time the lock is released.
func (c *SlotCounter) Set(ctx context.Context, storeID uint64, date, slotTime string, available int) error {
	return c.rdb.Set(ctx, counterKey(storeID, date, slotTime), available, counterTTL).Err()
}

// Invalidate drops the counter so the next read lazily warms it from
// the durable row.  Used when a durable write succeeded but the cache
// write failed and the two may disagree.
func (c *SlotCounter) Invalidate(ctx context.Context, storeID uint64, date, slotTime string) error {
	return c.rdb.Del(ctx, counterKey(storeID, date, slotTime)).Err()
}
