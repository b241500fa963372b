// Package item implements the cached item resource for the Katya
// identity platform: a postgres-persisted collection wrapped by a Redis
// cache-aside layer. Reads go cache-then-store-then-populate; writes
// mutate the store first and invalidate after, so a concurrent reader
// never re-populates the cache from a not-yet-committed state.
package item

import (
	"strconv"
	"time"
)

// Item is a persisted item record. The struct doubles as the cache value
// via its JSON encoding.
type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultCacheTTL bounds the staleness window for cache entries whose
// invalidation was missed or failed.
const DefaultCacheTTL = 10 * time.Minute

// Cache key layout. The aggregate key is invalidated on every write; the
// per-item key additionally on update and delete.
const (
	// allItemsKey caches the full item list.
	allItemsKey = "items:all"

	// itemKeyPrefix prefixes per-item cache keys ("item:<id>").
	itemKeyPrefix = "item:"

	// hitCounterKey and missCounterKey count cache hits and misses
	// across both read paths, making read-through behavior observable.
	hitCounterKey  = "items:cache:hits"
	missCounterKey = "items:cache:misses"
)

// itemKey returns the cache key for a single item.
func itemKey(id int64) string {
	return itemKeyPrefix + strconv.FormatInt(id, 10)
}
