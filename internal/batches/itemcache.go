package batches

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const itemsKeyPrefix = "dyetrack:batch-items:"

// ItemCache stores the item list of a batch once it has been fetched.
type ItemCache interface {
	// Get returns the cached items; ok is false on a miss.
	Get(ctx context.Context, id int64) (items []Item, ok bool, err error)
	Set(ctx context.Context, id int64, items []Item) error
	Invalidate(ctx context.Context, id int64) error
}

// RedisItemCache keeps item lists as JSON under a per-batch key.
type RedisItemCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisItemCache constructs the cache. A ttl of zero keeps entries until
// they are invalidated.
func NewRedisItemCache(client *redis.Client, ttl time.Duration) *RedisItemCache {
	return &RedisItemCache{client: client, ttl: ttl}
}

func itemsKey(id int64) string {
	return itemsKeyPrefix + strconv.FormatInt(id, 10)
}

func (c *RedisItemCache) Get(ctx context.Context, id int64) ([]Item, bool, error) {
	payload, err := c.client.Get(ctx, itemsKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var items []Item
	if err := json.Unmarshal(payload, &items); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next Set
		return nil, false, nil
	}
	return items, true, nil
}

func (c *RedisItemCache) Set(ctx context.Context, id int64, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, itemsKey(id), raw, c.ttl).Err()
}

func (c *RedisItemCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, itemsKey(id)).Err()
}

// MemoryItemCache is the process-local fallback used when Redis is absent.
type MemoryItemCache struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	items   []Item
	expires time.Time
}

// NewMemoryItemCache constructs an in-memory cache.
func NewMemoryItemCache(ttl time.Duration) *MemoryItemCache {
	return &MemoryItemCache{entries: make(map[int64]memoryEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryItemCache) Get(_ context.Context, id int64) ([]Item, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]Item(nil), entry.items...), true, nil
}

func (c *MemoryItemCache) Set(_ context.Context, id int64, items []Item) error {
	entry := memoryEntry{items: append([]Item{}, items...)}
	if c.ttl > 0 {
		entry.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[id] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryItemCache) Invalidate(_ context.Context, id int64) error {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	return nil
}
