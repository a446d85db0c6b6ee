package notify

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a sent message stays editable under its dedup key.
const DefaultTTL = 5 * time.Minute

// Entry records the remote message sent for a dedup key.
type Entry struct {
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Cache stores dedup entries. Get must only return entries that are still
// fresh at now; EvictStale drops the ones that are not. Both take the
// caller's clock so expiry follows a single time source.
type Cache interface {
	Get(ctx context.Context, key string, now time.Time) (Entry, bool, error)
	Put(ctx context.Context, key string, entry Entry) error
	EvictStale(ctx context.Context, now time.Time) error
}

// MemoryCache is a process-local Cache. Expired entries are purged lazily.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
}

// NewMemoryCache returns an in-memory cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, now time.Time) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.expired(entry, now) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) EvictStale(_ context.Context, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if c.expired(entry, now) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored entries, stale or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) expired(entry Entry, now time.Time) bool {
	return now.Sub(entry.CreatedAt) >= c.ttl
}
