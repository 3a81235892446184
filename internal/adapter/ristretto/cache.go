// Package ristretto provides the in-process L1 cache used in front of the
// ticket catalog.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a cost-bounded in-process cache. Writes are flushed before Set
// returns so a following Get observes them.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache holding at most maxCostBytes of values. Zero or
// negative sizes fall back to 32 MiB.
func New(maxCostBytes int64) (*Cache, error) {
	if maxCostBytes <= 0 {
		maxCostBytes = 32 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/10, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get returns the cached value for key.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value. A zero ttl keeps the entry until it is evicted.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value))+int64(len(key)), ttl)
	c.c.Wait()
	return nil
}

// Delete drops key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.c.Clear()
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
