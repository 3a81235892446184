// Package tiered layers an in-process cache over a shared one.
package tiered

import (
	"context"
	"time"

	"github.com/Strob0t/NexusPM/internal/port/cache"
)

// Cache reads L1 first and falls back to L2, backfilling L1 on an L2 hit.
// Writes and deletes go to both levels. L2 keys are stored under namespace
// so the shared store can hold other records beside the cache.
type Cache struct {
	l1        cache.Cache
	l2        cache.Cache
	namespace string
	l1Expire  time.Duration
}

// New creates a tiered cache. l1Expire caps how long entries live in L1.
func New(l1, l2 cache.Cache, namespace string, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, namespace: namespace, l1Expire: l1Expire}
}

func (c *Cache) l2Key(key string) string { return c.namespace + key }

// l1TTL returns the shorter of ttl and the L1 cap; zero means no limit.
func (c *Cache) l1TTL(ttl time.Duration) time.Duration {
	if c.l1Expire > 0 && (ttl == 0 || ttl > c.l1Expire) {
		return c.l1Expire
	}
	return ttl
}

// Get checks L1, then L2.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, c.l2Key(key))
	if err != nil || !found {
		return nil, false, err
	}
	_ = c.l1.Set(ctx, key, val, c.l1TTL(0))
	return val, true, nil
}

// Set writes to both levels.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1TTL(ttl)); err != nil {
		return err
	}
	return c.l2.Set(ctx, c.l2Key(key), value, ttl)
}

// Delete removes key from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, c.l2Key(key))
}

// Clear drops L1. L2 entries are left to expire or to a store-wide flush.
func (c *Cache) Clear() {
	if cl, ok := c.l1.(cache.Clearer); ok {
		cl.Clear()
	}
}
