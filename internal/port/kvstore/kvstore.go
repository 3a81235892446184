// Package kvstore defines the durable key/value port backing the run store.
package kvstore

import (
	"context"

	"github.com/Strob0t/NexusPM/internal/port/cache"
)

// Entry is a key with its stored value.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a key/value store with optional per-key TTL and prefix scans.
// Keys use ':' as a segment separator (for example "run:<project>:<run>").
// Individual Get/Set/Delete/CompareAndSwap calls are atomic; nothing else is.
type Store interface {
	cache.Cache

	// Scan returns all live entries whose key starts with prefix, sorted by key.
	Scan(ctx context.Context, prefix string) ([]Entry, error)

	// CompareAndSwap replaces the live value under key with next only if it
	// still equals prev, keeping the entry's expiry. It reports whether the
	// swap happened; a missing key never swaps.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error)

	// Close releases the underlying connection or handle.
	Close() error
}
