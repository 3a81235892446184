// Package memkv implements kvstore.Store as an in-process map.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/NexusPM/internal/port/kvstore"
)

type item struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (it item) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// Store is a process-local key/value store. Expired entries are hidden
// from reads immediately and removed by Sweep.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{items: make(map[string]item), now: time.Now}
}

// Get returns the value for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || it.expired(s.now()) {
		return nil, false, nil
	}
	return clone(it.value), true, nil
}

// Set stores value under key. A zero ttl keeps the entry until deleted.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := item{value: clone(value)}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// CompareAndSwap replaces the value under key if it still equals prev.
func (s *Store) CompareAndSwap(_ context.Context, key string, prev, next []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok || it.expired(s.now()) || !bytes.Equal(it.value, prev) {
		return false, nil
	}
	it.value = clone(next)
	s.items[key] = it
	return true, nil
}

// Scan returns live entries under prefix, sorted by key.
func (s *Store) Scan(_ context.Context, prefix string) ([]kvstore.Entry, error) {
	now := s.now()
	s.mu.RLock()
	out := make([]kvstore.Entry, 0)
	for k, it := range s.items {
		if strings.HasPrefix(k, prefix) && !it.expired(now) {
			out = append(out, kvstore.Entry{Key: k, Value: clone(it.value)})
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep every interval until the returned cancel is called.
func (s *Store) StartSweeper(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
	return cancel
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
