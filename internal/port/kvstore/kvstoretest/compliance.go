// Package kvstoretest provides a reusable compliance suite for kvstore.Store
// implementations.
package kvstoretest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/NexusPM/internal/port/cache/cachetest"
	"github.com/Strob0t/NexusPM/internal/port/kvstore"
)

// Run runs the cache compliance suite plus the scan and TTL checks every
// Store must pass.
func Run(t *testing.T, s kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	cachetest.Run(t, s)

	t.Run("ScanPrefixOrdered", func(t *testing.T) {
		for _, k := range []string{"run:p1:b", "run:p1:a", "run:p2:a", "project:p1"} {
			if err := s.Set(ctx, k, []byte(k), 0); err != nil {
				t.Fatal(err)
			}
		}
		entries, err := s.Scan(ctx, "run:p1:")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Key != "run:p1:a" || entries[1].Key != "run:p1:b" {
			t.Fatalf("unexpected order: %s, %s", entries[0].Key, entries[1].Key)
		}
		if string(entries[1].Value) != "run:p1:b" {
			t.Fatalf("unexpected value %q", entries[1].Value)
		}
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		if err := s.Set(ctx, "cas:k", []byte("v1"), 0); err != nil {
			t.Fatal(err)
		}
		ok, err := s.CompareAndSwap(ctx, "cas:k", []byte("stale"), []byte("v2"))
		if err != nil || ok {
			t.Fatalf("swap against a stale value must fail, ok=%v err=%v", ok, err)
		}
		ok, err = s.CompareAndSwap(ctx, "cas:k", []byte("v1"), []byte("v2"))
		if err != nil || !ok {
			t.Fatalf("swap against the current value must succeed, ok=%v err=%v", ok, err)
		}
		got, _, err := s.Get(ctx, "cas:k")
		if err != nil || string(got) != "v2" {
			t.Fatalf("expected v2 after swap, got %q (%v)", got, err)
		}
		ok, err = s.CompareAndSwap(ctx, "cas:missing", []byte("v1"), []byte("v2"))
		if err != nil || ok {
			t.Fatalf("swap on a missing key must fail, ok=%v err=%v", ok, err)
		}
	})

	t.Run("ScanEmpty", func(t *testing.T) {
		entries, err := s.Scan(ctx, "nothing-here:")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected no entries, got %d", len(entries))
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		if err := s.Set(ctx, "ttl:short", []byte("v"), 50*time.Millisecond); err != nil {
			t.Fatal(err)
		}
		time.Sleep(200 * time.Millisecond)
		if _, found, err := s.Get(ctx, "ttl:short"); err != nil || found {
			t.Fatalf("expected expired entry, found=%v err=%v", found, err)
		}
		entries, err := s.Scan(ctx, "ttl:")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Fatalf("expired entry returned by scan: %v", entries)
		}
	})
}
