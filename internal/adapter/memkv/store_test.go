package memkv

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/NexusPM/internal/port/kvstore"
	"github.com/Strob0t/NexusPM/internal/port/kvstore/kvstoretest"
)

var _ kvstore.Store = (*Store)(nil)

func TestCompliance(t *testing.T) {
	kvstoretest.Run(t, New())
}

func TestSweep(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"), time.Minute)
	_ = s.Set(ctx, "b", []byte("2"), 0)

	now = now.Add(2 * time.Minute)
	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
	if _, found, _ := s.Get(ctx, "b"); !found {
		t.Fatal("entry without ttl must survive sweep")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("abc"), 0)
	v, _, _ := s.Get(ctx, "k")
	v[0] = 'x'
	again, _, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value mutated through returned slice: %q", again)
	}
}
