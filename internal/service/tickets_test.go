package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain/ticket"
)

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	cleared int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.cleared++
}

func TestTicketCatalogCaches(t *testing.T) {
	provider := newStubProvider(ticket.Ticket{Key: "PROJ-1", Summary: "Login"})
	c := newMapCache()
	catalog := NewTicketCatalog(provider, "PROJ", c, time.Minute)
	ctx := context.Background()

	for range 3 {
		got, err := catalog.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Key != "PROJ-1" {
			t.Fatalf("unexpected tickets %+v", got)
		}
	}
	if provider.listCalls != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.listCalls)
	}

	catalog.Invalidate(ctx)
	if _, err := catalog.List(ctx); err != nil {
		t.Fatal(err)
	}
	if provider.listCalls != 2 {
		t.Errorf("expected refetch after invalidate, got %d calls", provider.listCalls)
	}

	catalog.Clear(ctx)
	if c.cleared != 1 {
		t.Errorf("expected cache cleared once, got %d", c.cleared)
	}
}

func TestTicketCatalogSnapshots(t *testing.T) {
	known := []ticket.Ticket{{Key: "PROJ-1", Summary: "Login", Status: "To Do", Priority: "High"}}
	catalog := NewTicketCatalog(newStubProvider(known...), "PROJ", nil, 0)
	catalog.clock = fixedClock()

	snaps := catalog.Snapshots(context.Background(), []string{"PROJ-1", "OTHER-9"}, known)
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	s := snaps["PROJ-1"]
	if s.Status != "To Do" || s.Priority != "High" || !s.CapturedAt.Equal(testNow) {
		t.Errorf("unexpected snapshot %+v", s)
	}
}
