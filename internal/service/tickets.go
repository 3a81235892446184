package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/NexusPM/internal/domain/fusion"
	"github.com/Strob0t/NexusPM/internal/domain/proposal"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
	"github.com/Strob0t/NexusPM/internal/port/cache"
	"github.com/Strob0t/NexusPM/internal/port/pmprovider"
)

// TicketCatalog reads the tracker through a cache and collapses concurrent
// fetches of the same project into one request.
type TicketCatalog struct {
	provider   pmprovider.Provider
	projectKey string
	cache      cache.Cache
	ttl        time.Duration
	group      singleflight.Group
	clock      clock
}

// NewTicketCatalog creates a TicketCatalog. A nil cache disables caching.
func NewTicketCatalog(provider pmprovider.Provider, projectKey string, c cache.Cache, ttl time.Duration) *TicketCatalog {
	return &TicketCatalog{provider: provider, projectKey: projectKey, cache: c, ttl: ttl}
}

// Provider returns the underlying ticketing connector.
func (c *TicketCatalog) Provider() pmprovider.Provider { return c.provider }

// ProjectKey returns the tracker project new tickets are created in.
func (c *TicketCatalog) ProjectKey() string { return c.projectKey }

func (c *TicketCatalog) cacheKey() string { return "tickets:" + c.projectKey }

// List returns the known tickets of the tracker project.
func (c *TicketCatalog) List(ctx context.Context) ([]ticket.Ticket, error) {
	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, c.cacheKey()); err == nil && ok {
			var tickets []ticket.Ticket
			if json.Unmarshal(data, &tickets) == nil {
				return tickets, nil
			}
		}
	}

	v, err, _ := c.group.Do(c.cacheKey(), func() (any, error) {
		tickets, err := c.provider.ListItems(ctx, c.projectKey)
		if err != nil {
			return nil, fmt.Errorf("list %s tickets: %w", c.projectKey, err)
		}
		if c.cache != nil {
			if data, err := json.Marshal(tickets); err == nil {
				if err := c.cache.Set(ctx, c.cacheKey(), data, c.ttl); err != nil {
					slog.Debug("ticket cache set failed", "error", err)
				}
			}
		}
		return tickets, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ticket.Ticket), nil
}

// Snapshots captures the pre-change state of every detected id that is also
// a known ticket. Ids that fail to fetch are left out.
func (c *TicketCatalog) Snapshots(ctx context.Context, ids []string, known []ticket.Ticket) map[string]proposal.Snapshot {
	out := make(map[string]proposal.Snapshot)
	for _, id := range fusion.KnownIDs(ids, known) {
		t, err := c.provider.GetItem(ctx, id)
		if err != nil {
			slog.Warn("snapshot fetch failed", "ticket", id, "error", err)
			continue
		}
		out[id] = t.Snapshot(c.clock.now())
	}
	return out
}

// Invalidate drops the cached ticket list after tracker writes.
func (c *TicketCatalog) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, c.cacheKey()); err != nil {
		slog.Debug("ticket cache invalidate failed", "error", err)
	}
}

// Clear empties the whole cache if it supports it.
func (c *TicketCatalog) Clear(ctx context.Context) {
	if cl, ok := c.cache.(cache.Clearer); ok {
		cl.Clear()
		return
	}
	c.Invalidate(ctx)
}
