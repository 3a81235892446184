package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/NexusPM/internal/domain/connection"
	"github.com/Strob0t/NexusPM/internal/port/database"
)

// Probe is an integration client that can verify its own credentials.
type Probe interface {
	Configured() bool
	Check(ctx context.Context) (string, error)
}

// Integration is a process-wide external service shown on the status board.
type Integration struct {
	ID    string
	Name  string
	Icon  string
	Color string
	Probe Probe
}

// ServiceStatus is the health of one integration.
type ServiceStatus struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Icon     string            `json:"icon"`
	Color    string            `json:"color"`
	Status   connection.Status `json:"status"`
	Health   int               `json:"health"`
	Latency  int64             `json:"latency"`
	LastSync string            `json:"lastSync"`
}

// ResetResult reports what an admin reset removed and recreated.
type ResetResult struct {
	OK             bool `json:"ok"`
	FlushedKeys    int  `json:"flushed_keys"`
	SeededProjects int  `json:"seeded_projects"`
}

// AdminService bundles maintenance operations.
type AdminService struct {
	store        database.Store
	projects     *ProjectService
	tickets      *TicketCatalog
	integrations []Integration
	probeTimeout time.Duration
}

// NewAdminService creates an AdminService.
func NewAdminService(store database.Store, projects *ProjectService, tickets *TicketCatalog, integrations []Integration) *AdminService {
	return &AdminService{
		store:        store,
		projects:     projects,
		tickets:      tickets,
		integrations: integrations,
		probeTimeout: 5 * time.Second,
	}
}

// Reset flushes every stored key and reseeds the default projects.
func (s *AdminService) Reset(ctx context.Context) (*ResetResult, error) {
	n, err := s.store.Flush(ctx)
	if err != nil {
		return nil, fmt.Errorf("flush store: %w", err)
	}
	if s.tickets != nil {
		s.tickets.Clear(ctx)
	}
	seeded, err := s.projects.SeedDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("reseed: %w", err)
	}
	slog.Warn("store reset", "flushed_keys", n, "seeded_projects", seeded)
	return &ResetResult{OK: true, FlushedKeys: n, SeededProjects: seeded}, nil
}

// Seed creates the default projects if none exist.
func (s *AdminService) Seed(ctx context.Context) (int, error) {
	return s.projects.SeedDefaults(ctx)
}

// ServicesStatus pings every integration concurrently.
func (s *AdminService) ServicesStatus(ctx context.Context) []ServiceStatus {
	out := make([]ServiceStatus, len(s.integrations))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range s.integrations {
		g.Go(func() error {
			out[i] = s.ping(gctx, in)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *AdminService) ping(ctx context.Context, in Integration) ServiceStatus {
	st := ServiceStatus{
		ID:       in.ID,
		Name:     in.Name,
		Icon:     in.Icon,
		Color:    in.Color,
		Status:   connection.StatusDisconnected,
		LastSync: "never",
	}
	if in.Probe == nil || !in.Probe.Configured() {
		return st
	}

	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	start := time.Now()
	_, err := in.Probe.Check(ctx)
	st.Latency = time.Since(start).Milliseconds()
	if err != nil {
		slog.Debug("integration unhealthy", "integration", in.ID, "error", err)
		st.Status = connection.StatusError
		return st
	}
	st.Status = connection.StatusConnected
	st.Health = 100
	st.LastSync = "just now"
	return st
}
