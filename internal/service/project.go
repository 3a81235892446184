// Package service implements business logic on top of ports.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/NexusPM/internal/domain/project"
	"github.com/Strob0t/NexusPM/internal/port/database"
)

// ConnectionSeeder creates the default connections of a new project.
type ConnectionSeeder interface {
	SeedProject(ctx context.Context, projectID string) error
}

// ProjectService handles project business logic.
type ProjectService struct {
	store  database.Store
	seeder ConnectionSeeder
	clock  clock
}

// NewProjectService creates a new ProjectService.
func NewProjectService(store database.Store) *ProjectService {
	return &ProjectService{store: store}
}

// SetConnectionSeeder sets the optional seeder called for every new project.
func (s *ProjectService) SetConnectionSeeder(cs ConnectionSeeder) {
	s.seeder = cs
}

// List returns all projects, newest first.
func (s *ProjectService) List(ctx context.Context) ([]project.Project, error) {
	return s.store.ListProjects(ctx)
}

// Get returns a project by ID.
func (s *ProjectService) Get(ctx context.Context, id string) (*project.Project, error) {
	return s.store.GetProject(ctx, id)
}

// Create creates a new project after validating the request.
func (s *ProjectService) Create(ctx context.Context, req project.CreateRequest) (*project.Project, error) {
	if err := project.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	p := project.New(newID(), req, s.clock.now())
	if err := s.store.SaveProject(ctx, &p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	if s.seeder != nil {
		if err := s.seeder.SeedProject(ctx, p.ID); err != nil {
			slog.Warn("seed project connections failed", "project_id", p.ID, "error", err)
		}
	}
	return &p, nil
}

// Update applies partial updates to a project.
func (s *ProjectService) Update(ctx context.Context, id string, req project.UpdateRequest) (*project.Project, error) {
	if err := project.ValidateUpdateRequest(req); err != nil {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Apply(req, s.clock.now())
	if err := s.store.SaveProject(ctx, p); err != nil {
		return nil, fmt.Errorf("update project %s: %w", id, err)
	}
	return p, nil
}

// Delete removes a project. Its runs are kept.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteProject(ctx, id)
}

// Touch bumps the project's sync counter and activity time after a run.
func (s *ProjectService) Touch(ctx context.Context, id string) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return
	}
	p.SyncCount++
	p.LastActivity = s.clock.now()
	if err := s.store.SaveProject(ctx, p); err != nil {
		slog.Warn("touch project failed", "project_id", id, "error", err)
	}
}

// SeedDefaults creates the default projects when the catalog is empty and
// returns how many were created.
func (s *ProjectService) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := s.store.ListProjects(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	seeds := project.DefaultSeeds()
	for i, seed := range seeds {
		p, err := s.Create(ctx, seed.Request)
		if err != nil {
			return i, fmt.Errorf("seed %q: %w", seed.Request.Name, err)
		}
		if _, err := s.Update(ctx, p.ID, seed.Update()); err != nil {
			return i, fmt.Errorf("seed %q: %w", seed.Request.Name, err)
		}
	}
	slog.Info("default projects seeded", "count", len(seeds))
	return len(seeds), nil
}
