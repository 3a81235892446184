package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/project"
)

func TestProjectCRUD(t *testing.T) {
	h := newHarness(t, newStubProvider(), nil)
	h.projects.clock = fixedClock()
	ctx := context.Background()

	p := h.project(t)
	if p.Status != project.StatusActive || p.Health != 100 {
		t.Errorf("unexpected defaults %+v", p)
	}
	if !p.CreatedAt.Equal(testNow) {
		t.Errorf("expected injected clock, got %v", p.CreatedAt)
	}

	name := "Renamed"
	updated, err := h.projects.Update(ctx, p.ID, project.UpdateRequest{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Description != "test project" {
		t.Errorf("partial update clobbered fields: %+v", updated)
	}

	if err := h.projects.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := h.projects.Get(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := h.projects.Delete(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestProjectCreateRequiresName(t *testing.T) {
	h := newHarness(t, newStubProvider(), nil)
	_, err := h.projects.Create(context.Background(), project.CreateRequest{Name: "  "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSeedDefaults(t *testing.T) {
	h := newHarness(t, newStubProvider(), nil)
	ctx := context.Background()

	n, err := h.projects.SeedDefaults(ctx)
	if err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	seeds := project.DefaultSeeds()
	if n != len(seeds) {
		t.Fatalf("expected %d seeded projects, got %d", len(seeds), n)
	}
	list, _ := h.projects.List(ctx)
	if len(list) != len(seeds) {
		t.Fatalf("expected %d projects, got %d", len(seeds), len(list))
	}

	again, err := h.projects.SeedDefaults(ctx)
	if err != nil || again != 0 {
		t.Errorf("expected reseed to be a no-op, got %d, %v", again, err)
	}
}
