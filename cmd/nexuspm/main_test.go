package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/NexusPM/internal/adapter/ws"
	"github.com/Strob0t/NexusPM/internal/config"
	"github.com/Strob0t/NexusPM/internal/domain/proposal"
	"github.com/Strob0t/NexusPM/internal/domain/run"
)

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Store.Backend = config.BackendMemory
	return &cfg
}

func TestBuildAppOnMemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer b.Close()
	if b.queue != nil {
		t.Fatal("memory backend must not dial NATS")
	}

	a, err := buildApp(cfg, b, ws.NewHub())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.Close()

	if a.health.oracle {
		t.Error("oracle must be disabled without a LiteLLM URL")
	}
	if a.health.slack || a.health.figma || a.health.jira {
		t.Errorf("integrations must be unconfigured by default, got %+v", a.health)
	}

	n, err := a.admin.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	projects, err := a.projects.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != n || n == 0 {
		t.Fatalf("expected %d seeded projects, got %d", n, len(projects))
	}

	var buf bytes.Buffer
	renderProjects(&buf, projects)
	if !strings.Contains(buf.String(), projects[0].Name) {
		t.Errorf("project table misses %q:\n%s", projects[0].Name, buf.String())
	}

	statuses := a.admin.ServicesStatus(ctx)
	if len(statuses) != 3 {
		t.Fatalf("expected slack, figma and jira on the status board, got %d", len(statuses))
	}
}

func TestOpenBackendUnknown(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Backend = "redis"
	if _, err := openBackend(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestCheckerFactory(t *testing.T) {
	checkers := checkerFactory(memoryConfig())
	for _, kind := range []string{"slack", "figma", "jira"} {
		if checkers(kind, "token") == nil {
			t.Errorf("expected checker for %s", kind)
		}
	}
	if checkers("github", "token") != nil {
		t.Error("expected no checker for unknown kinds")
	}
}

func TestRenderRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := run.New("r1", "p1", "weekly", nil, now)
	r.Diffs = []run.Diff{run.NewDiff("d1", proposal.NewCreate("Add rate limiting", "", proposal.PriorityMedium), now)}

	var buf bytes.Buffer
	renderRun(&buf, r)
	out := buf.String()
	for _, want := range []string{"r1", "ingest", "d1", "Add rate limiting"} {
		if !strings.Contains(out, want) {
			t.Errorf("run output misses %q:\n%s", want, out)
		}
	}

	buf.Reset()
	renderRuns(&buf, []run.Run{*r})
	if !strings.Contains(buf.String(), string(run.StatusRunning)) {
		t.Errorf("runs table misses status:\n%s", buf.String())
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, map[string]int{"count": 2}); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil || got["count"] != 2 {
		t.Fatalf("unexpected output %q (%v)", buf.String(), err)
	}
}

func TestMaxDuration(t *testing.T) {
	if got := maxDuration(time.Hour, 7*24*time.Hour, time.Minute); got != 7*24*time.Hour {
		t.Errorf("expected a week, got %s", got)
	}
	if maxDuration() != 0 {
		t.Error("expected zero for no inputs")
	}
}

func TestStartSweeperStops(t *testing.T) {
	calls := make(chan struct{}, 16)
	stop := startSweeper("test", time.Millisecond, func(context.Context) (int64, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return 1, nil
	})
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("sweeper never ran")
	}
	stop()
}
