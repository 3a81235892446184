package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Strob0t/NexusPM/internal/domain/fusion"
	"github.com/Strob0t/NexusPM/internal/domain/proposal"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/port/reasoner"
)

func TestFuseUsesOracle(t *testing.T) {
	oracle := &stubOracle{result: &fusion.Result{
		Summary: "ok",
		Proposals: []proposal.Proposal{
			proposal.NewUpdate("PROJ-1", "Update PROJ-1", "", proposal.PriorityHigh, nil),
		},
	}}
	svc := NewFusionService(oracle)

	in := fusion.Input{Snapshots: map[string]proposal.Snapshot{"PROJ-1": {Key: "PROJ-1", Status: "To Do"}}}
	out := svc.Fuse(context.Background(), in)

	if out.Source != SourceOracle || out.Fallback != nil {
		t.Fatalf("expected oracle path, got %s (%v)", out.Source, out.Fallback)
	}
	if out.Result.Proposals[0].Snapshot == nil {
		t.Error("expected snapshot attached to oracle proposal")
	}
}

func TestFuseFallsBack(t *testing.T) {
	in := fusion.Input{Messages: []signal.Message{{User: "alice", Text: "we need to add an export button", TS: "1.0"}}}
	tests := []struct {
		name   string
		oracle reasoner.Reasoner
		reason string
	}{
		{"no oracle", nil, "unavailable"},
		{"unavailable", &stubOracle{err: fmt.Errorf("dial: %w", reasoner.ErrUnavailable)}, "unavailable"},
		{"timeout", &stubOracle{err: context.DeadlineExceeded}, "timeout"},
		{"malformed", &stubOracle{err: reasoner.ErrMalformed}, "malformed"},
		{"empty", &stubOracle{result: &fusion.Result{}}, "empty"},
		{"other", &stubOracle{err: errors.New("boom")}, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewFusionService(tt.oracle).Fuse(context.Background(), in)
			if out.Source != SourceHeuristic {
				t.Fatalf("expected heuristic, got %s", out.Source)
			}
			if got := fallbackReason(out.Fallback); got != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, got)
			}
			if len(out.Result.Proposals) != 1 {
				t.Errorf("expected heuristic proposal, got %d", len(out.Result.Proposals))
			}
		})
	}
}
