package service

import (
	"context"
	"fmt"
	"log/slog"

	nxotel "github.com/Strob0t/NexusPM/internal/adapter/otel"
	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/event"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/port/database"
)

// Action is a review decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction validates a review action name.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject:
		return Action(s), nil
	}
	return "", fmt.Errorf("action must be approve or reject, got %q: %w", s, domain.ErrValidation)
}

// DiffActionResult is the outcome of a single-diff decision.
type DiffActionResult struct {
	Diff run.Diff `json:"diff"`
	Run  *run.Run `json:"run"`
}

// ApprovalService applies review decisions to runs parked at human_review.
//
// Run-level approval executes every still pending diff exactly as drafted.
// Diff-level approval re-matches one proposal against the tracker before
// executing it and leaves the run awaiting review.
type ApprovalService struct {
	store   database.Store
	writer  *RunWriter
	events  *EventPublisher
	tickets *TicketCatalog
	metrics *nxotel.Metrics
	clock   clock
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(store database.Store, writer *RunWriter, events *EventPublisher, tickets *TicketCatalog) *ApprovalService {
	return &ApprovalService{store: store, writer: writer, events: events, tickets: tickets}
}

// SetMetrics sets the optional metrics recorder.
func (s *ApprovalService) SetMetrics(m *nxotel.Metrics) {
	s.metrics = m
}

func (s *ApprovalService) executor() executor {
	return executor{provider: s.tickets.Provider(), projectKey: s.tickets.ProjectKey()}
}

func (s *ApprovalService) at(r *run.Run, stage run.Stage, status run.NodeStatus, desc string) run.Transition {
	return run.Transition{ProjectID: r.ProjectID, RunID: r.ID, Stage: stage, Status: status, Description: desc, At: s.clock.now()}
}

func (s *ApprovalService) countChange(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.ExecutorChange(ctx, outcome)
	}
}

// RunAction approves or rejects a whole run.
func (s *ApprovalService) RunAction(ctx context.Context, projectID, runID string, action Action) (*run.Run, error) {
	r, err := s.store.GetRun(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}
	if r.Status != run.StatusAwaitingReview {
		return nil, fmt.Errorf("run %s is %s, not awaiting review: %w", runID, r.Status, domain.ErrConflict)
	}

	switch action {
	case ActionApprove:
		return s.approveRun(ctx, r)
	case ActionReject:
		return s.rejectRun(ctx, r)
	}
	return nil, fmt.Errorf("unknown action %q: %w", action, domain.ErrValidation)
}

func (s *ApprovalService) rejectRun(ctx context.Context, r *run.Run) (*run.Run, error) {
	updated, err := s.writer.Apply(ctx, s.at(r, run.StageHumanReview, run.NodeError, "Rejected by PM"))
	if err != nil {
		return nil, err
	}
	s.events.Log(ctx, r.ProjectID, r.ID, run.StageHumanReview, run.LevelWarning, "Run rejected by PM")
	s.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Operator", Action: "rejected run", Target: r.Name,
		Source: "system", Status: event.PulseError,
	})
	slog.Info("run rejected", "project_id", r.ProjectID, "run_id", r.ID)
	return updated, nil
}

// approveRun claims the run by completing human_review, then executes the
// pending diffs. Connector failures are collected per diff and never fail
// the run.
func (s *ApprovalService) approveRun(ctx context.Context, r *run.Run) (*run.Run, error) {
	claimed, _, err := s.writer.ApplyWith(ctx, r.ProjectID, r.ID, func(cur *run.Run) (run.Transition, error) {
		for _, d := range cur.Diffs {
			if d.Status == run.DiffExecuting {
				return run.Transition{}, fmt.Errorf("diff %s is still executing: %w", d.ID, domain.ErrConflict)
			}
		}
		return s.at(cur, run.StageHumanReview, run.NodeCompleted, "Approved by PM"), nil
	})
	if err != nil {
		return nil, err
	}

	ctx, span := nxotel.StartExecuteSpan(ctx, r.ID, "bulk")
	defer span.End()

	s.events.Log(ctx, r.ProjectID, r.ID, run.StageExecute, run.LevelInfo, "Approved by PM, executing tracker changes")

	ex := s.executor()
	executed := []run.ExecutedChange{}
	failed := []run.FailedChange{}
	var resolutions []run.Resolution
	created, updated := 0, 0

	for i := range claimed.Diffs {
		d := &claimed.Diffs[i]
		if d.Status != run.DiffPending {
			continue
		}
		change, result, err := ex.bulk(ctx, d)
		resolutions = append(resolutions, run.Resolution{DiffID: d.ID, Status: run.DiffApproved, Result: result})
		switch {
		case err != nil:
			failed = append(failed, run.FailedChange{DiffID: d.ID, Title: d.Proposal.Title, Error: err.Error()})
			s.events.Log(ctx, r.ProjectID, r.ID, run.StageExecute, run.LevelError, fmt.Sprintf("Failed %q: %v", d.Title, err))
			s.countChange(ctx, "failed")
		case change != nil:
			executed = append(executed, *change)
			s.events.Log(ctx, r.ProjectID, r.ID, run.StageExecute, run.LevelSuccess, fmt.Sprintf("%s %s: %s", change.Status, change.Key, change.Title))
			if change.Type == "create" {
				created++
			} else {
				updated++
			}
			s.countChange(ctx, change.Status)
		}
	}
	if len(executed) > 0 {
		s.tickets.Invalidate(ctx)
	}

	t := s.at(claimed, run.StageExecute, run.NodeCompleted, fmt.Sprintf("Executed %d changes", len(executed)))
	t.Outcome = &run.Outcome{Resolutions: resolutions, Executed: executed, Failed: failed}
	done, err := s.writer.Apply(ctx, t)
	if err != nil {
		return nil, err
	}

	s.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent:  "Operator",
		Action: fmt.Sprintf("approved and executed %d Jira changes", len(executed)),
		Target: r.Name,
		Source: "jira",
		Status: event.PulseCompleted,
		Details: map[string]int{
			"created": created,
			"updated": updated,
			"failed":  len(failed),
		},
	})
	slog.Info("run approved", "project_id", r.ProjectID, "run_id", r.ID, "executed", len(executed), "failed", len(failed))
	return done, nil
}

// DiffAction approves or rejects one diff of a run awaiting review.
//
// Approval claims the diff as executing, talks to the tracker without
// holding the run lock, then settles the diff in a second write.
func (s *ApprovalService) DiffAction(ctx context.Context, projectID, runID, diffID string, action Action) (*DiffActionResult, error) {
	r, err := s.store.GetRun(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}
	d, err := r.Diff(diffID)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionReject:
		updated, err := s.resolveDiff(ctx, projectID, runID, diffID, run.DiffRejected, nil)
		if err != nil {
			return nil, err
		}
		resolved, _ := updated.Diff(diffID)
		s.events.Pulse(ctx, projectID, event.Pulse{
			Agent: "Operator", Action: "Rejected proposal", Target: d.Proposal.Title,
			Source: "system", Status: event.PulseError,
			Details: map[string]string{"proposal_title": d.Proposal.Title, "diff_id": diffID},
		})
		return &DiffActionResult{Diff: *resolved, Run: updated}, nil
	case ActionApprove:
	default:
		return nil, fmt.Errorf("unknown action %q: %w", action, domain.ErrValidation)
	}

	claimed, err := s.resolveDiff(ctx, projectID, runID, diffID, run.DiffExecuting, nil)
	if err != nil {
		return nil, err
	}
	pending, _ := claimed.Diff(diffID)

	known, err := s.tickets.List(ctx)
	if err != nil {
		slog.Warn("ticket list unavailable for diff matching", "run_id", runID, "error", err)
	}
	spanCtx, span := nxotel.StartExecuteSpan(ctx, runID, "diff")
	res := s.executor().analyze(spanCtx, pending.Proposal, known)
	span.End()

	updated, err := s.resolveDiff(ctx, projectID, runID, diffID, run.DiffApproved, &res)
	if err != nil {
		slog.Error("recording diff result failed", "project_id", projectID, "run_id", runID, "diff_id", diffID,
			"action", res.Action, "key", res.Key, "error", err)
		return nil, err
	}
	resolved, _ := updated.Diff(diffID)
	s.reportDiff(ctx, updated, resolved, &res)
	return &DiffActionResult{Diff: *resolved, Run: updated}, nil
}

// resolveDiff moves one diff to status as a human_review progress step.
func (s *ApprovalService) resolveDiff(ctx context.Context, projectID, runID, diffID string, status run.DiffStatus, result *run.ExecutionResult) (*run.Run, error) {
	updated, _, err := s.writer.ApplyWith(ctx, projectID, runID, func(cur *run.Run) (run.Transition, error) {
		if cur.Status != run.StatusAwaitingReview {
			return run.Transition{}, fmt.Errorf("run %s is %s, not awaiting review: %w", runID, cur.Status, domain.ErrConflict)
		}
		if _, err := cur.Diff(diffID); err != nil {
			return run.Transition{}, err
		}

		desc := "Executing approved proposal"
		if status != run.DiffExecuting {
			reviewed := 0
			for _, other := range cur.Diffs {
				if other.ID == diffID || other.Status != run.DiffPending {
					reviewed++
				}
			}
			desc = fmt.Sprintf("%d of %d proposals reviewed", reviewed, len(cur.Diffs))
		}
		t := s.at(cur, run.StageHumanReview, run.NodeActive, desc)
		t.Outcome = &run.Outcome{Resolutions: []run.Resolution{{DiffID: diffID, Status: status, Result: result}}}
		return t, nil
	})
	return updated, err
}

func (s *ApprovalService) reportDiff(ctx context.Context, r *run.Run, d *run.Diff, res *run.ExecutionResult) {
	var text, outcome string
	switch res.Action {
	case run.ActionCreate:
		text, outcome = "Created new Jira ticket "+res.Key, "created"
	case run.ActionUpdate:
		text, outcome = "Updated Jira ticket "+res.Key, "updated"
	case run.ActionMarkDone:
		text, outcome = "Marked Jira ticket "+res.Key+" as Done", "closed"
	default:
		text, outcome = "Executed "+string(res.Action), "skipped"
	}
	status, level := event.PulseCompleted, run.LevelSuccess
	if !res.Success {
		status, level, outcome = event.PulseError, run.LevelError, "failed"
		text += " failed"
	} else {
		s.tickets.Invalidate(ctx)
	}
	s.countChange(ctx, outcome)
	s.events.Log(ctx, r.ProjectID, r.ID, run.StageHumanReview, level, text+": "+d.Title)
	s.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Operator", Action: text, Target: d.Proposal.Title,
		Source: "jira", Status: status,
		Details: map[string]string{
			"ticket_key":     res.Key,
			"action_type":    string(res.Action),
			"proposal_title": d.Proposal.Title,
			"diff_id":        d.ID,
		},
	})
}
