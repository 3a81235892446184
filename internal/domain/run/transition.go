package run

import (
	"fmt"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain"
)

// Transition is a typed stage change. The orchestrator and the approval
// executor emit transitions; the run store writer applies them and the
// event bus publisher turns them into pulses.
type Transition struct {
	ProjectID   string     `json:"project_id"`
	RunID       string     `json:"run_id"`
	Stage       Stage      `json:"stage"`
	Status      NodeStatus `json:"status"`
	Description string     `json:"description"`
	Details     []string   `json:"details,omitempty"`
	At          time.Time  `json:"at"`
	Outcome     *Outcome   `json:"outcome,omitempty"`
}

// Outcome carries stage output that is persisted with a transition.
type Outcome struct {
	Diffs          []Diff           `json:"diffs,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	Insights       []string         `json:"insights,omitempty"`
	ProposalSource string           `json:"proposal_source,omitempty"`
	Resolutions    []Resolution     `json:"resolutions,omitempty"`
	Executed       []ExecutedChange `json:"executed,omitempty"`
	Failed         []FailedChange   `json:"failed,omitempty"`
}

// Resolution is a review decision for one diff.
type Resolution struct {
	DiffID string           `json:"diff_id"`
	Status DiffStatus       `json:"status"`
	Result *ExecutionResult `json:"result,omitempty"`
}

// Apply moves r according to t.
//
// NodeActive reports progress on the node that is already active; its
// outcome may carry individual diff resolutions during review.
// NodeCompleted completes the active node and activates the next one, so
// exactly one node stays active while the run is in flight. Completing
// draft parks the run in awaiting_review; completing execute finishes it.
// NodeError fails the active node and the run.
func (r *Run) Apply(t Transition) error {
	if r.Terminal() {
		return fmt.Errorf("run %s is %s: %w", r.ID, r.Status, domain.ErrConflict)
	}
	idx := t.Stage.Index()
	if idx < 0 {
		return fmt.Errorf("unknown stage %q: %w", t.Stage, domain.ErrValidation)
	}
	node := &r.Nodes[idx]
	if node.Status != NodeActive {
		return fmt.Errorf("stage %s is %s, not active: %w", t.Stage, node.Status, domain.ErrConflict)
	}

	stamp := t.At.UTC().Format(TimestampLayout)

	switch t.Status {
	case NodeActive:
		if err := r.applyOutcome(t.Outcome); err != nil {
			return err
		}
		node.Description = t.Description
		node.Timestamp = stamp
		if len(t.Details) > 0 {
			node.Details = t.Details
		}

	case NodeCompleted:
		if t.Stage == StageHumanReview && r.Status != StatusAwaitingReview {
			return fmt.Errorf("run %s is not awaiting review: %w", r.ID, domain.ErrConflict)
		}
		node.Status = NodeCompleted
		node.Description = t.Description
		node.Timestamp = stamp
		if len(t.Details) > 0 {
			node.Details = t.Details
		}
		if err := r.applyOutcome(t.Outcome); err != nil {
			return err
		}
		if idx == len(Stages)-1 {
			r.Status = StatusCompleted
			break
		}
		next := &r.Nodes[idx+1]
		next.Status = NodeActive
		next.Timestamp = stamp
		r.CurrentStage = next.Stage
		if next.Stage == StageHumanReview {
			r.Status = StatusAwaitingReview
		} else {
			r.Status = StatusRunning
		}
		r.UpdatedAt = t.At
		return nil

	case NodeError:
		node.Status = NodeError
		node.Description = t.Description
		node.Timestamp = stamp
		if len(t.Details) > 0 {
			node.Details = t.Details
		}
		if err := r.applyOutcome(t.Outcome); err != nil {
			return err
		}
		r.Status = StatusFailed

	default:
		return fmt.Errorf("invalid transition status %q: %w", t.Status, domain.ErrValidation)
	}

	r.CurrentStage = t.Stage
	r.UpdatedAt = t.At
	return nil
}

func (r *Run) applyOutcome(o *Outcome) error {
	if o == nil {
		return nil
	}
	if o.Diffs != nil {
		r.Diffs = o.Diffs
	}
	if o.Summary != "" {
		r.Summary = o.Summary
	}
	if o.Insights != nil {
		r.Insights = o.Insights
	}
	if o.ProposalSource != "" {
		r.ProposalSource = o.ProposalSource
	}
	for _, res := range o.Resolutions {
		d, err := r.Diff(res.DiffID)
		if err != nil {
			return err
		}
		if err := d.Resolve(res.Status, res.Result); err != nil {
			return err
		}
	}
	if o.Executed != nil {
		r.ExecutedChanges = o.Executed
	}
	if o.Failed != nil {
		r.FailedChanges = o.Failed
	}
	return nil
}
