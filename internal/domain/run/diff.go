package run

import (
	"fmt"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/proposal"
)

// DiffStatus is the review state of a diff.
type DiffStatus string

const (
	DiffPending   DiffStatus = "pending"
	DiffExecuting DiffStatus = "executing"
	DiffApproved  DiffStatus = "approved"
	DiffRejected  DiffStatus = "rejected"
)

// ChangeKind classifies a rendered diff line.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
)

// Action names what the executor did with an approved diff.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionMarkDone Action = "mark_done"
	ActionSkip     Action = "skip"
)

// DiffChange is one rendered add/modify entry.
type DiffChange struct {
	ID       string     `json:"id"`
	Type     ChangeKind `json:"type"`
	Field    string     `json:"field"`
	OldValue string     `json:"oldValue,omitempty"`
	NewValue string     `json:"newValue"`
}

// ExecutionResult is the connector outcome for an approved diff.
type ExecutionResult struct {
	Action  Action            `json:"action"`
	Key     string            `json:"key,omitempty"`
	Title   string            `json:"title"`
	Updates map[string]string `json:"updates,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
}

// Diff is the reviewable wrapper around one proposal.
type Diff struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Platform    string             `json:"platform"`
	Author      string             `json:"author"`
	Timestamp   string             `json:"timestamp"`
	Changes     []DiffChange       `json:"changes"`
	Status      DiffStatus         `json:"status"`
	Proposal    proposal.Proposal  `json:"proposal"`
	OldState    *proposal.Snapshot `json:"old_state,omitempty"`
	Result      *ExecutionResult   `json:"execution_result,omitempty"`
}

// NewDiff renders p as a pending diff.
func NewDiff(id string, p proposal.Proposal, now time.Time) Diff {
	changes := []DiffChange{}
	switch p.Type {
	case proposal.TypeUpdate:
		for i, c := range p.Changes {
			kind := ChangeAdded
			if c.Old != "" {
				kind = ChangeModified
			}
			changes = append(changes, DiffChange{
				ID:       fmt.Sprintf("c-%d", i+1),
				Type:     kind,
				Field:    c.Field,
				OldValue: c.Old,
				NewValue: c.New,
			})
		}
	case proposal.TypeCreate:
		changes = append(changes, DiffChange{
			ID:       "c-new",
			Type:     ChangeAdded,
			Field:    "New Ticket",
			NewValue: p.Title,
		})
	}

	title := p.Title
	if title == "" {
		title = "Untitled"
	}
	return Diff{
		ID:          id,
		Title:       title,
		Description: p.Description,
		Platform:    "jira",
		Author:      "Agent: Scribe",
		Timestamp:   now.UTC().Format("15:04"),
		Changes:     changes,
		Status:      DiffPending,
		Proposal:    p,
		OldState:    p.Snapshot,
	}
}

// Resolve records the review decision on a diff. A pending diff may be
// claimed as executing while its tracker change is in flight; an executing
// diff can only be settled as approved or rejected.
func (d *Diff) Resolve(status DiffStatus, result *ExecutionResult) error {
	open := d.Status == DiffPending || (d.Status == DiffExecuting && status != DiffExecuting)
	if !open {
		return fmt.Errorf("diff %s already %s: %w", d.ID, d.Status, domain.ErrConflict)
	}
	if status != DiffApproved && status != DiffRejected && status != DiffExecuting {
		return fmt.Errorf("invalid diff status %q: %w", status, domain.ErrValidation)
	}
	d.Status = status
	d.Result = result
	return nil
}
