// Package ticket defines work items held by the downstream issue tracker.
package ticket

import (
	"time"

	"github.com/Strob0t/NexusPM/internal/domain/proposal"
)

// Ticket is a tracker issue as seen by the pipeline.
type Ticket struct {
	Key         string   `json:"key"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	IssueType   string   `json:"issuetype,omitempty"`
	Labels      []string `json:"labels"`
	Assignee    string   `json:"assignee,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// CreateRequest holds the fields for a new tracker issue.
type CreateRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	IssueType   string `json:"issuetype"`
}

// Update holds partial edits. Nil fields are left unchanged.
// Status is applied as a workflow transition by connectors that support it.
type Update struct {
	Summary     *string `json:"summary,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// IsEmpty reports whether u carries no edits.
func (u Update) IsEmpty() bool {
	return u.Summary == nil && u.Description == nil && u.Priority == nil && u.Status == nil
}

// Snapshot captures t as an immutable pre-change record.
func (t *Ticket) Snapshot(at time.Time) proposal.Snapshot {
	labels := make([]string, len(t.Labels))
	copy(labels, t.Labels)
	return proposal.Snapshot{
		Key:         t.Key,
		Summary:     t.Summary,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Labels:      labels,
		Assignee:    t.Assignee,
		CapturedAt:  at,
	}
}
