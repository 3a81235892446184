// Package run defines the agent Run: one execution of the fixed
// ingest → reason → draft → human_review → execute pipeline.
package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageIngest      Stage = "ingest"
	StageReason      Stage = "reason"
	StageDraft       Stage = "draft"
	StageHumanReview Stage = "human_review"
	StageExecute     Stage = "execute"
)

// Stages is the fixed visiting order of every run.
var Stages = []Stage{StageIngest, StageReason, StageDraft, StageHumanReview, StageExecute}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Status is the overall state of a run.
type Status string

const (
	StatusRunning        Status = "running"
	StatusAwaitingReview Status = "awaiting_review"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// NodeStatus is the state of a single stage node.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeActive    NodeStatus = "active"
	NodeCompleted NodeStatus = "completed"
	NodeError     NodeStatus = "error"
)

// TimestampLayout formats stage node timestamps.
const TimestampLayout = "15:04:05"

// Node is the per-stage status record shown in the run graph.
type Node struct {
	ID          string     `json:"id"`
	Stage       Stage      `json:"stage"`
	Title       string     `json:"title"`
	Agent       string     `json:"agent"`
	Status      NodeStatus `json:"status"`
	Description string     `json:"description"`
	Timestamp   string     `json:"timestamp"`
	Details     []string   `json:"details,omitempty"`
}

// ExecutedChange records a ticket mutation applied after approval.
type ExecutedChange struct {
	DiffID string `json:"diff_id"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Key    string `json:"key"`
	Status string `json:"status"`
}

// FailedChange records a diff the ticketing connector rejected.
type FailedChange struct {
	DiffID string `json:"diff_id"`
	Title  string `json:"title"`
	Error  string `json:"error"`
}

// Run is one pipeline execution for a project.
type Run struct {
	ID              string           `json:"id"`
	ProjectID       string           `json:"project_id"`
	Name            string           `json:"name"`
	Sources         []signal.Source  `json:"sources"`
	Status          Status           `json:"status"`
	CurrentStage    Stage            `json:"currentStage"`
	Nodes           []Node           `json:"nodes"`
	Diffs           []Diff           `json:"diffs"`
	Summary         string           `json:"summary,omitempty"`
	Insights        []string         `json:"insights,omitempty"`
	ProposalSource  string           `json:"proposal_source,omitempty"`
	ExecutedChanges []ExecutedChange `json:"executed_changes"`
	FailedChanges   []FailedChange   `json:"failed_changes"`
	Version         int              `json:"version"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// nodeTemplate describes the static part of each stage node.
var nodeTemplate = []struct {
	title string
	agent string
}{
	{"Ingest", "Curator"},
	{"Reason", "Synthesizer"},
	{"Draft", "Scribe"},
	{"Human Review", "Operator"},
	{"Execute", "Operator"},
}

// New creates a running Run with the ingest node active.
func New(id, projectID, description string, sources []signal.Source, now time.Time) *Run {
	if len(sources) == 0 {
		sources = append([]signal.Source(nil), signal.DefaultSources...)
	}
	if description == "" {
		description = "Manual trigger"
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}

	nodes := make([]Node, len(Stages))
	for i, st := range Stages {
		nodes[i] = Node{
			ID:          fmt.Sprintf("n%d", i+1),
			Stage:       st,
			Title:       nodeTemplate[i].title,
			Agent:       nodeTemplate[i].agent,
			Status:      NodePending,
			Description: "Waiting...",
			Timestamp:   "-",
		}
	}
	nodes[0].Status = NodeActive
	nodes[0].Description = fmt.Sprintf("Collecting data from %s...", strings.Join(names, ", "))
	nodes[0].Timestamp = now.UTC().Format(TimestampLayout)

	return &Run{
		ID:              id,
		ProjectID:       projectID,
		Name:            "Sync: " + description,
		Sources:         sources,
		Status:          StatusRunning,
		CurrentStage:    StageIngest,
		Nodes:           nodes,
		Diffs:           []Diff{},
		ExecutedChanges: []ExecutedChange{},
		FailedChanges:   []FailedChange{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Node returns the node for stage s.
func (r *Run) Node(s Stage) *Node {
	for i := range r.Nodes {
		if r.Nodes[i].Stage == s {
			return &r.Nodes[i]
		}
	}
	return nil
}

// ActiveNodes returns the stages whose node is currently active.
func (r *Run) ActiveNodes() []Stage {
	var out []Stage
	for _, n := range r.Nodes {
		if n.Status == NodeActive {
			out = append(out, n.Stage)
		}
	}
	return out
}

// Diff returns the diff with the given id.
func (r *Run) Diff(id string) (*Diff, error) {
	for i := range r.Diffs {
		if r.Diffs[i].ID == id {
			return &r.Diffs[i], nil
		}
	}
	return nil, fmt.Errorf("diff %s in run %s: %w", id, r.ID, domain.ErrNotFound)
}

// Terminal reports whether the run can no longer change status.
func (r *Run) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// TriggerRequest starts a Run. Empty Sources selects DefaultSources.
type TriggerRequest struct {
	Description string          `json:"description"`
	Sources     []signal.Source `json:"sources"`
}

// Validate rejects unknown sources.
func (req TriggerRequest) Validate() error {
	for _, s := range req.Sources {
		if !s.Valid() {
			return fmt.Errorf("unknown source %q: %w", s, domain.ErrValidation)
		}
	}
	return nil
}
