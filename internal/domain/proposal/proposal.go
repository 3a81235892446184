// Package proposal defines ticket change proposals produced by context fusion.
package proposal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain"
)

// Type tags the variant of a Proposal.
type Type string

const (
	TypeCreate Type = "create"
	TypeUpdate Type = "update"
)

// Priority is the tracker priority suggested for a proposal.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Change is a single field edit on an existing ticket.
type Change struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Snapshot is the state of a ticket captured before any change was drafted.
type Snapshot struct {
	Key         string    `json:"key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Labels      []string  `json:"labels"`
	Assignee    string    `json:"assignee,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Proposal is a suggested ticket create or update. It is a tagged variant:
// Type selects which of the optional fields are meaningful, and Validate
// enforces that ExistingTicket and Changes only appear on updates.
type Proposal struct {
	Type            Type      `json:"type"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Priority        Priority  `json:"priority"`
	RelatedMessages []string  `json:"relatedSlackMessages"`
	RelatedPages    []string  `json:"relatedFigmaPages"`
	ExistingTicket  string    `json:"existingTicket,omitempty"`
	Changes         []Change  `json:"changes,omitempty"`
	Sprint          string    `json:"sprint,omitempty"`
	Snapshot        *Snapshot `json:"old_state,omitempty"`
}

// NewCreate returns a create proposal.
func NewCreate(title, description string, priority Priority) Proposal {
	return Proposal{
		Type:            TypeCreate,
		Title:           title,
		Description:     description,
		Priority:        priority,
		RelatedMessages: []string{},
		RelatedPages:    []string{},
	}
}

// NewUpdate returns an update proposal against an existing ticket.
func NewUpdate(ticket, title, description string, priority Priority, changes []Change) Proposal {
	return Proposal{
		Type:            TypeUpdate,
		Title:           title,
		Description:     description,
		Priority:        priority,
		RelatedMessages: []string{},
		RelatedPages:    []string{},
		ExistingTicket:  ticket,
		Changes:         changes,
	}
}

// IsUpdate reports whether p targets an existing ticket.
func (p *Proposal) IsUpdate() bool {
	return p.Type == TypeUpdate
}

// Validate checks the variant invariants.
func (p *Proposal) Validate() error {
	switch p.Type {
	case TypeCreate:
		if p.ExistingTicket != "" {
			return fmt.Errorf("create proposal %q must not reference a ticket: %w", p.Title, domain.ErrValidation)
		}
		if len(p.Changes) > 0 {
			return fmt.Errorf("create proposal %q must not carry field changes: %w", p.Title, domain.ErrValidation)
		}
	case TypeUpdate:
		if p.ExistingTicket == "" {
			return fmt.Errorf("update proposal %q requires existingTicket: %w", p.Title, domain.ErrValidation)
		}
		for _, c := range p.Changes {
			if c.Field == "" {
				return fmt.Errorf("update proposal %q has a change without field: %w", p.Title, domain.ErrValidation)
			}
		}
	default:
		return fmt.Errorf("unknown proposal type %q: %w", p.Type, domain.ErrValidation)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("proposal title is required: %w", domain.ErrValidation)
	}
	switch p.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("unknown priority %q: %w", p.Priority, domain.ErrValidation)
	}
	return nil
}

// Normalize fills defaults on loosely formed proposals before validation.
// Priorities are matched case-insensitively and default to Medium.
func (p *Proposal) Normalize() {
	p.Type = Type(strings.ToLower(strings.TrimSpace(string(p.Type))))
	p.Title = strings.TrimSpace(p.Title)
	p.ExistingTicket = strings.TrimSpace(p.ExistingTicket)
	switch strings.ToLower(string(p.Priority)) {
	case "high", "highest", "critical":
		p.Priority = PriorityHigh
	case "low", "lowest":
		p.Priority = PriorityLow
	default:
		p.Priority = PriorityMedium
	}
	if p.RelatedMessages == nil {
		p.RelatedMessages = []string{}
	}
	if p.RelatedPages == nil {
		p.RelatedPages = []string{}
	}
}
