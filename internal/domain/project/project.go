// Package project defines the Project domain entity.
package project

import "time"

// Status is the display lifecycle of a project.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// DefaultColor is assigned to projects created without a color.
const DefaultColor = "#00F0FF"

// Project is a workspace whose collaboration signals feed agent runs.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	Color        string    `json:"color"`
	AgentCount   int       `json:"agentCount"`
	MemberCount  int       `json:"memberCount"`
	SyncCount    int       `json:"syncCount"`
	Health       int       `json:"health"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateRequest holds the fields needed to create a new project.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color,omitempty"`
}

// UpdateRequest holds partial updates. Nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Color       *string `json:"color,omitempty"`
	AgentCount  *int    `json:"agentCount,omitempty"`
	MemberCount *int    `json:"memberCount,omitempty"`
	SyncCount   *int    `json:"syncCount,omitempty"`
	Health      *int    `json:"health,omitempty"`
}

// New builds a project with the catalog defaults applied.
func New(id string, req CreateRequest, now time.Time) Project {
	color := req.Color
	if color == "" {
		color = DefaultColor
	}
	return Project{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		Status:       StatusActive,
		Color:        color,
		MemberCount:  1,
		Health:       100,
		LastActivity: now,
		CreatedAt:    now,
	}
}

// Apply merges the non-nil fields of req into p.
func (p *Project) Apply(req UpdateRequest, now time.Time) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.Color != nil {
		p.Color = *req.Color
	}
	if req.AgentCount != nil {
		p.AgentCount = *req.AgentCount
	}
	if req.MemberCount != nil {
		p.MemberCount = *req.MemberCount
	}
	if req.SyncCount != nil {
		p.SyncCount = *req.SyncCount
	}
	if req.Health != nil {
		p.Health = *req.Health
	}
	p.LastActivity = now
}
