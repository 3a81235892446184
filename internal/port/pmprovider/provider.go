// Package pmprovider defines the port interface for the issue tracker that
// approved proposals are applied to (Jira and compatible trackers).
package pmprovider

import (
	"context"
	"errors"

	"github.com/Strob0t/NexusPM/internal/domain/ticket"
)

// ErrNotSupported is returned when a provider does not support the requested operation.
var ErrNotSupported = errors.New("operation not supported by this provider")

// Capabilities declares what a tracker supports.
type Capabilities struct {
	ListItems   bool `json:"list_items"`
	GetItem     bool `json:"get_item"`
	CreateItem  bool `json:"create_item"`
	UpdateItem  bool `json:"update_item"`
	Transitions bool `json:"transitions"`
}

// Provider is the port interface for issue trackers.
type Provider interface {
	// Name returns the provider identifier (e.g. "jira").
	Name() string

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// Configured reports whether credentials are present. Unconfigured
	// providers serve demo data and accept writes without side effects.
	Configured() bool

	// ListItems returns the tickets of a tracker project.
	ListItems(ctx context.Context, projectKey string) ([]ticket.Ticket, error)

	// GetItem returns a single ticket by key.
	GetItem(ctx context.Context, key string) (*ticket.Ticket, error)

	// CreateItem creates a ticket in the tracker project.
	CreateItem(ctx context.Context, projectKey string, req ticket.CreateRequest) (*ticket.Ticket, error)

	// UpdateItem applies partial edits to an existing ticket.
	UpdateItem(ctx context.Context, key string, upd ticket.Update) error
}
