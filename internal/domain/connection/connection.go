// Package connection defines the per-project integration credentials kept
// in the connection vault.
package connection

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain"
)

// Status is the last known reachability of a connection.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

const maskedTail = "••••••••"

// Connection is a stored integration credential. The token is kept
// encrypted and only ever exposed as a preview.
type Connection struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Name           string    `json:"name"`
	Icon           string    `json:"icon"`
	Color          string    `json:"color"`
	Webhook        string    `json:"webhook,omitempty"`
	Account        string    `json:"account,omitempty"`
	Status         Status    `json:"status"`
	LastSync       string    `json:"lastSync"`
	TokenPreview   string    `json:"tokenPreview"`
	EncryptedToken []byte    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Kind identifies the integration ("slack", "figma", "jira") from the icon,
// falling back to the name.
func (c *Connection) Kind() string {
	for _, s := range []string{c.Icon, c.Name} {
		s = strings.ToLower(s)
		for _, k := range []string{"slack", "figma", "jira"} {
			if strings.Contains(s, k) {
				return k
			}
		}
	}
	return strings.ToLower(c.Icon)
}

// CreateRequest holds the fields to create a connection.
type CreateRequest struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Token     string `json:"token"` // plaintext, encrypted before storage
	Webhook   string `json:"webhook,omitempty"`
	Account   string `json:"account,omitempty"`
	Icon      string `json:"icon"`
	Color     string `json:"color"`
}

// UpdateRequest holds partial updates. Nil fields are left unchanged.
type UpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Token   *string `json:"token,omitempty"`
	Webhook *string `json:"webhook,omitempty"`
	Account *string `json:"account,omitempty"`
	Icon    *string `json:"icon,omitempty"`
	Color   *string `json:"color,omitempty"`
}

// TestResult is the outcome of probing a connection's credentials.
type TestResult struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Validate checks a creation request.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.ProjectID) == "" {
		return fmt.Errorf("project_id is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if len(r.Name) > 255 {
		return fmt.Errorf("name exceeds 255 characters: %w", domain.ErrValidation)
	}
	return nil
}

// Preview masks token for display: the first four characters and a fixed
// tail, or only the tail for short tokens.
func Preview(token string) string {
	if len(token) > 4 {
		return token[:4] + maskedTail
	}
	return maskedTail
}

// StatusFor returns connected for a non-empty token.
func StatusFor(token string) Status {
	if token == "" {
		return StatusDisconnected
	}
	return StatusConnected
}
