package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/connection"
	"github.com/Strob0t/NexusPM/internal/port/database"
	"github.com/Strob0t/NexusPM/internal/port/source"
)

// CheckerFactory builds a credential checker for a connection kind and
// plaintext token. It returns nil for kinds without a remote check.
type CheckerFactory func(kind, token string) source.Checker

// ConnectionDefault is a placeholder connection created for every project.
type ConnectionDefault struct {
	Name    string
	Icon    string
	Color   string
	Token   string
	Account string
}

// DefaultConnections returns the Figma, Slack and Jira placeholders. The
// tokens are the process-wide integration credentials and may be empty.
func DefaultConnections(figmaToken, slackToken, jiraToken, jiraEmail string) []ConnectionDefault {
	account := func(token, name string) string {
		if token == "" {
			return ""
		}
		return name
	}
	return []ConnectionDefault{
		{Name: "Figma", Icon: "figma", Color: "#00F0FF", Token: figmaToken, Account: account(figmaToken, "design@company.com")},
		{Name: "Slack", Icon: "slack", Color: "#B829F7", Token: slackToken, Account: account(slackToken, "Nexus Bot")},
		{Name: "Jira", Icon: "jira", Color: "#2B6FFF", Token: jiraToken, Account: account(jiraToken, jiraEmail)},
	}
}

// ConnectionService manages the per-project connection vault.
type ConnectionService struct {
	store    database.Store
	key      *[32]byte
	defaults []ConnectionDefault
	checkers CheckerFactory
	clock    clock
}

// NewConnectionService creates a ConnectionService that seals tokens with key.
func NewConnectionService(store database.Store, key *[32]byte, defaults []ConnectionDefault, checkers CheckerFactory) *ConnectionService {
	return &ConnectionService{store: store, key: key, defaults: defaults, checkers: checkers}
}

// List returns the connections of a project.
func (s *ConnectionService) List(ctx context.Context, projectID string) ([]connection.Connection, error) {
	return s.store.ListConnections(ctx, projectID)
}

// Get returns a single connection.
func (s *ConnectionService) Get(ctx context.Context, projectID, id string) (*connection.Connection, error) {
	return s.store.GetConnection(ctx, projectID, id)
}

// Create stores a new connection with its token sealed.
func (s *ConnectionService) Create(ctx context.Context, req connection.CreateRequest) (*connection.Connection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Icon == "" {
		req.Icon = "key"
	}
	if req.Color == "" {
		req.Color = "#00F0FF"
	}
	now := s.clock.now()
	c := &connection.Connection{
		ID:        newID(),
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Icon:      req.Icon,
		Color:     req.Color,
		Webhook:   req.Webhook,
		Account:   req.Account,
		Status:    connection.StatusDisconnected,
		LastSync:  "never",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.setToken(c, req.Token); err != nil {
		return nil, err
	}
	if err := s.store.SaveConnection(ctx, c); err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	return c, nil
}

// Update applies partial updates. A new token is sealed and replaces the old one.
func (s *ConnectionService) Update(ctx context.Context, projectID, id string, req connection.UpdateRequest) (*connection.Connection, error) {
	c, err := s.store.GetConnection(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("name must not be empty: %w", domain.ErrValidation)
		}
		c.Name = *req.Name
	}
	if req.Webhook != nil {
		c.Webhook = *req.Webhook
	}
	if req.Account != nil {
		c.Account = *req.Account
	}
	if req.Icon != nil {
		c.Icon = *req.Icon
	}
	if req.Color != nil {
		c.Color = *req.Color
	}
	if req.Token != nil {
		if err := s.setToken(c, *req.Token); err != nil {
			return nil, err
		}
	}
	c.UpdatedAt = s.clock.now()
	if err := s.store.SaveConnection(ctx, c); err != nil {
		return nil, fmt.Errorf("update connection %s: %w", id, err)
	}
	return c, nil
}

// Delete removes a connection.
func (s *ConnectionService) Delete(ctx context.Context, projectID, id string) error {
	return s.store.DeleteConnection(ctx, projectID, id)
}

// Test probes the remote service with the stored token and records the
// resulting status.
func (s *ConnectionService) Test(ctx context.Context, projectID, id string) (*connection.TestResult, error) {
	c, err := s.store.GetConnection(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	token, err := s.token(c)
	if err != nil {
		return nil, err
	}

	res := &connection.TestResult{Status: connection.StatusConnected, Message: "Token stored successfully"}
	var checker source.Checker
	if s.checkers != nil {
		checker = s.checkers(c.Kind(), token)
	}
	if checker != nil {
		who, err := checker.Check(ctx)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			res = &connection.TestResult{Status: connection.StatusError, Message: "Connection timed out"}
		case err != nil:
			res = &connection.TestResult{Status: connection.StatusError, Message: truncate(err.Error(), 100)}
		default:
			res.Message = "Connected as " + who
		}
	}

	c.Status = res.Status
	if res.Status == connection.StatusConnected {
		c.LastSync = "just now"
	}
	c.UpdatedAt = s.clock.now()
	if err := s.store.SaveConnection(ctx, c); err != nil {
		return nil, fmt.Errorf("save connection status: %w", err)
	}
	slog.Info("connection tested", "project_id", projectID, "connection_id", id, "status", res.Status)
	return res, nil
}

// SeedProject adds any default connection whose icon the project lacks.
func (s *ConnectionService) SeedProject(ctx context.Context, projectID string) error {
	existing, err := s.store.ListConnections(ctx, projectID)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c.Icon)] = true
	}

	for _, d := range s.defaults {
		if have[d.Icon] {
			continue
		}
		c, err := s.Create(ctx, connection.CreateRequest{
			ProjectID: projectID,
			Name:      d.Name,
			Token:     d.Token,
			Account:   d.Account,
			Icon:      d.Icon,
			Color:     d.Color,
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", d.Name, err)
		}
		if d.Token != "" {
			c.Status = connection.StatusConnected
			c.LastSync = "just now"
			if err := s.store.SaveConnection(ctx, c); err != nil {
				return fmt.Errorf("seed %s: %w", d.Name, err)
			}
		}
	}
	return nil
}

func (s *ConnectionService) setToken(c *connection.Connection, token string) error {
	c.TokenPreview = connection.Preview(token)
	if token == "" {
		c.EncryptedToken = nil
		return nil
	}
	sealed, err := connection.Seal([]byte(token), s.key)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	c.EncryptedToken = sealed
	return nil
}

func (s *ConnectionService) token(c *connection.Connection) (string, error) {
	if len(c.EncryptedToken) == 0 {
		return "", nil
	}
	plain, err := connection.Open(c.EncryptedToken, s.key)
	if err != nil {
		return "", fmt.Errorf("connection %s: %w", c.ID, err)
	}
	return string(plain), nil
}
