// Package figma reads design file metadata and review comments from the
// Figma REST API.
package figma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/resilience"
)

const (
	providerName   = "figma"
	defaultBaseURL = "https://api.figma.com/v1"
)

// Config holds the personal access token and default file.
type Config struct {
	AccessToken string
	FileKey     string
	BaseURL     string
}

// Client implements source.DesignSource for Figma files.
type Client struct {
	baseURL    string
	token      string
	fileKey    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a Figma client. A nil breaker gets the default
// five failures / 30s breaker.
func NewClient(cfg Config, breaker *resilience.Breaker) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(providerName, 5, 30*time.Second)
	}
	return &Client{
		baseURL:    base,
		token:      cfg.AccessToken,
		fileKey:    cfg.FileKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker:    breaker,
	}
}

// Configured reports whether an access token is set.
func (c *Client) Configured() bool { return c.token != "" }

// FileKey returns the default design file.
func (c *Client) FileKey() string { return c.fileKey }

// FetchFile returns the file name, modification time and top-level pages.
// Comments are left empty; see FetchComments.
func (c *Client) FetchFile(ctx context.Context, fileKey string) (*signal.DesignFile, error) {
	if !c.Configured() {
		f := demoFile()
		return &f, nil
	}
	if fileKey == "" {
		fileKey = c.fileKey
	}

	var resp struct {
		Name         string `json:"name"`
		LastModified string `json:"lastModified"`
		Document     struct {
			Children []signal.Page `json:"children"`
		} `json:"document"`
	}
	// depth=1 stops the document tree at the pages.
	if err := c.get(ctx, "/files/"+fileKey+"?depth=1", &resp); err != nil {
		return nil, fmt.Errorf("figma fetch file %s: %w", fileKey, err)
	}

	pages := resp.Document.Children
	if pages == nil {
		pages = []signal.Page{}
	}
	return &signal.DesignFile{
		Key:          fileKey,
		Name:         resp.Name,
		LastModified: resp.LastModified,
		Pages:        pages,
		Comments:     []signal.Comment{},
	}, nil
}

// FetchComments returns the review comments on a file, newest first.
func (c *Client) FetchComments(ctx context.Context, fileKey string) ([]signal.Comment, error) {
	if !c.Configured() {
		return demoComments(), nil
	}
	if fileKey == "" {
		fileKey = c.fileKey
	}

	var resp struct {
		Comments []struct {
			ID        string `json:"id"`
			Message   string `json:"message"`
			CreatedAt string `json:"created_at"`
			User      struct {
				Handle string `json:"handle"`
			} `json:"user"`
		} `json:"comments"`
	}
	if err := c.get(ctx, "/files/"+fileKey+"/comments", &resp); err != nil {
		return nil, fmt.Errorf("figma fetch comments %s: %w", fileKey, err)
	}

	out := make([]signal.Comment, 0, len(resp.Comments))
	for _, cm := range resp.Comments {
		user := cm.User.Handle
		if user == "" {
			user = "unknown"
		}
		out = append(out, signal.Comment{ID: cm.ID, User: user, Message: cm.Message, CreatedAt: cm.CreatedAt})
	}
	return out, nil
}

// Check calls /me and returns the account email.
func (c *Client) Check(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", errors.New("figma: access token not configured")
	}
	var resp struct {
		Email  string `json:"email"`
		Handle string `json:"handle"`
	}
	if err := c.get(ctx, "/me", &resp); err != nil {
		return "", err
	}
	if resp.Email == "" {
		return resp.Handle, nil
	}
	return resp.Email, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("X-FIGMA-TOKEN", c.token)

		resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL is built from the configured API base
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return resilience.Permanent(fmt.Errorf("figma API 404: %w", domain.ErrNotFound))
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("figma API %d: %s", resp.StatusCode, string(body))
		case resp.StatusCode >= 400:
			return resilience.Permanent(fmt.Errorf("figma API %d: %s", resp.StatusCode, string(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("figma parse response: %w", err)
		}
		return nil
	})
}

func demoFile() signal.DesignFile {
	return signal.DesignFile{
		Key:          "demo",
		Name:         "Mobile App v2 Design",
		LastModified: "2024-01-15T10:30:00Z",
		Pages: []signal.Page{
			{ID: "page-1", Name: "Login Flow"},
			{ID: "page-2", Name: "Checkout"},
			{ID: "page-3", Name: "Navigation"},
		},
		Comments: []signal.Comment{},
	}
}

func demoComments() []signal.Comment {
	return []signal.Comment{
		{ID: "c1", User: "sarah", Message: "The login button needs to be more prominent", CreatedAt: "2024-01-15T10:00:00Z"},
		{ID: "c2", User: "jordan", Message: "Updated the checkout flow per last review", CreatedAt: "2024-01-15T09:30:00Z"},
		{ID: "c3", User: "mike", Message: "Nav icons need spacing adjustment", CreatedAt: "2024-01-15T08:00:00Z"},
	}
}
