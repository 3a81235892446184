// Package jira implements a pmprovider.Provider for Jira Cloud using the REST v3 API.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
	"github.com/Strob0t/NexusPM/internal/port/pmprovider"
	"github.com/Strob0t/NexusPM/internal/resilience"
)

const (
	providerName = "jira"
	maxResults   = 50
	issueFields  = "summary,description,status,priority,labels,assignee,issuetype"
)

// Config holds the Jira connection settings. Domain may be a bare host
// ("acme.atlassian.net") or a full base URL.
type Config struct {
	Domain   string
	Email    string
	APIToken string
}

// Provider implements pmprovider.Provider for Jira issues.
type Provider struct {
	baseURL    string
	email      string
	token      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewProvider creates a Jira provider. A nil breaker gets the default
// five failures / 30s breaker.
func NewProvider(cfg Config, breaker *resilience.Breaker) *Provider {
	if breaker == nil {
		breaker = resilience.NewBreaker(providerName, 5, 30*time.Second)
	}
	base := strings.TrimSuffix(cfg.Domain, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Provider{
		baseURL:    base,
		email:      cfg.Email,
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker:    breaker,
	}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Capabilities() pmprovider.Capabilities {
	return pmprovider.Capabilities{
		ListItems:   true,
		GetItem:     true,
		CreateItem:  true,
		UpdateItem:  true,
		Transitions: true,
	}
}

// Configured reports whether domain and credentials are all set.
func (p *Provider) Configured() bool {
	return p.baseURL != "" && p.email != "" && p.token != ""
}

// jiraIssue mirrors the issue JSON returned by the REST v3 API.
type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		IssueType *struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Labels   []string `json:"labels"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
	} `json:"fields"`
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

type searchResponse struct {
	Issues []jiraIssue `json:"issues"`
}

// ListItems runs a JQL search for every issue of projectKey.
func (p *Provider) ListItems(ctx context.Context, projectKey string) ([]ticket.Ticket, error) {
	if !p.Configured() {
		return demoIssues(), nil
	}
	if projectKey == "" {
		return nil, fmt.Errorf("jira list issues: project key: %w", domain.ErrValidation)
	}

	payload, _ := json.Marshal(searchRequest{
		JQL:        fmt.Sprintf("project=%q ORDER BY key DESC", projectKey),
		MaxResults: maxResults,
		Fields:     strings.Split(issueFields, ","),
	})
	body, err := p.doRequest(ctx, http.MethodPost, p.baseURL+"/rest/api/3/search/jql", payload)
	if err != nil {
		return nil, fmt.Errorf("jira list issues: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("jira parse response: %w", err)
	}

	items := make([]ticket.Ticket, 0, len(resp.Issues))
	for i := range resp.Issues {
		items = append(items, p.issueToTicket(&resp.Issues[i]))
	}
	return items, nil
}

// GetItem fetches a single issue by key.
func (p *Provider) GetItem(ctx context.Context, key string) (*ticket.Ticket, error) {
	if !p.Configured() {
		for _, t := range demoIssues() {
			if t.Key == key {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("jira issue %s: %w", key, domain.ErrNotFound)
	}

	url := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=%s", p.baseURL, key, issueFields)
	body, err := p.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("jira get issue %s: %w", key, err)
	}

	var issue jiraIssue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("jira parse response: %w", err)
	}
	t := p.issueToTicket(&issue)
	return &t, nil
}

// CreateItem creates an issue in projectKey. Unconfigured providers return
// a placeholder "<KEY>-NEW" ticket.
func (p *Provider) CreateItem(ctx context.Context, projectKey string, req ticket.CreateRequest) (*ticket.Ticket, error) {
	if req.Summary == "" {
		return nil, fmt.Errorf("jira create issue: summary: %w", domain.ErrValidation)
	}
	if req.IssueType == "" {
		req.IssueType = "Task"
	}
	if req.Priority == "" {
		req.Priority = "Medium"
	}
	created := &ticket.Ticket{
		Key:         projectKey + "-NEW",
		Summary:     req.Summary,
		Description: req.Description,
		Status:      "To Do",
		Priority:    req.Priority,
		IssueType:   req.IssueType,
		Labels:      []string{},
	}
	if !p.Configured() {
		return created, nil
	}

	payload, _ := json.Marshal(map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": projectKey},
			"summary":     req.Summary,
			"description": toADF(req.Description),
			"issuetype":   map[string]string{"name": req.IssueType},
			"priority":    map[string]string{"name": req.Priority},
		},
	})
	body, err := p.doRequest(ctx, http.MethodPost, p.baseURL+"/rest/api/3/issue", payload)
	if err != nil {
		return nil, fmt.Errorf("jira create issue: %w", err)
	}

	var ref struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &ref); err != nil {
		return nil, fmt.Errorf("jira parse response: %w", err)
	}
	created.Key = ref.Key
	created.URL = p.browseURL(ref.Key)
	return created, nil
}

// UpdateItem edits the issue fields, then moves it to upd.Status through
// the first workflow transition whose name contains the status.
func (p *Provider) UpdateItem(ctx context.Context, key string, upd ticket.Update) error {
	if upd.IsEmpty() {
		return nil
	}
	if !p.Configured() {
		return nil
	}

	fields := map[string]any{}
	if upd.Summary != nil {
		fields["summary"] = *upd.Summary
	}
	if upd.Description != nil {
		fields["description"] = toADF(*upd.Description)
	}
	if upd.Priority != nil {
		fields["priority"] = map[string]string{"name": *upd.Priority}
	}

	if len(fields) > 0 {
		payload, _ := json.Marshal(map[string]any{"fields": fields})
		url := fmt.Sprintf("%s/rest/api/3/issue/%s", p.baseURL, key)
		if _, err := p.doRequest(ctx, http.MethodPut, url, payload); err != nil {
			return fmt.Errorf("jira update issue %s: %w", key, err)
		}
	}

	if upd.Status != nil {
		if err := p.transition(ctx, key, *upd.Status); err != nil {
			return err
		}
	}
	return nil
}

// Check calls /myself and returns the account display name.
func (p *Provider) Check(ctx context.Context) (string, error) {
	if !p.Configured() {
		return "", fmt.Errorf("jira: credentials not configured")
	}
	body, err := p.doRequest(ctx, http.MethodGet, p.baseURL+"/rest/api/3/myself", nil)
	if err != nil {
		return "", fmt.Errorf("jira check: %w", err)
	}
	var me struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return "", fmt.Errorf("jira parse response: %w", err)
	}
	if me.DisplayName == "" {
		return me.EmailAddress, nil
	}
	return me.DisplayName, nil
}

func (p *Provider) transition(ctx context.Context, key, status string) error {
	url := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", p.baseURL, key)
	body, err := p.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("jira list transitions %s: %w", key, err)
	}

	var resp struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("jira parse response: %w", err)
	}

	target := strings.ToLower(status)
	for _, t := range resp.Transitions {
		if !strings.Contains(strings.ToLower(t.Name), target) {
			continue
		}
		payload, _ := json.Marshal(map[string]any{"transition": map[string]string{"id": t.ID}})
		if _, err := p.doRequest(ctx, http.MethodPost, url, payload); err != nil {
			return fmt.Errorf("jira transition %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("jira transition %s: no transition to %q: %w", key, status, domain.ErrValidation)
}

func (p *Provider) doRequest(ctx context.Context, method, reqURL string, payload []byte) ([]byte, error) {
	var out []byte
	call := func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.SetBasicAuth(p.email, p.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.httpClient.Do(req) //nolint:gosec // G704: URL is constructed from the configured Jira domain
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return resilience.Permanent(fmt.Errorf("jira API 404: %w", domain.ErrNotFound))
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("jira API %d: %s", resp.StatusCode, truncate(respBody, 200))
		case resp.StatusCode >= 400:
			return resilience.Permanent(fmt.Errorf("jira API %d: %s", resp.StatusCode, truncate(respBody, 200)))
		}
		out = respBody
		return nil
	}

	if err := p.breaker.Execute(call); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) issueToTicket(issue *jiraIssue) ticket.Ticket {
	t := ticket.Ticket{
		Key:         issue.Key,
		Summary:     issue.Fields.Summary,
		Description: fromADF(issue.Fields.Description),
		Status:      issue.Fields.Status.Name,
		Labels:      issue.Fields.Labels,
		Assignee:    "Unassigned",
		URL:         p.browseURL(issue.Key),
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}
	if issue.Fields.Priority != nil {
		t.Priority = issue.Fields.Priority.Name
	}
	if issue.Fields.IssueType != nil {
		t.IssueType = issue.Fields.IssueType.Name
	}
	if issue.Fields.Assignee != nil && issue.Fields.Assignee.DisplayName != "" {
		t.Assignee = issue.Fields.Assignee.DisplayName
	}
	return t
}

func (p *Provider) browseURL(key string) string {
	if p.baseURL == "" || key == "" {
		return ""
	}
	return p.baseURL + "/browse/" + key
}

func truncate(b []byte, n int) string {
	r := []rune(string(b))
	if len(r) > n {
		return string(r[:n])
	}
	return string(r)
}
