package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	nxmcp "github.com/Strob0t/NexusPM/internal/adapter/mcp"
	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/project"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/service"
)

// --- Mocks ---

type mockProjects struct {
	projects []project.Project
	err      error
}

func (m *mockProjects) List(_ context.Context) ([]project.Project, error) {
	return m.projects, m.err
}

func (m *mockProjects) Get(_ context.Context, id string) (*project.Project, error) {
	for i := range m.projects {
		if m.projects[i].ID == id {
			return &m.projects[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

type mockRuns struct {
	runs map[string]*run.Run
	logs []run.TelemetryEntry
}

func (m *mockRuns) GetRun(_ context.Context, _, id string) (*run.Run, error) {
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockRuns) ListRuns(_ context.Context, projectID string) ([]run.Run, error) {
	var out []run.Run
	for _, r := range m.runs {
		if r.ProjectID == projectID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRuns) ListTelemetry(context.Context, string, string) ([]run.TelemetryEntry, error) {
	return m.logs, nil
}

type mockTrigger struct {
	got   run.TriggerRequest
	calls int
}

func (m *mockTrigger) Trigger(_ context.Context, projectID string, req run.TriggerRequest) (*run.Run, error) {
	m.calls++
	m.got = req
	return &run.Run{ID: "r-new", ProjectID: projectID, Status: run.StatusRunning}, nil
}

type mockReviewer struct {
	action service.Action
	err    error
}

func (m *mockReviewer) RunAction(_ context.Context, projectID, runID string, action service.Action) (*run.Run, error) {
	m.action = action
	if m.err != nil {
		return nil, m.err
	}
	return &run.Run{ID: runID, ProjectID: projectID, Status: run.StatusCompleted}, nil
}

// --- Helpers ---

func newServer(deps nxmcp.ServerDeps) *nxmcp.Server {
	return nxmcp.NewServer(nxmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)
}

func call(t *testing.T, s *nxmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("%s tool not found", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return text.Text
}

// --- Tests ---

func TestServerStartStop(t *testing.T) {
	s := nxmcp.NewServer(nxmcp.ServerConfig{Addr: "127.0.0.1:0", Name: "test", Version: "0.1.0"}, nxmcp.ServerDeps{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	if err := newServer(nxmcp.ServerDeps{}).Stop(context.Background()); err != nil {
		t.Fatalf("expected no-op stop, got %v", err)
	}
}

func TestToolRegistration(t *testing.T) {
	tools := newServer(nxmcp.ServerDeps{}).MCPServer().ListTools()

	expected := map[string]bool{
		"list_projects": false,
		"list_runs":     false,
		"get_run":       false,
		"get_run_logs":  false,
		"trigger_run":   false,
		"review_run":    false,
	}
	for name := range tools {
		if _, ok := expected[name]; ok {
			expected[name] = true
		} else {
			t.Errorf("unexpected tool: %s", name)
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleListProjects(t *testing.T) {
	s := newServer(nxmcp.ServerDeps{Projects: &mockProjects{projects: []project.Project{
		{ID: "p1", Name: "Alpha"},
		{ID: "p2", Name: "Beta"},
	}}})

	var projects []project.Project
	if err := json.Unmarshal([]byte(resultText(t, call(t, s, "list_projects", nil))), &projects); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
}

func TestHandleListProjectsError(t *testing.T) {
	s := newServer(nxmcp.ServerDeps{Projects: &mockProjects{err: errors.New("store down")}})
	if !call(t, s, "list_projects", nil).IsError {
		t.Fatal("expected error result")
	}
}

func TestHandleGetRun(t *testing.T) {
	s := newServer(nxmcp.ServerDeps{Runs: &mockRuns{runs: map[string]*run.Run{
		"run-abc": {ID: "run-abc", ProjectID: "p1", Status: run.StatusAwaitingReview},
	}}})

	var r run.Run
	text := resultText(t, call(t, s, "get_run", map[string]any{"project_id": "p1", "run_id": "run-abc"}))
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if r.Status != run.StatusAwaitingReview {
		t.Fatalf("expected status %q, got %q", run.StatusAwaitingReview, r.Status)
	}

	if !call(t, s, "get_run", map[string]any{"project_id": "p1", "run_id": "missing"}).IsError {
		t.Fatal("expected error result for unknown run")
	}
}

func TestHandleMissingArgs(t *testing.T) {
	s := newServer(nxmcp.ServerDeps{
		Runs:     &mockRuns{runs: map[string]*run.Run{}},
		Trigger:  &mockTrigger{},
		Reviewer: &mockReviewer{},
	})
	tests := []struct {
		tool string
		args map[string]any
	}{
		{"get_run", map[string]any{"project_id": "p1"}},
		{"list_runs", nil},
		{"get_run_logs", map[string]any{"run_id": "r1"}},
		{"trigger_run", map[string]any{"project_id": "  "}},
		{"review_run", map[string]any{"project_id": "p1", "run_id": "r1"}},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			if !call(t, s, tt.tool, tt.args).IsError {
				t.Fatal("expected error result for missing argument")
			}
		})
	}
}

func TestHandleGetRunLogs(t *testing.T) {
	s := newServer(nxmcp.ServerDeps{Runs: &mockRuns{
		runs: map[string]*run.Run{"r1": {ID: "r1", ProjectID: "p1"}},
		logs: []run.TelemetryEntry{{RunID: "r1", Stage: run.StageIngest, Message: "Fetching Slack messages", Level: run.LevelInfo}},
	}})

	var logs []run.TelemetryEntry
	text := resultText(t, call(t, s, "get_run_logs", map[string]any{"project_id": "p1", "run_id": "r1"}))
	if err := json.Unmarshal([]byte(text), &logs); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(logs) != 1 || logs[0].Stage != run.StageIngest {
		t.Fatalf("unexpected logs %+v", logs)
	}
}

func TestHandleTriggerRun(t *testing.T) {
	trigger := &mockTrigger{}
	s := newServer(nxmcp.ServerDeps{Trigger: trigger})

	text := resultText(t, call(t, s, "trigger_run", map[string]any{
		"project_id":  "p1",
		"description": "weekly sync",
		"sources":     "Slack, figma",
	}))
	var r run.Run
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if r.ID != "r-new" || trigger.calls != 1 {
		t.Fatalf("expected one trigger returning r-new, got %d calls and %q", trigger.calls, r.ID)
	}
	if len(trigger.got.Sources) != 2 || trigger.got.Sources[0] != signal.SourceSlack || trigger.got.Sources[1] != signal.SourceFigma {
		t.Errorf("unexpected sources %v", trigger.got.Sources)
	}
	if trigger.got.Description != "weekly sync" {
		t.Errorf("unexpected description %q", trigger.got.Description)
	}
}

func TestHandleReviewRun(t *testing.T) {
	reviewer := &mockReviewer{}
	s := newServer(nxmcp.ServerDeps{Reviewer: reviewer})

	resultText(t, call(t, s, "review_run", map[string]any{"project_id": "p1", "run_id": "r1", "action": "approve"}))
	if reviewer.action != service.ActionApprove {
		t.Errorf("expected approve, got %q", reviewer.action)
	}

	if !call(t, s, "review_run", map[string]any{"project_id": "p1", "run_id": "r1", "action": "maybe"}).IsError {
		t.Fatal("expected error result for unknown action")
	}

	reviewer.err = domain.ErrConflict
	if !call(t, s, "review_run", map[string]any{"project_id": "p1", "run_id": "r1", "action": "reject"}).IsError {
		t.Fatal("expected error result on conflict")
	}
}

func TestHandleNilDeps(t *testing.T) {
	s := newServer(nxmcp.ServerDeps{})
	for _, name := range []string{"list_projects", "list_runs", "get_run", "get_run_logs", "trigger_run", "review_run"} {
		if !call(t, s, name, map[string]any{"project_id": "p1", "run_id": "r1", "action": "approve"}).IsError {
			t.Errorf("%s: expected error result when deps are nil", name)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := nxmcp.AuthMiddleware("secret", ok)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusForbidden},
		{"bearer", "Bearer secret", http.StatusOK},
		{"bare key", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if nxmcp.AuthMiddleware("", ok) == nil {
		t.Fatal("expected passthrough handler when auth is disabled")
	}
}
