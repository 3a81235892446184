package jira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
	"github.com/Strob0t/NexusPM/internal/port/pmprovider"
	"github.com/Strob0t/NexusPM/internal/port/source"
	"github.com/Strob0t/NexusPM/internal/resilience"
)

// Compile-time interface checks.
var (
	_ pmprovider.Provider = (*Provider)(nil)
	_ source.Checker      = (*Provider)(nil)
)

func newTestProvider(url string) *Provider {
	return NewProvider(Config{Domain: url, Email: "pm@example.com", APIToken: "secret"}, nil)
}

func strPtr(s string) *string { return &s }

func TestProviderName(t *testing.T) {
	p := NewProvider(Config{}, nil)
	if p.Name() != "jira" {
		t.Fatalf("expected 'jira', got %q", p.Name())
	}
	if !p.Capabilities().Transitions {
		t.Fatal("expected Transitions=true")
	}
}

func TestConfigured(t *testing.T) {
	if NewProvider(Config{Domain: "acme.atlassian.net"}, nil).Configured() {
		t.Fatal("expected unconfigured without credentials")
	}
	p := NewProvider(Config{Domain: "acme.atlassian.net", Email: "a@b.c", APIToken: "t"}, nil)
	if !p.Configured() {
		t.Fatal("expected configured")
	}
	if p.baseURL != "https://acme.atlassian.net" {
		t.Fatalf("expected https base URL, got %q", p.baseURL)
	}
}

func TestDemoMode(t *testing.T) {
	p := NewProvider(Config{}, nil)
	ctx := context.Background()

	items, err := p.ListItems(ctx, "PROJ")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 4 || items[0].Key != "PROJ-1245" {
		t.Fatalf("expected 4 demo issues starting with PROJ-1245, got %+v", items)
	}

	got, err := p.GetItem(ctx, "PROJ-1243")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Summary != "Navigation component updates" {
		t.Fatalf("unexpected summary %q", got.Summary)
	}
	if _, err := p.GetItem(ctx, "PROJ-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := p.CreateItem(ctx, "PROJ", ticket.CreateRequest{Summary: "Dark mode"})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if created.Key != "PROJ-NEW" || created.Priority != "Medium" || created.Status != "To Do" {
		t.Fatalf("unexpected placeholder %+v", created)
	}
	if err := p.UpdateItem(ctx, "PROJ-1245", ticket.Update{Status: strPtr("Done")}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
}

func TestListItems(t *testing.T) {
	var gotJQL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/3/search/jql" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "pm@example.com" || pass != "secret" {
			t.Errorf("missing basic auth")
		}
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotJQL = req.JQL
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"issues":[
			{"key":"PROJ-7","fields":{"summary":"Rate limiting","status":{"name":"To Do"},"priority":{"name":"High"},
			 "labels":["api"],"assignee":{"displayName":"Mike Chen"},
			 "description":{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"Limit "},{"type":"text","text":"requests"}]}]}}},
			{"key":"PROJ-8","fields":{"summary":"Dark mode","status":{"name":"Done"},"assignee":null}}
		]}`)
	}))
	defer srv.Close()

	items, err := newTestProvider(srv.URL).ListItems(context.Background(), "PROJ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(gotJQL, `project="PROJ"`) {
		t.Fatalf("unexpected JQL %q", gotJQL)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0]
	if first.Description != "Limit requests" || first.Priority != "High" || first.Assignee != "Mike Chen" {
		t.Fatalf("unexpected first ticket %+v", first)
	}
	if first.URL != srv.URL+"/browse/PROJ-7" {
		t.Fatalf("unexpected URL %q", first.URL)
	}
	if items[1].Assignee != "Unassigned" || items[1].Labels == nil {
		t.Fatalf("unexpected defaults %+v", items[1])
	}
}

func TestGetItemNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errorMessages":["Issue does not exist"]}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).GetItem(context.Background(), "PROJ-404")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateItem(t *testing.T) {
	var fields map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Fields map[string]json.RawMessage `json:"fields"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fields = body.Fields
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"10001","key":"PROJ-9"}`)
	}))
	defer srv.Close()

	got, err := newTestProvider(srv.URL).CreateItem(context.Background(), "PROJ", ticket.CreateRequest{
		Summary:     "Add rate limiting",
		Description: "From #eng",
		Priority:    "High",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Key != "PROJ-9" || got.Priority != "High" {
		t.Fatalf("unexpected ticket %+v", got)
	}
	if string(fields["issuetype"]) != `{"name":"Task"}` {
		t.Fatalf("expected default Task issuetype, got %s", fields["issuetype"])
	}
	if fromADF(fields["description"]) != "From #eng" {
		t.Fatalf("expected ADF description, got %s", fields["description"])
	}
}

func TestCreateItemRequiresSummary(t *testing.T) {
	_, err := NewProvider(Config{}, nil).CreateItem(context.Background(), "PROJ", ticket.CreateRequest{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateItemWithTransition(t *testing.T) {
	var puts, transitions atomic.Int32
	var chosen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/rest/api/3/issue/PROJ-7":
			puts.Add(1)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/3/issue/PROJ-7/transitions":
			_, _ = io.WriteString(w, `{"transitions":[{"id":"11","name":"Start Progress"},{"id":"31","name":"Mark Done"}]}`)
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/3/issue/PROJ-7/transitions":
			transitions.Add(1)
			var body struct {
				Transition struct {
					ID string `json:"id"`
				} `json:"transition"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			chosen = body.Transition.ID
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	err := newTestProvider(srv.URL).UpdateItem(context.Background(), "PROJ-7", ticket.Update{
		Priority: strPtr("High"),
		Status:   strPtr("done"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if puts.Load() != 1 || transitions.Load() != 1 {
		t.Fatalf("expected 1 put and 1 transition, got %d and %d", puts.Load(), transitions.Load())
	}
	if chosen != "31" {
		t.Fatalf("expected transition 31, got %q", chosen)
	}
}

func TestUpdateItemUnknownTransition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"transitions":[{"id":"11","name":"Start Progress"}]}`)
	}))
	defer srv.Close()

	err := newTestProvider(srv.URL).UpdateItem(context.Background(), "PROJ-7", ticket.Update{Status: strPtr("Archived")})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProvider(Config{Domain: srv.URL, Email: "a", APIToken: "b"}, resilience.NewBreaker("jira", 2, time.Minute))
	ctx := context.Background()
	for range 2 {
		if _, err := p.ListItems(ctx, "PROJ"); err == nil {
			t.Fatal("expected error")
		}
	}
	if _, err := p.ListItems(ctx, "PROJ"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProvider(Config{Domain: srv.URL, Email: "a", APIToken: "b"}, resilience.NewBreaker("jira", 1, time.Minute))
	for range 3 {
		if _, err := p.GetItem(context.Background(), "PROJ-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
}

func TestFromADF(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"null", `null`, ""},
		{"plain string", `"legacy text"`, "legacy text"},
		{"two paragraphs", `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"a"}]},{"type":"paragraph","content":[{"type":"text","text":"b"}]}]}`, "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fromADF(json.RawMessage(tt.raw)); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/myself" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"displayName":"PM Bot","emailAddress":"pm@example.com"}`)
	}))
	defer srv.Close()

	who, err := newTestProvider(srv.URL).Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if who != "PM Bot" {
		t.Fatalf("unexpected identity %q", who)
	}
	if _, err := NewProvider(Config{}, nil).Check(context.Background()); err == nil {
		t.Fatal("expected error when unconfigured")
	}
}

func TestRegistryFactory(t *testing.T) {
	got, err := pmprovider.New("jira", map[string]string{
		KeyDomain:             "acme.atlassian.net",
		KeyEmail:              "pm@example.com",
		KeyAPIToken:           "secret",
		KeyBreakerMaxFailures: "3",
		KeyBreakerTimeout:     "5s",
	})
	if err != nil {
		t.Fatalf("pmprovider.New: %v", err)
	}
	p, ok := got.(*Provider)
	if !ok {
		t.Fatalf("expected *Provider, got %T", got)
	}
	if !p.Configured() {
		t.Error("expected configured provider")
	}
	if p.breaker == nil {
		t.Error("expected breaker")
	}

	if _, err := pmprovider.New("jira", map[string]string{}); err != nil {
		t.Fatalf("expected unconfigured provider without error, got %v", err)
	}
}

func TestTruncateErrorBodyKeepsRunesWhole(t *testing.T) {
	body := []byte(strings.Repeat("問題", 150))
	got := truncate(body, 200)
	if !utf8.ValidString(got) {
		t.Fatalf("invalid UTF-8 in %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 200 {
		t.Errorf("expected 200 runes, got %d", n)
	}
	if truncate([]byte("short"), 200) != "short" {
		t.Errorf("short body must pass through")
	}
}
