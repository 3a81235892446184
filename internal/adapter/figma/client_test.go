package figma

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/port/source"
)

var (
	_ source.DesignSource = (*Client)(nil)
	_ source.Checker      = (*Client)(nil)
)

func TestDemoMode(t *testing.T) {
	c := NewClient(Config{}, nil)
	if c.Configured() {
		t.Fatal("expected unconfigured")
	}
	f, err := c.FetchFile(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchFile: %v", err)
	}
	if f.Name != "Mobile App v2 Design" || len(f.Pages) != 3 {
		t.Fatalf("unexpected demo file %+v", f)
	}
	comments, err := c.FetchComments(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("expected 3 demo comments, got %d", len(comments))
	}
}

func TestFetchFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/KEY1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-FIGMA-TOKEN") != "figd" {
			t.Errorf("missing token header")
		}
		_, _ = w.Write([]byte(`{"name":"Checkout","lastModified":"2025-01-01T00:00:00Z",
			"document":{"children":[{"id":"0:1","name":"Cart","type":"CANVAS"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{AccessToken: "figd", FileKey: "KEY1", BaseURL: srv.URL}, nil)
	f, err := c.FetchFile(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Key != "KEY1" || f.Name != "Checkout" {
		t.Fatalf("unexpected file %+v", f)
	}
	if len(f.Pages) != 1 || f.Pages[0].Name != "Cart" {
		t.Fatalf("unexpected pages %+v", f.Pages)
	}
}

func TestFetchComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/KEY1/comments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"comments":[
			{"id":"9","message":"Bigger CTA","created_at":"2025-01-02T00:00:00Z","user":{"handle":"sarah"}},
			{"id":"8","message":"ok","user":{}}
		]}`))
	}))
	defer srv.Close()

	comments, err := NewClient(Config{AccessToken: "figd", BaseURL: srv.URL}, nil).FetchComments(context.Background(), "KEY1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comments) != 2 || comments[0].User != "sarah" || comments[1].User != "unknown" {
		t.Fatalf("unexpected comments %+v", comments)
	}
}

func TestFetchFileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(Config{AccessToken: "figd", BaseURL: srv.URL}, nil).FetchFile(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"email":"design@example.com","handle":"des"}`))
	}))
	defer srv.Close()

	who, err := NewClient(Config{AccessToken: "figd", BaseURL: srv.URL}, nil).Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if who != "design@example.com" {
		t.Fatalf("unexpected identity %q", who)
	}
}
