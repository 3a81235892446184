package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/NexusPM/internal/port/notifier"
)

// Compile-time interface check.
var _ notifier.Notifier = (*Notifier)(nil)

func TestNotifierName(t *testing.T) {
	n := NewNotifier(NewClient(Config{}, nil), "")
	if n.Name() != "slack" {
		t.Fatalf("expected 'slack', got %q", n.Name())
	}
}

func TestSendNotConfigured(t *testing.T) {
	n := NewNotifier(NewClient(Config{}, nil), "C1")
	err := n.Send(context.Background(), notifier.Notification{Title: "test"})
	if !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	n = NewNotifier(NewClient(Config{BotToken: "xoxb"}, nil), "")
	if err := n.Send(context.Background(), notifier.Notification{Title: "test"}); !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without channel, got %v", err)
	}
}

func TestSendSuccess(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true,"ts":"1.2"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BotToken: "xoxb-test", ChannelID: "C42", BaseURL: srv.URL}, nil)
	err := NewNotifier(client, "").Send(context.Background(), notifier.Notification{
		Title:   "Run awaiting review",
		Message: "3 proposals drafted",
		Level:   "success",
		Source:  "run.awaiting_review",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Channel != "C42" {
		t.Fatalf("expected default channel C42, got %q", got.Channel)
	}
	if len(got.Blocks) != 3 || got.Blocks[0].Text.Text != "[OK] Run awaiting review" {
		t.Fatalf("unexpected blocks %+v", got.Blocks)
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BotToken: "xoxb", BaseURL: srv.URL}, nil)
	err := NewNotifier(client, "C1").Send(context.Background(), notifier.Notification{Title: "Test", Level: "info"})
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
}

func TestSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	client := NewClient(Config{BotToken: "xoxb", BaseURL: srv.URL}, nil)
	err := NewNotifier(client, "C1").Send(context.Background(), notifier.Notification{Title: "Test"})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}
