package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Strob0t/NexusPM/internal/domain/signal"
)

func msg(sec int, user, text string) signal.Message {
	return signal.Message{User: user, Text: text, TS: fmt.Sprintf("%d.000100", 1712345600+sec)}
}

func TestHistoryRecordSeparatesNewFromContext(t *testing.T) {
	h := newHarness(t, newStubProvider(), nil)
	ctx := context.Background()

	first := []signal.Message{msg(1, "alice", "oauth login is flaky"), msg(2, "bob", "design review tomorrow")}
	b, err := h.history.Record(ctx, "p1", first)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !b.Fresh || len(b.New) != 2 {
		t.Fatalf("expected fresh batch with 2 new, got fresh=%v new=%d", b.Fresh, len(b.New))
	}

	// The second fetch overlaps the first.
	second := []signal.Message{msg(2, "bob", "design review tomorrow"), msg(3, "carol", "fix the jira sync bug")}
	b, err = h.history.Record(ctx, "p1", second)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if b.Fresh {
		t.Error("second batch must not be fresh")
	}
	if len(b.New) != 1 || b.New[0].User != "carol" {
		t.Fatalf("expected only carol's message as new, got %+v", b.New)
	}
	if b.Summary.Count != 3 {
		t.Errorf("expected 3 stored messages, got %d", b.Summary.Count)
	}
	if len(b.Summary.UniqueUsers) != 3 {
		t.Errorf("expected 3 unique users, got %v", b.Summary.UniqueUsers)
	}

	// A fetch with nothing new yields an empty batch.
	b, err = h.history.Record(ctx, "p1", second)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.New) != 0 {
		t.Errorf("expected no new messages, got %d", len(b.New))
	}
}

func TestHistoryRecordCapsNewMessages(t *testing.T) {
	h := newHarness(t, newStubProvider(), nil)
	var fetched []signal.Message
	for i := range MaxNewMessages + 10 {
		fetched = append(fetched, msg(i, "alice", fmt.Sprintf("message %d", i)))
	}
	b, err := h.history.Record(context.Background(), "p1", fetched)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.New) != MaxNewMessages {
		t.Fatalf("expected %d new messages, got %d", MaxNewMessages, len(b.New))
	}
	if b.New[len(b.New)-1].Text != fmt.Sprintf("message %d", MaxNewMessages+9) {
		t.Errorf("expected newest message last, got %q", b.New[len(b.New)-1].Text)
	}
}

func TestHistoryMessagesPaging(t *testing.T) {
	h := newHarness(t, newStubProvider(), nil)
	ctx := context.Background()
	var fetched []signal.Message
	for i := range 5 {
		fetched = append(fetched, msg(i, "alice", fmt.Sprintf("m%d", i)))
	}
	if _, err := h.history.Record(ctx, "p1", fetched); err != nil {
		t.Fatal(err)
	}

	page, err := h.history.Messages(ctx, "p1", 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Text != "m3" || page[1].Text != "m2" {
		t.Errorf("unexpected page %+v", page)
	}
	empty, _ := h.history.Messages(ctx, "p1", 10, 50)
	if len(empty) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(empty))
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"チケットが見つかりません", 4, "チケット"},
		{"ä" + strings.Repeat("ü", 300), 200, "ä" + strings.Repeat("ü", 199)},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
		}
	}
}
