package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/port/database"
)

// MaxNewMessages bounds the messages handed to fusion per run.
const MaxNewMessages = 20

var historyTopics = []string{
	"oauth", "pkce", "mfa", "auth", "login", "jira", "figma", "design",
	"blocker", "issue", "bug", "feature", "implement", "refactor",
}

// HistoryService keeps the per-project chat history and the
// last-processed mark that separates new messages from context.
type HistoryService struct {
	store database.Store
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(store database.Store) *HistoryService {
	return &HistoryService{store: store}
}

// Batch is the result of recording one fetch.
type Batch struct {
	// New are messages newer than the previous mark, oldest first.
	New     []signal.Message
	Summary signal.HistorySummary
	// Fresh is true on a project's first ingestion.
	Fresh bool
}

// Record merges fetched messages into the history, selects the new ones and
// advances the last-processed mark to the newest fetched timestamp.
func (s *HistoryService) Record(ctx context.Context, projectID string, fetched []signal.Message) (*Batch, error) {
	if len(fetched) > 0 {
		if _, err := s.store.SaveMessages(ctx, projectID, fetched); err != nil {
			return nil, fmt.Errorf("save messages: %w", err)
		}
	}
	mark, err := s.store.LastProcessed(ctx, projectID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListMessages(ctx, projectID)
	if err != nil {
		return nil, err
	}

	b := &Batch{New: newerThan(all, mark, MaxNewMessages), Summary: summarize(all), Fresh: mark == ""}

	if len(fetched) > 0 {
		newest := fetched[0]
		for _, m := range fetched[1:] {
			if m.Time() > newest.Time() {
				newest = m
			}
		}
		if err := s.store.SetLastProcessed(ctx, projectID, newest.TS); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Messages returns stored messages newest first, paged by limit and offset.
func (s *HistoryService) Messages(ctx context.Context, projectID string, limit, offset int) ([]signal.Message, error) {
	all, err := s.store.ListMessages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]signal.Message, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	if offset >= len(out) {
		return []signal.Message{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Summary describes the stored history of a project.
func (s *HistoryService) Summary(ctx context.Context, projectID string) (signal.HistorySummary, error) {
	all, err := s.store.ListMessages(ctx, projectID)
	if err != nil {
		return signal.HistorySummary{}, err
	}
	return summarize(all), nil
}

// newerThan returns up to limit of the newest messages after mark, oldest
// first. An empty mark selects the newest messages.
func newerThan(msgs []signal.Message, mark string, limit int) []signal.Message {
	var since float64
	if mark != "" {
		since = signal.Message{TS: mark}.Time()
	}
	out := make([]signal.Message, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if mark != "" && msgs[i].Time() <= since {
			continue
		}
		out = append(out, msgs[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// summarize expects msgs oldest first.
func summarize(msgs []signal.Message) signal.HistorySummary {
	sum := signal.HistorySummary{Count: len(msgs), Topics: []string{}, UniqueUsers: []string{}}
	if len(msgs) == 0 {
		return sum
	}
	sum.Oldest = msgs[0].TS
	sum.Newest = msgs[len(msgs)-1].TS

	var text strings.Builder
	users := make(map[string]struct{})
	for _, m := range msgs {
		text.WriteString(strings.ToLower(m.Text))
		text.WriteByte(' ')
		if m.User != "" {
			users[m.User] = struct{}{}
		}
	}
	all := text.String()
	for _, kw := range historyTopics {
		if strings.Contains(all, kw) {
			sum.Topics = append(sum.Topics, kw)
		}
	}
	for u := range users {
		sum.UniqueUsers = append(sum.UniqueUsers, u)
	}
	sort.Strings(sum.UniqueUsers)
	return sum
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
