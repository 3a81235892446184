package fusion

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Strob0t/NexusPM/internal/domain/proposal"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
)

// Output limits of a single fusion.
const (
	MaxProposals       = 5
	MaxInsights        = 6
	MaxCreateProposals = 3
)

// Input is everything fusion can draw on for one run.
type Input struct {
	// Messages are the new chat messages that require action.
	Messages []signal.Message
	// History summarizes messages already processed in earlier runs.
	History *signal.HistorySummary
	Design  *signal.DesignFile
	Tickets []ticket.Ticket
	// DetectedIDs are ticket keys referenced in Messages.
	DetectedIDs []string
	Snapshots   map[string]proposal.Snapshot
}

// Result is the ranked output of fusion.
type Result struct {
	Summary   string              `json:"summary"`
	Proposals []proposal.Proposal `json:"proposals"`
	Insights  []string            `json:"insights"`
	// Warnings are corrections applied to the result before it was accepted.
	Warnings []string `json:"-"`
}

var (
	actionKeywords = []string{"need", "should", "must", "implement", "create", "add", "fix", "update", "refactor", "build", "handle", "work on"}
	ticketPhrases  = []string{"create a ticket", "create ticket", "new ticket", "create new", "sprint"}
	leadPrefixes   = []string{"we should", "we need to", "need to", "should", "create a ticket for", "create new ticket for", "let's"}

	priorityKeywords = []struct {
		word     string
		priority proposal.Priority
	}{
		{"critical", proposal.PriorityHigh},
		{"blocker", proposal.PriorityHigh},
		{"urgent", proposal.PriorityHigh},
		{"high", proposal.PriorityHigh},
		{"medium", proposal.PriorityMedium},
		{"low", proposal.PriorityLow},
	}

	sprintPattern = regexp.MustCompile(`(?i)sprint\s*(\d+)`)
)

// Heuristic is the deterministic fallback matcher. It walks the new
// messages in order, matches actionable ones against known tickets by
// word overlap and drafts update or create proposals.
func Heuristic(in Input) Result {
	type indexed struct {
		t     ticket.Ticket
		words map[string]struct{}
	}
	index := make([]indexed, 0, len(in.Tickets))
	for _, t := range in.Tickets {
		index = append(index, indexed{t: t, words: Words(t.Summary)})
	}

	var (
		proposals []proposal.Proposal
		insights  []string
		creates   int
	)

	for _, msg := range in.Messages {
		text := strings.ToLower(msg.Text)
		user := msg.User
		if user == "" {
			user = "unknown"
		}

		if strings.Contains(text, "has joined") || strings.Contains(text, "has left") {
			continue
		}
		if !containsAny(text, actionKeywords) && !containsAny(text, ticketPhrases) {
			continue
		}

		clean := StripPrefixes(msg.Text)
		content := ContentWords(clean)

		var (
			best      *ticket.Ticket
			bestScore float64
		)
		for i := range index {
			score := Score(content, index[i].words)
			if score > bestScore && score > MatchThreshold {
				bestScore = score
				best = &index[i].t
			}
		}

		priority := PriorityOf(text)
		sprint := ""
		sprintInfo := ""
		if m := sprintPattern.FindStringSubmatch(msg.Text); m != nil {
			sprint = m[1]
			sprintInfo = fmt.Sprintf(" (Target: Sprint %s)", sprint)
		}

		if best != nil {
			if existing := findUpdate(proposals, best.Key); existing != nil {
				existing.RelatedMessages = append(existing.RelatedMessages, msg.Text)
				existing.Description += fmt.Sprintf("\n\n@%s: %s", user, msg.Text)
			} else {
				p := proposal.NewUpdate(
					best.Key,
					fmt.Sprintf("Update %s: %s", best.Key, best.Summary),
					fmt.Sprintf("New discussion from Slack regarding this ticket:\n\n@%s%s:\n%s\n\nConsider updating ticket based on this discussion.", user, sprintInfo, msg.Text),
					priority,
					[]proposal.Change{{Field: "description", New: "Additional context from Slack: " + truncate(msg.Text, 100) + "..."}},
				)
				p.RelatedMessages = append(p.RelatedMessages, msg.Text)
				p.Sprint = sprint
				if snap, ok := in.Snapshots[best.Key]; ok {
					s := snap
					p.Snapshot = &s
				}
				proposals = append(proposals, p)
				insights = append(insights, fmt.Sprintf("📝 Message from %s relates to %s", user, best.Key))
			}
		} else {
			title := DraftTitle(clean, msg.Text)
			if !hasCreateTitle(proposals, title) && creates < MaxCreateProposals {
				p := proposal.NewCreate(
					title,
					fmt.Sprintf("Based on Slack discussion from @%s%s:\n\n%s\n\n---\nAction: Create ticket to track this work item.", user, sprintInfo, msg.Text),
					priority,
				)
				p.RelatedMessages = append(p.RelatedMessages, msg.Text)
				p.Sprint = sprint
				proposals = append(proposals, p)
				creates++
				insights = append(insights, fmt.Sprintf("✨ New task identified from %s: %s...", user, truncate(title, 50)))
			}
		}

		if strings.Contains(text, "blocker") || strings.Contains(text, "blocking") {
			insights = append(insights, fmt.Sprintf("⚠️ Blocker mentioned by %s", user))
		}
		if containsAny(text, []string{"bug", "error", "issue"}) {
			insights = append(insights, fmt.Sprintf("🐛 Potential bug mentioned by %s", user))
		}
		if strings.Contains(text, "figma") || strings.Contains(text, "design") {
			insights = append(insights, fmt.Sprintf("🎨 Design discussion by %s", user))
		}
	}

	historyCount := 0
	var topics []string
	if in.History != nil {
		historyCount = in.History.Count
		topics = in.History.Topics
	}

	if len(proposals) == 0 {
		summary := fmt.Sprintf("Analyzed %d messages", len(in.Messages))
		if historyCount > 0 {
			summary += fmt.Sprintf(" (with %d historical)", historyCount)
		}
		if len(insights) == 0 {
			insights = []string{"No immediate action items from recent discussions"}
		}
		return Result{
			Summary:   summary + ". No specific action items identified.",
			Proposals: []proposal.Proposal{},
			Insights:  capInsights(insights),
		}
	}

	summary := fmt.Sprintf("Analyzed %d new Slack messages", len(in.Messages))
	if historyCount > 0 {
		summary += fmt.Sprintf(" (with %d messages history)", historyCount)
	}
	summary += fmt.Sprintf(" and found %d action items.", len(proposals))
	if len(topics) > 0 {
		summary += " Topics: " + strings.Join(topics, ", ")
	}
	if len(insights) == 0 {
		insights = []string{"Team is actively discussing implementation details"}
	}
	if len(proposals) > MaxProposals {
		proposals = proposals[:MaxProposals]
	}
	return Result{
		Summary:   summary,
		Proposals: proposals,
		Insights:  capInsights(insights),
	}
}

// StripPrefixes removes leading conversational phrases ("we should",
// "let's", ...) from text. Prefixes are checked in sequence against the
// progressively shortened text.
func StripPrefixes(text string) string {
	clean := text
	for _, prefix := range leadPrefixes {
		if len(clean) >= len(prefix) && strings.EqualFold(clean[:len(prefix)], prefix) {
			clean = strings.TrimSpace(clean[len(prefix):])
		}
	}
	return clean
}

// DraftTitle derives a ticket title from the cleaned message text.
func DraftTitle(clean, original string) string {
	title := truncate(clean, 70)
	if utf8.RuneCountInString(title) < 10 {
		title = "Task: " + truncate(original, 60) + "..."
	}
	if title == "" {
		return "New task from Slack discussion"
	}
	r, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(r)) + title[size:]
}

// PriorityOf scans lower-cased text for the first priority keyword.
func PriorityOf(text string) proposal.Priority {
	for _, kw := range priorityKeywords {
		if strings.Contains(text, kw.word) {
			return kw.priority
		}
	}
	return proposal.PriorityMedium
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func findUpdate(proposals []proposal.Proposal, key string) *proposal.Proposal {
	for i := range proposals {
		if proposals[i].IsUpdate() && proposals[i].ExistingTicket == key {
			return &proposals[i]
		}
	}
	return nil
}

func hasCreateTitle(proposals []proposal.Proposal, title string) bool {
	for _, p := range proposals {
		if p.Type == proposal.TypeCreate && strings.EqualFold(p.Title, title) {
			return true
		}
	}
	return false
}

func capInsights(insights []string) []string {
	if len(insights) > MaxInsights {
		return insights[:MaxInsights]
	}
	return insights
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
