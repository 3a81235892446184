package litellm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/NexusPM/internal/domain/fusion"
	"github.com/Strob0t/NexusPM/internal/domain/proposal"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
	"github.com/Strob0t/NexusPM/internal/port/reasoner"
)

const (
	promptMessages = 20
	promptTickets  = 10
)

const systemPrompt = "You are a product management assistant. You turn team chat, design review " +
	"comments and the current issue tracker state into structured ticket proposals. " +
	"Answer with a single JSON object and nothing else."

// Reasoner drafts proposals with an LLM served by the LiteLLM proxy.
type Reasoner struct {
	client *Client
	model  string
}

var _ reasoner.Reasoner = (*Reasoner)(nil)

// NewReasoner creates a reasoner using model on client.
func NewReasoner(client *Client, model string) *Reasoner {
	return &Reasoner{client: client, model: model}
}

func (r *Reasoner) Name() string { return "litellm:" + r.model }

// Reason asks the model for proposals. Transport failures wrap
// reasoner.ErrUnavailable, unparsable or invalid answers wrap
// reasoner.ErrMalformed and an empty proposal list is reasoner.ErrEmpty.
func (r *Reasoner) Reason(ctx context.Context, in fusion.Input) (*fusion.Result, error) {
	if r.client == nil || !r.client.Configured() {
		return nil, reasoner.ErrUnavailable
	}

	content, err := r.client.ChatCompletion(ctx, ChatRequest{
		Model: r.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(in)},
		},
		Temperature:    0.2,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", reasoner.ErrUnavailable, err)
	}
	return ParseResult(content, in.Tickets)
}

// ParseResult decodes a model answer, which may wrap the JSON object in a
// fenced code block, and validates every proposal. Updates that name a
// ticket missing from known are drafted as creates and reported in
// Result.Warnings.
func ParseResult(content string, known []ticket.Ticket) (*fusion.Result, error) {
	var res fusion.Result
	if err := json.Unmarshal([]byte(extractJSON(content)), &res); err != nil {
		return nil, fmt.Errorf("%w: %w", reasoner.ErrMalformed, err)
	}
	if len(res.Proposals) == 0 {
		return nil, reasoner.ErrEmpty
	}

	for i := range res.Proposals {
		p := &res.Proposals[i]
		p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: proposal %d: %w", reasoner.ErrMalformed, i, err)
		}
	}
	res.Warnings = downgradeUnknownUpdates(res.Proposals, known)
	if len(res.Proposals) > fusion.MaxProposals {
		res.Proposals = res.Proposals[:fusion.MaxProposals]
	}
	if len(res.Insights) > fusion.MaxInsights {
		res.Insights = res.Insights[:fusion.MaxInsights]
	}
	if res.Insights == nil {
		res.Insights = []string{}
	}
	return &res, nil
}

func downgradeUnknownUpdates(proposals []proposal.Proposal, known []ticket.Ticket) []string {
	keys := make(map[string]struct{}, len(known))
	for _, t := range known {
		keys[t.Key] = struct{}{}
	}
	var warnings []string
	for i := range proposals {
		p := &proposals[i]
		if p.Type != proposal.TypeUpdate {
			continue
		}
		if _, ok := keys[p.ExistingTicket]; ok {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("Oracle referenced unknown ticket %s, drafting %q as a new ticket", p.ExistingTicket, p.Title))
		p.Type = proposal.TypeCreate
		p.ExistingTicket = ""
		p.Changes = nil
	}
	return warnings
}

func extractJSON(text string) string {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		text = after
	} else if _, after, ok := strings.Cut(text, "```"); ok {
		text = after
	} else {
		return strings.TrimSpace(text)
	}
	body, _, _ := strings.Cut(text, "```")
	return strings.TrimSpace(body)
}

// BuildPrompt renders the user prompt for one fusion.
func BuildPrompt(in fusion.Input) string {
	var b strings.Builder

	b.WriteString("## New chat messages (these require action)\n")
	writeMessages(&b, in.Messages)

	if in.History != nil && in.History.Count > 0 {
		fmt.Fprintf(&b, "\n## Historical context (%d earlier messages)\n", in.History.Count)
		fmt.Fprintf(&b, "Topics discussed: %s\n", strings.Join(in.History.Topics, ", "))
		users := in.History.UniqueUsers
		if len(users) > 5 {
			users = users[:5]
		}
		fmt.Fprintf(&b, "Active users: %s\n", strings.Join(users, ", "))
	}

	if len(in.DetectedIDs) > 0 {
		b.WriteString("\n## Ticket keys mentioned in the messages\n")
		b.WriteString(strings.Join(in.DetectedIDs, ", "))
		b.WriteString("\nAny proposal about one of these keys must be an update with existingTicket set.\n")
	}

	if in.Design != nil {
		b.WriteString("\n## Design file\n")
		fmt.Fprintf(&b, "File: %s\n", in.Design.Name)
		pages := make([]string, 0, len(in.Design.Pages))
		for _, p := range in.Design.Pages {
			pages = append(pages, p.Name)
		}
		fmt.Fprintf(&b, "Pages: %s\n", strings.Join(pages, ", "))
		b.WriteString("Comments:\n")
		for _, c := range in.Design.Comments {
			fmt.Fprintf(&b, "- @%s: %s\n", c.User, c.Message)
		}
	}

	b.WriteString("\n## Current tickets\n")
	writeTickets(&b, in.Tickets)

	b.WriteString(`
## Instructions
Base proposals on the new messages only; the historical context is background.
For each message decide:
1. It references an existing ticket key: propose an update with existingTicket.
2. It relates to an existing ticket by topic: propose an update.
3. It is a new topic: propose a create.
4. No action is needed: skip it.
Propose at most 5 items.

Return a JSON object of this shape:
{
  "summary": "what was analyzed",
  "proposals": [
    {
      "type": "create" | "update",
      "title": "action-oriented title",
      "description": "details drawn from the messages",
      "priority": "High" | "Medium" | "Low",
      "relatedSlackMessages": ["message text"],
      "relatedFigmaPages": ["page name"],
      "existingTicket": "KEY-123 (updates only)",
      "changes": [{"field": "Priority", "old": "Medium", "new": "High"}]
    }
  ],
  "insights": ["observation"]
}
`)
	return b.String()
}

func writeMessages(b *strings.Builder, msgs []signal.Message) {
	if len(msgs) > promptMessages {
		msgs = msgs[len(msgs)-promptMessages:]
	}
	if len(msgs) == 0 {
		b.WriteString("(none)\n")
	}
	for _, m := range msgs {
		fmt.Fprintf(b, "- @%s: %s\n", m.User, m.Text)
	}
}

func writeTickets(b *strings.Builder, tickets []ticket.Ticket) {
	if len(tickets) > promptTickets {
		tickets = tickets[:promptTickets]
	}
	if len(tickets) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range tickets {
		fmt.Fprintf(b, "- [%s] %s (%s, %s)\n", t.Key, t.Summary, t.Status, t.Priority)
	}
}
