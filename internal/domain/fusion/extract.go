// Package fusion turns ingested collaboration signals into ranked ticket
// proposals. It holds the pure parts of context fusion: ticket reference
// extraction, word-overlap scoring and the deterministic heuristic matcher.
package fusion

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Strob0t/NexusPM/internal/domain/proposal"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
)

// ticketRef matches tracker keys such as PROJ-12 or AB2-7.
var ticketRef = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)

// ExtractTicketIDs returns the distinct ticket keys referenced in messages,
// sorted so the result does not depend on message order.
func ExtractTicketIDs(messages []signal.Message) []string {
	seen := make(map[string]struct{})
	for _, m := range messages {
		for _, id := range ticketRef.FindAllString(m.Text, -1) {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// KnownIDs returns the subset of ids present in the known ticket list,
// preserving the order of ids.
func KnownIDs(ids []string, known []ticket.Ticket) []string {
	keys := make(map[string]struct{}, len(known))
	for _, t := range known {
		keys[t.Key] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		if _, ok := keys[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// AttachSnapshots sets the pre-change snapshot on every update proposal
// whose ticket was captured.
func AttachSnapshots(proposals []proposal.Proposal, snapshots map[string]proposal.Snapshot) {
	for i := range proposals {
		p := &proposals[i]
		if !p.IsUpdate() {
			continue
		}
		if snap, ok := snapshots[strings.TrimSpace(p.ExistingTicket)]; ok {
			s := snap
			p.Snapshot = &s
		}
	}
}
