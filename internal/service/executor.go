package service

import (
	"context"
	"strings"

	"github.com/Strob0t/NexusPM/internal/domain/fusion"
	"github.com/Strob0t/NexusPM/internal/domain/proposal"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
	"github.com/Strob0t/NexusPM/internal/port/pmprovider"
)

var doneKeywords = []string{"done", "complete", "finished", "resolved", "close"}

// executor realizes proposals against the ticketing connector.
type executor struct {
	provider   pmprovider.Provider
	projectKey string
}

func (e executor) create(ctx context.Context, p proposal.Proposal) (*ticket.Ticket, error) {
	title := p.Title
	if title == "" {
		title = "New Issue"
	}
	priority := string(p.Priority)
	if priority == "" {
		priority = string(proposal.PriorityMedium)
	}
	return e.provider.CreateItem(ctx, e.projectKey, ticket.CreateRequest{
		Summary:     title,
		Description: p.Description,
		Priority:    priority,
		IssueType:   "Task",
	})
}

// changeUpdate maps proposal changes onto tracker fields. Only the
// whitelisted fields are carried over.
func changeUpdate(changes []proposal.Change, fields ...string) ticket.Update {
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}
	var upd ticket.Update
	for _, c := range changes {
		field := strings.ToLower(strings.TrimSpace(c.Field))
		if !allowed[field] {
			continue
		}
		v := c.New
		switch field {
		case "summary":
			upd.Summary = &v
		case "priority":
			upd.Priority = &v
		case "description":
			upd.Description = &v
		case "status":
			upd.Status = &v
		}
	}
	return upd
}

func updateFields(u ticket.Update) map[string]string {
	out := make(map[string]string)
	if u.Summary != nil {
		out["summary"] = *u.Summary
	}
	if u.Priority != nil {
		out["priority"] = *u.Priority
	}
	if u.Description != nil {
		out["description"] = *u.Description
	}
	if u.Status != nil {
		out["status"] = *u.Status
	}
	return out
}

// bulk applies one diff strictly as drafted: creates create, updates update
// the referenced ticket with summary and priority changes. A nil change
// means nothing was sent to the tracker.
func (e executor) bulk(ctx context.Context, d *run.Diff) (*run.ExecutedChange, *run.ExecutionResult, error) {
	p := d.Proposal
	switch p.Type {
	case proposal.TypeCreate:
		t, err := e.create(ctx, p)
		if err != nil {
			return nil, &run.ExecutionResult{Action: run.ActionCreate, Title: p.Title, Error: err.Error()}, err
		}
		return &run.ExecutedChange{DiffID: d.ID, Type: "create", Title: p.Title, Key: t.Key, Status: "created"},
			&run.ExecutionResult{Action: run.ActionCreate, Key: t.Key, Title: p.Title, Success: true}, nil

	case proposal.TypeUpdate:
		upd := changeUpdate(p.Changes, "summary", "priority")
		if p.ExistingTicket == "" || upd.IsEmpty() {
			return nil, &run.ExecutionResult{Action: run.ActionSkip, Key: p.ExistingTicket, Title: p.Title, Reason: "no applicable field changes", Success: true}, nil
		}
		res := &run.ExecutionResult{Action: run.ActionUpdate, Key: p.ExistingTicket, Title: p.Title, Updates: updateFields(upd)}
		if err := e.provider.UpdateItem(ctx, p.ExistingTicket, upd); err != nil {
			res.Error = err.Error()
			return nil, res, err
		}
		res.Success = true
		return &run.ExecutedChange{DiffID: d.ID, Type: "update", Title: p.Title, Key: p.ExistingTicket, Status: "updated"}, res, nil
	}
	return nil, &run.ExecutionResult{Action: run.ActionSkip, Title: p.Title, Reason: "unknown proposal type", Success: true}, nil
}

// analyze re-matches a single proposal against the known tickets and
// executes the decision: an explicit update, closing a ticket the proposal
// reports as done, updating a ticket sharing at least two content words
// with the title, or creating a new ticket.
func (e executor) analyze(ctx context.Context, p proposal.Proposal, known []ticket.Ticket) run.ExecutionResult {
	if p.IsUpdate() && p.ExistingTicket != "" {
		upd := changeUpdate(p.Changes, "summary", "priority", "description", "status")
		if !upd.IsEmpty() {
			res := run.ExecutionResult{Action: run.ActionUpdate, Key: p.ExistingTicket, Title: p.Title, Updates: updateFields(upd)}
			return finish(res, e.provider.UpdateItem(ctx, p.ExistingTicket, upd))
		}
	}

	title := strings.ToLower(p.Title)
	desc := strings.ToLower(p.Description)

	if t := doneMatch(title, desc, known); t != nil {
		done := "Done"
		res := run.ExecutionResult{Action: run.ActionMarkDone, Key: t.Key, Title: t.Summary, Updates: map[string]string{"status": done}}
		return finish(res, e.provider.UpdateItem(ctx, t.Key, ticket.Update{Status: &done}))
	}

	if t := overlapMatch(p.Title, known); t != nil {
		summary := p.Title
		upd := ticket.Update{Summary: &summary}
		if p.Priority != "" {
			priority := string(p.Priority)
			upd.Priority = &priority
		}
		if p.Description != "" {
			description := p.Description
			upd.Description = &description
		}
		res := run.ExecutionResult{
			Action:  run.ActionUpdate,
			Key:     t.Key,
			Title:   p.Title,
			Updates: updateFields(upd),
			Reason:  "Matched with existing ticket " + t.Key,
		}
		return finish(res, e.provider.UpdateItem(ctx, t.Key, upd))
	}

	res := run.ExecutionResult{Action: run.ActionCreate, Title: p.Title}
	t, err := e.create(ctx, p)
	if err == nil {
		res.Key = t.Key
	}
	res = finish(res, err)
	res.Success = res.Success && res.Key != ""
	return res
}

func finish(res run.ExecutionResult, err error) run.ExecutionResult {
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

// doneMatch finds the first ticket whose summary contains one of the first
// three title words longer than three characters, when the proposal text
// reports completion.
func doneMatch(title, desc string, known []ticket.Ticket) *ticket.Ticket {
	reportsDone := false
	for _, kw := range doneKeywords {
		if strings.Contains(title, kw) || strings.Contains(desc, kw) {
			reportsDone = true
			break
		}
	}
	if !reportsDone {
		return nil
	}

	words := strings.Fields(title)
	words = words[:min(3, len(words))]
	for i := range known {
		summary := strings.ToLower(known[i].Summary)
		for _, w := range words {
			if len(w) > 3 && strings.Contains(summary, w) {
				return &known[i]
			}
		}
	}
	return nil
}

// overlapMatch finds the first ticket sharing at least two content words
// with title.
func overlapMatch(title string, known []ticket.Ticket) *ticket.Ticket {
	words := fusion.ContentWords(title)
	for i := range known {
		common := 0
		for w := range fusion.ContentWords(known[i].Summary) {
			if _, ok := words[w]; ok {
				common++
			}
		}
		if common >= 2 {
			return &known[i]
		}
	}
	return nil
}
