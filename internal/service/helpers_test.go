package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/NexusPM/internal/adapter/kvrepo"
	"github.com/Strob0t/NexusPM/internal/adapter/memkv"
	"github.com/Strob0t/NexusPM/internal/domain/connection"
	"github.com/Strob0t/NexusPM/internal/domain/fusion"
	"github.com/Strob0t/NexusPM/internal/domain/project"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
	"github.com/Strob0t/NexusPM/internal/port/pmprovider"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() clock {
	return func() time.Time { return testNow }
}

// --- stubProvider ---

type stubProvider struct {
	mu         sync.Mutex
	tickets    []ticket.Ticket
	created    []ticket.CreateRequest
	updates    map[string][]ticket.Update
	listCalls  int
	createErr  map[string]error
	updateErr  map[string]error
	nextKeyNum int
}

var _ pmprovider.Provider = (*stubProvider)(nil)

func newStubProvider(tickets ...ticket.Ticket) *stubProvider {
	return &stubProvider{
		tickets:    tickets,
		updates:    make(map[string][]ticket.Update),
		createErr:  make(map[string]error),
		updateErr:  make(map[string]error),
		nextKeyNum: 100,
	}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Capabilities() pmprovider.Capabilities {
	return pmprovider.Capabilities{ListItems: true, GetItem: true, CreateItem: true, UpdateItem: true}
}

func (p *stubProvider) Configured() bool { return true }

func (p *stubProvider) ListItems(_ context.Context, _ string) ([]ticket.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	out := make([]ticket.Ticket, len(p.tickets))
	copy(out, p.tickets)
	return out, nil
}

func (p *stubProvider) GetItem(_ context.Context, key string) (*ticket.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.tickets {
		if p.tickets[i].Key == key {
			t := p.tickets[i]
			return &t, nil
		}
	}
	return nil, errors.New("not found")
}

func (p *stubProvider) CreateItem(_ context.Context, projectKey string, req ticket.CreateRequest) (*ticket.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, req)
	if err := p.createErr[req.Summary]; err != nil {
		return nil, err
	}
	p.nextKeyNum++
	return &ticket.Ticket{Key: fmt.Sprintf("%s-%d", projectKey, p.nextKeyNum), Summary: req.Summary}, nil
}

func (p *stubProvider) UpdateItem(_ context.Context, key string, upd ticket.Update) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates[key] = append(p.updates[key], upd)
	return p.updateErr[key]
}

func (p *stubProvider) writes() (creates, updates int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.updates {
		updates += len(u)
	}
	return len(p.created), updates
}

// --- stubBus ---

type busEvent struct {
	projectID string
	eventType string
	payload   any
}

type stubBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *stubBus) BroadcastEvent(_ context.Context, projectID, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{projectID, eventType, payload})
}

func (b *stubBus) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

func (b *stubBus) all(eventType string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, e := range b.events {
		if e.eventType == eventType {
			out = append(out, e.payload)
		}
	}
	return out
}

// --- stubOracle ---

type stubOracle struct {
	result *fusion.Result
	err    error
	calls  int
}

func (o *stubOracle) Name() string { return "stub-oracle" }

func (o *stubOracle) Reason(_ context.Context, _ fusion.Input) (*fusion.Result, error) {
	o.calls++
	return o.result, o.err
}

// --- stubChat ---

type stubChat struct {
	messages []signal.Message
	err      error
}

func (c *stubChat) FetchMessages(_ context.Context, _ string, _ int) ([]signal.Message, error) {
	return c.messages, c.err
}

func (c *stubChat) Configured() bool { return true }

// --- stubChecker ---

type stubChecker struct {
	who string
	err error
}

func (c *stubChecker) Check(_ context.Context) (string, error) { return c.who, c.err }

func (c *stubChecker) Configured() bool { return true }

// --- harness ---

type harness struct {
	store       *kvrepo.Store
	bus         *stubBus
	provider    *stubProvider
	events      *EventPublisher
	writer      *RunWriter
	projects    *ProjectService
	connections *ConnectionService
	history     *HistoryService
	tickets     *TicketCatalog
	fusion      *FusionService
	approvals   *ApprovalService
}

func newHarness(t *testing.T, provider *stubProvider, oracle *stubOracle) *harness {
	t.Helper()
	store := kvrepo.New(memkv.New(), kvrepo.TTLs{Checkpoint: time.Hour, Telemetry: time.Hour, History: time.Hour})
	bus := &stubBus{}

	key, err := connection.DeriveKey("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{store: store, bus: bus, provider: provider}
	h.events = NewEventPublisher(bus, store)
	h.writer = NewRunWriter(store, BroadcastSink(h.events))
	h.projects = NewProjectService(store)
	h.connections = NewConnectionService(store, key, DefaultConnections("", "", "", ""), nil)
	h.projects.SetConnectionSeeder(h.connections)
	h.history = NewHistoryService(store)
	h.tickets = NewTicketCatalog(provider, "PROJ", nil, time.Minute)
	if oracle != nil {
		h.fusion = NewFusionService(oracle)
	} else {
		h.fusion = NewFusionService(nil)
	}
	h.approvals = NewApprovalService(store, h.writer, h.events, h.tickets)
	return h
}

func (h *harness) orchestrator(chat *stubChat) *Orchestrator {
	src := Sources{ChatChannel: "general"}
	if chat != nil {
		src.Chat = chat
	}
	return NewOrchestrator(h.store, h.writer, h.events, h.projects, h.history, h.tickets, h.fusion, src)
}

func (h *harness) project(t *testing.T) *project.Project {
	t.Helper()
	p, err := h.projects.Create(context.Background(), project.CreateRequest{Name: "Acme", Description: "test project"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}
