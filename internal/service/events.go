package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/NexusPM/internal/domain/event"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/port/broadcast"
	"github.com/Strob0t/NexusPM/internal/port/database"
)

// EventPublisher emits pulses to live observers and writes telemetry to the
// store before broadcasting it.
type EventPublisher struct {
	bus   broadcast.Broadcaster
	store database.Store
	clock clock
}

// NewEventPublisher creates an EventPublisher.
func NewEventPublisher(bus broadcast.Broadcaster, store database.Store) *EventPublisher {
	return &EventPublisher{bus: bus, store: store}
}

// Pulse broadcasts an agent pulse. Pulses are never persisted.
func (p *EventPublisher) Pulse(ctx context.Context, projectID string, pulse event.Pulse) {
	if pulse.ID == "" {
		pulse.ID = uuid.NewString()
	}
	if pulse.Timestamp.IsZero() {
		pulse.Timestamp = p.clock.now()
	}
	p.bus.BroadcastEvent(ctx, projectID, broadcast.EventAgentPulse, pulse)
}

// Log appends a telemetry entry for a run and broadcasts it.
func (p *EventPublisher) Log(ctx context.Context, projectID, runID string, stage run.Stage, level run.Level, msg string) {
	e := run.TelemetryEntry{RunID: runID, Stage: stage, Message: msg, Level: level, Timestamp: p.clock.now()}
	if err := p.store.AppendTelemetry(ctx, projectID, e); err != nil {
		slog.Error("append telemetry failed", "project_id", projectID, "run_id", runID, "stage", stage, "error", err)
	}
	p.bus.BroadcastEvent(ctx, projectID, broadcast.EventTelemetryLog, e)
}

// RunUpdated broadcasts the current state of a run.
func (p *EventPublisher) RunUpdated(ctx context.Context, r *run.Run) {
	p.bus.BroadcastEvent(ctx, r.ProjectID, broadcast.EventRunUpdate, r)
}
