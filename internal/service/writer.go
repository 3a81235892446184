package service

import (
	"context"
	"encoding/json"
	"log/slog"

	nxotel "github.com/Strob0t/NexusPM/internal/adapter/otel"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/port/database"
	"github.com/Strob0t/NexusPM/internal/port/messagequeue"
)

// TransitionSink consumes a stage transition after it was persisted.
type TransitionSink func(ctx context.Context, t run.Transition, r *run.Run)

// RunWriter is the single writer of run state. Every stage transition is
// applied under the store's per-run lock and then handed to the sinks.
type RunWriter struct {
	store database.Store
	sinks []TransitionSink
}

// NewRunWriter creates a RunWriter with the given sinks.
func NewRunWriter(store database.Store, sinks ...TransitionSink) *RunWriter {
	return &RunWriter{store: store, sinks: sinks}
}

// AddSink registers another sink.
func (w *RunWriter) AddSink(s TransitionSink) {
	w.sinks = append(w.sinks, s)
}

// Apply persists t and fans it out. Rejected transitions reach no sink.
func (w *RunWriter) Apply(ctx context.Context, t run.Transition) (*run.Run, error) {
	r, _, err := w.ApplyWith(ctx, t.ProjectID, t.RunID, func(*run.Run) (run.Transition, error) {
		return t, nil
	})
	return r, err
}

// ApplyWith builds the transition from the freshly loaded run while holding
// the run's lock, so build observes every earlier write.
func (w *RunWriter) ApplyWith(ctx context.Context, projectID, runID string, build func(r *run.Run) (run.Transition, error)) (*run.Run, run.Transition, error) {
	var t run.Transition
	r, err := w.store.UpdateRun(ctx, projectID, runID, func(r *run.Run) error {
		var err error
		if t, err = build(r); err != nil {
			return err
		}
		return r.Apply(t)
	})
	if err != nil {
		return nil, t, err
	}
	for _, sink := range w.sinks {
		sink(ctx, t, r)
	}
	return r, t, nil
}

// BroadcastSink pushes the updated run to live observers.
func BroadcastSink(events *EventPublisher) TransitionSink {
	return func(ctx context.Context, _ run.Transition, r *run.Run) {
		events.RunUpdated(ctx, r)
	}
}

// QueueSink publishes every transition on runs.transition.<project>.
func QueueSink(q messagequeue.Queue) TransitionSink {
	return func(ctx context.Context, t run.Transition, _ *run.Run) {
		data, err := json.Marshal(t)
		if err != nil {
			slog.Error("marshal transition failed", "run_id", t.RunID, "error", err)
			return
		}
		if err := q.Publish(ctx, messagequeue.TransitionSubject(t.ProjectID), data); err != nil {
			slog.Warn("publish transition failed", "project_id", t.ProjectID, "run_id", t.RunID, "error", err)
		}
	}
}

// MetricsSink counts finished runs.
func MetricsSink(m *nxotel.Metrics) TransitionSink {
	return func(ctx context.Context, _ run.Transition, r *run.Run) {
		if r.Terminal() {
			m.RunFinished(ctx, r.Status == run.StatusFailed)
		}
	}
}
