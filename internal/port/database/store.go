// Package database defines the persistence port for projects, connections,
// runs and their ephemeral records.
package database

import (
	"context"

	"github.com/Strob0t/NexusPM/internal/domain/connection"
	"github.com/Strob0t/NexusPM/internal/domain/project"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
)

// RunMutator edits a run loaded under the run's lock. Returning an error
// aborts the write.
type RunMutator func(r *run.Run) error

// Store is the port interface for persisted state.
type Store interface {
	// Projects
	ListProjects(ctx context.Context) ([]project.Project, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	SaveProject(ctx context.Context, p *project.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Connections. EncryptedToken is persisted alongside the record.
	ListConnections(ctx context.Context, projectID string) ([]connection.Connection, error)
	GetConnection(ctx context.Context, projectID, id string) (*connection.Connection, error)
	SaveConnection(ctx context.Context, c *connection.Connection) error
	DeleteConnection(ctx context.Context, projectID, id string) error

	// Runs
	CreateRun(ctx context.Context, r *run.Run) error
	GetRun(ctx context.Context, projectID, runID string) (*run.Run, error)
	ListRuns(ctx context.Context, projectID string) ([]run.Run, error)
	// UpdateRun reloads the run, applies fn and saves it with an incremented
	// Version. Concurrent updates of the same run are serialized.
	UpdateRun(ctx context.Context, projectID, runID string, fn RunMutator) (*run.Run, error)

	// Telemetry is an append-only, TTL-bounded log per run.
	AppendTelemetry(ctx context.Context, projectID string, e run.TelemetryEntry) error
	ListTelemetry(ctx context.Context, projectID, runID string) ([]run.TelemetryEntry, error)

	// Checkpoints (one per project, TTL-bounded)
	SaveCheckpoint(ctx context.Context, projectID string, cp run.Checkpoint) error
	GetCheckpoint(ctx context.Context, projectID string) (*run.Checkpoint, error)

	// Message history
	SaveMessages(ctx context.Context, projectID string, msgs []signal.Message) (int, error)
	ListMessages(ctx context.Context, projectID string) ([]signal.Message, error)
	LastProcessed(ctx context.Context, projectID string) (string, error)
	SetLastProcessed(ctx context.Context, projectID, ts string) error

	// Flush deletes every key and returns how many were removed.
	Flush(ctx context.Context) (int, error)
}
