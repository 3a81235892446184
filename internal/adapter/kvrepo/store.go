// Package kvrepo implements database.Store on top of any kvstore backend
// (memory, NATS KV, PostgreSQL, SQLite).
package kvrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/NexusPM/internal/domain"
	"github.com/Strob0t/NexusPM/internal/domain/connection"
	"github.com/Strob0t/NexusPM/internal/domain/project"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/port/database"
	"github.com/Strob0t/NexusPM/internal/port/kvstore"
)

// MaxMessages is the number of chat messages kept per project.
const MaxMessages = 500

const lockStripes = 64

// swapAttempts bounds how often UpdateRun retries after losing a
// compare-and-swap to another writer.
const swapAttempts = 5

// TTLs are the lifetimes of ephemeral records. Zero means no expiry.
type TTLs struct {
	Checkpoint time.Duration
	Telemetry  time.Duration
	History    time.Duration
}

var _ database.Store = (*Store)(nil)

// Store maps domain records onto kv keys:
//
//	project:{id}
//	conn:{project}:{id}
//	run:{project}:{id}
//	telemetry:{project}:{run}:{nanos}{seq}
//	checkpoint:{project}
//	messages:{project}
//	last_processed:{project}
type Store struct {
	kv    kvstore.Store
	ttl   TTLs
	locks [lockStripes]sync.Mutex
	seq   atomic.Uint64
}

// New creates a Store over kv.
func New(kv kvstore.Store, ttl TTLs) *Store {
	return &Store{kv: kv, ttl: ttl}
}

func projectKey(id string) string { return "project:" + id }
func connKey(pid, id string) string { return "conn:" + pid + ":" + id }
func runKey(pid, id string) string { return "run:" + pid + ":" + id }
func telemetryPrefix(pid, rid string) string { return "telemetry:" + pid + ":" + rid + ":" }
func checkpointKey(pid string) string { return "checkpoint:" + pid }
func messagesKey(pid string) string { return "messages:" + pid }
func lastProcessedKey(pid string) string { return "last_processed:" + pid }

// --- helpers ---

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func scanJSON[T any](ctx context.Context, kv kvstore.Store, prefix string) ([]T, error) {
	entries, err := kv.Scan(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) lockFor(runID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(runID))
	return &s.locks[h.Sum32()%lockStripes]
}

// --- Projects ---

func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	projects, err := scanJSON[project.Project](ctx, s.kv, "project:")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	var p project.Project
	if err := s.getJSON(ctx, projectKey(id), &p); err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) SaveProject(ctx context.Context, p *project.Project) error {
	return s.setJSON(ctx, projectKey(p.ID), p, 0)
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if _, ok, err := s.kv.Get(ctx, projectKey(id)); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	} else if !ok {
		return fmt.Errorf("delete project %s: %w", id, domain.ErrNotFound)
	}
	return s.kv.Delete(ctx, projectKey(id))
}

// --- Connections ---

// connRecord carries the sealed token, which Connection hides from JSON.
type connRecord struct {
	connection.Connection
	Token []byte `json:"token,omitempty"`
}

func (rec *connRecord) toDomain() connection.Connection {
	c := rec.Connection
	c.EncryptedToken = rec.Token
	return c
}

func (s *Store) ListConnections(ctx context.Context, projectID string) ([]connection.Connection, error) {
	recs, err := scanJSON[connRecord](ctx, s.kv, "conn:"+projectID+":")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	out := make([]connection.Connection, len(recs))
	for i := range recs {
		out[i] = recs[i].toDomain()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetConnection(ctx context.Context, projectID, id string) (*connection.Connection, error) {
	var rec connRecord
	if err := s.getJSON(ctx, connKey(projectID, id), &rec); err != nil {
		return nil, fmt.Errorf("get connection %s: %w", id, err)
	}
	c := rec.toDomain()
	return &c, nil
}

func (s *Store) SaveConnection(ctx context.Context, c *connection.Connection) error {
	return s.setJSON(ctx, connKey(c.ProjectID, c.ID), connRecord{Connection: *c, Token: c.EncryptedToken}, 0)
}

func (s *Store) DeleteConnection(ctx context.Context, projectID, id string) error {
	key := connKey(projectID, id)
	if _, ok, err := s.kv.Get(ctx, key); err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	} else if !ok {
		return fmt.Errorf("delete connection %s: %w", id, domain.ErrNotFound)
	}
	return s.kv.Delete(ctx, key)
}

// --- Runs ---

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	return s.setJSON(ctx, runKey(r.ProjectID, r.ID), r, 0)
}

func (s *Store) GetRun(ctx context.Context, projectID, runID string) (*run.Run, error) {
	var r run.Run
	if err := s.getJSON(ctx, runKey(projectID, runID), &r); err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &r, nil
}

func (s *Store) ListRuns(ctx context.Context, projectID string) ([]run.Run, error) {
	runs, err := scanJSON[run.Run](ctx, s.kv, "run:"+projectID+":")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

// UpdateRun applies fn to the stored run. Writers in this process queue on
// a striped lock; writers in other processes sharing the backend are
// detected by compare-and-swap, and fn is rerun on the fresh record.
func (s *Store) UpdateRun(ctx context.Context, projectID, runID string, fn database.RunMutator) (*run.Run, error) {
	mu := s.lockFor(runID)
	mu.Lock()
	defer mu.Unlock()

	key := runKey(projectID, runID)
	for range swapAttempts {
		raw, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get run %s: %w", runID, err)
		}
		if !ok {
			return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
		}
		var r run.Run
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", runID, err)
		}
		if err := fn(&r); err != nil {
			return nil, err
		}
		r.Version++
		next, err := json.Marshal(&r)
		if err != nil {
			return nil, fmt.Errorf("encode run %s: %w", runID, err)
		}
		swapped, err := s.kv.CompareAndSwap(ctx, key, raw, next)
		if err != nil {
			return nil, fmt.Errorf("update run %s: %w", runID, err)
		}
		if swapped {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("run %s changed concurrently %d times: %w", runID, swapAttempts, domain.ErrConflict)
}

// --- Telemetry ---

func (s *Store) AppendTelemetry(ctx context.Context, projectID string, e run.TelemetryEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	key := fmt.Sprintf("%s%019d%06d", telemetryPrefix(projectID, e.RunID), e.Timestamp.UnixNano(), s.seq.Add(1)%1_000_000)
	return s.setJSON(ctx, key, e, s.ttl.Telemetry)
}

func (s *Store) ListTelemetry(ctx context.Context, projectID, runID string) ([]run.TelemetryEntry, error) {
	logs, err := scanJSON[run.TelemetryEntry](ctx, s.kv, telemetryPrefix(projectID, runID))
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	return logs, nil
}

// --- Checkpoints ---

func (s *Store) SaveCheckpoint(ctx context.Context, projectID string, cp run.Checkpoint) error {
	return s.setJSON(ctx, checkpointKey(projectID), cp, s.ttl.Checkpoint)
}

func (s *Store) GetCheckpoint(ctx context.Context, projectID string) (*run.Checkpoint, error) {
	var cp run.Checkpoint
	if err := s.getJSON(ctx, checkpointKey(projectID), &cp); err != nil {
		return nil, fmt.Errorf("get checkpoint %s: %w", projectID, err)
	}
	return &cp, nil
}

// --- Message history ---

// SaveMessages merges msgs into the stored history: duplicates by TS are
// dropped, the result is ordered oldest first and trimmed to the newest
// MaxMessages. It returns the stored count.
func (s *Store) SaveMessages(ctx context.Context, projectID string, msgs []signal.Message) (int, error) {
	existing, err := s.ListMessages(ctx, projectID)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing)+len(msgs))
	merged := make([]signal.Message, 0, len(existing)+len(msgs))
	for _, m := range append(existing, msgs...) {
		if _, dup := seen[m.TS]; dup {
			continue
		}
		seen[m.TS] = struct{}{}
		merged = append(merged, m)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Time() < merged[j].Time() })
	if len(merged) > MaxMessages {
		merged = merged[len(merged)-MaxMessages:]
	}
	if err := s.setJSON(ctx, messagesKey(projectID), merged, s.ttl.History); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// ListMessages returns the stored history, oldest first.
func (s *Store) ListMessages(ctx context.Context, projectID string) ([]signal.Message, error) {
	var msgs []signal.Message
	err := s.getJSON(ctx, messagesKey(projectID), &msgs)
	if errors.Is(err, domain.ErrNotFound) {
		return []signal.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// LastProcessed returns the newest processed message TS, or "" if none.
func (s *Store) LastProcessed(ctx context.Context, projectID string) (string, error) {
	data, ok, err := s.kv.Get(ctx, lastProcessedKey(projectID))
	if err != nil {
		return "", fmt.Errorf("last processed: %w", err)
	}
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) SetLastProcessed(ctx context.Context, projectID, ts string) error {
	if err := s.kv.Set(ctx, lastProcessedKey(projectID), []byte(ts), s.ttl.History); err != nil {
		return fmt.Errorf("set last processed: %w", err)
	}
	return nil
}

// --- Admin ---

func (s *Store) Flush(ctx context.Context) (int, error) {
	entries, err := s.kv.Scan(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("flush scan: %w", err)
	}
	n := 0
	for _, e := range entries {
		if err := s.kv.Delete(ctx, e.Key); err != nil {
			return n, fmt.Errorf("flush %s: %w", e.Key, err)
		}
		n++
	}
	return n, nil
}
