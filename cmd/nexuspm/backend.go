package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/NexusPM/internal/adapter/memkv"
	nxnats "github.com/Strob0t/NexusPM/internal/adapter/nats"
	"github.com/Strob0t/NexusPM/internal/adapter/natskv"
	"github.com/Strob0t/NexusPM/internal/adapter/postgres"
	"github.com/Strob0t/NexusPM/internal/adapter/sqlite"
	"github.com/Strob0t/NexusPM/internal/config"
	"github.com/Strob0t/NexusPM/internal/port/kvstore"
)

// backend is the opened kv store plus the optional NATS connection that
// either backs it or carries transition events.
type backend struct {
	name  string
	kv    kvstore.Store
	queue *nxnats.Queue
	stops []func()
}

// openBackend opens the configured kv store. Sweepers for expired records
// start here and stop in Close.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{name: cfg.Store.Backend}

	if cfg.Store.Backend == config.BackendNATS || cfg.NATS.PublishTransitions {
		q, err := nxnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		b.queue = q
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		mem := memkv.New()
		b.kv = mem
		b.stops = append(b.stops, mem.StartSweeper(cfg.Store.SweepInterval))

	case config.BackendNATS:
		kv, err := natskv.New(ctx, b.queue.JetStream(), natskv.Config{
			Bucket:          cfg.NATS.Bucket,
			EphemeralBucket: cfg.NATS.EphemeralBucket,
			EphemeralMaxAge: maxDuration(cfg.Store.CheckpointTTL, cfg.Store.TelemetryTTL, cfg.Store.HistoryTTL),
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("nats kv: %w", err)
		}
		b.kv = kv

	case config.BackendPostgres:
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		pg := postgres.NewStore(pool)
		b.kv = pg
		b.stops = append(b.stops, startSweeper("postgres", cfg.Store.SweepInterval, pg.Sweep))

	case config.BackendSQLite:
		lite, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		b.kv = lite
		b.stops = append(b.stops, startSweeper("sqlite", cfg.Store.SweepInterval, lite.Sweep))

	default:
		b.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	slog.Info("store opened", "backend", b.name)
	return b, nil
}

// Close stops the sweepers and releases the store and NATS connection.
func (b *backend) Close() {
	for _, stop := range b.stops {
		stop()
	}
	if b.kv != nil {
		if err := b.kv.Close(); err != nil {
			slog.Warn("store close failed", "backend", b.name, "error", err)
		}
	}
	if b.queue != nil {
		if err := b.queue.Drain(); err != nil {
			slog.Warn("nats drain failed", "error", err)
		}
	}
}

// startSweeper deletes expired rows of a SQL backend every interval.
func startSweeper(name string, interval time.Duration, sweep func(context.Context) (int64, error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sweep(ctx)
				if err != nil {
					slog.Warn("sweep failed", "backend", name, "error", err)
					continue
				}
				if n > 0 {
					slog.Debug("expired records swept", "backend", name, "count", n)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func maxDuration(ds ...time.Duration) time.Duration {
	var m time.Duration
	for _, d := range ds {
		m = max(m, d)
	}
	return m
}
