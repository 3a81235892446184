package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Strob0t/NexusPM/internal/adapter/postgres"
	"github.com/Strob0t/NexusPM/internal/config"
	"github.com/Strob0t/NexusPM/internal/port/kvstore"
	"github.com/Strob0t/NexusPM/internal/port/kvstore/kvstoretest"
)

var _ kvstore.Store = (*postgres.Store)(nil)

// setupStore connects to DATABASE_URL, runs migrations, and empties the table.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := config.Defaults().Postgres
	cfg.DSN = dsn
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE kv_entries`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	s := postgres.NewStore(pool)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCompliance(t *testing.T) {
	kvstoretest.Run(t, setupStore(t))
}

func TestSweep(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "checkpoint:p1", []byte("x"), 10*time.Millisecond)
	_ = s.Set(ctx, "project:p1", []byte("y"), 0)
	time.Sleep(50 * time.Millisecond)

	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept row, got %d", n)
	}
	if _, ok, _ := s.Get(ctx, "project:p1"); !ok {
		t.Fatal("expected durable entry to survive sweep")
	}
}

func TestMigrationVersion(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}
	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatal(err)
	}
	v, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	if v < 1 {
		t.Fatalf("expected version >= 1, got %d", v)
	}
}
