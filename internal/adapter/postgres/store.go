package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/NexusPM/internal/port/kvstore"
)

// Store keeps entries in the kv_entries table. Expired rows are invisible to
// reads and removed by Sweep.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries
		 WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap updates the row only while its value still equals prev.
func (s *Store) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE kv_entries SET value = $3
		 WHERE key = $1 AND value = $2 AND (expires_at IS NULL OR expires_at > now())`,
		key, prev, next)
	if err != nil {
		return false, fmt.Errorf("compare and swap %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Scan returns live entries whose key starts with prefix, ordered by key.
func (s *Store) Scan(ctx context.Context, prefix string) ([]kvstore.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM kv_entries
		 WHERE starts_with(key, $1) AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY key COLLATE "C"`, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	defer rows.Close()

	entries := make([]kvstore.Entry, 0)
	for rows.Next() {
		var e kvstore.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", prefix, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sweep deletes expired rows and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
