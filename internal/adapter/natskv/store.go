// Package natskv implements kvstore.Store on NATS JetStream key/value buckets.
package natskv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/NexusPM/internal/port/kvstore"
)

// Config names the buckets used by the store.
type Config struct {
	// Bucket holds entries written without a TTL (projects, runs).
	Bucket string
	// EphemeralBucket holds entries written with a TTL. Its MaxAge bounds
	// how long expired entries linger before JetStream drops them.
	EphemeralBucket string
	EphemeralMaxAge time.Duration
}

// Store keeps durable and expiring entries in two JetStream KV buckets.
// NATS keys cannot contain ':', so key segments are mapped to '.'.
// Each value carries its own expiry so per-key TTLs shorter than the
// bucket MaxAge are honored on read.
type Store struct {
	durable   jetstream.KeyValue
	ephemeral jetstream.KeyValue
	now       func() time.Time
}

// New creates or updates both buckets and returns a Store.
func New(ctx context.Context, js jetstream.JetStream, cfg Config) (*Store, error) {
	durable, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "nexuspm durable records",
	})
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", cfg.Bucket, err)
	}
	ephemeral, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.EphemeralBucket,
		Description: "nexuspm expiring records",
		TTL:         cfg.EphemeralMaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", cfg.EphemeralBucket, err)
	}
	return &Store{durable: durable, ephemeral: ephemeral, now: time.Now}, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k := encodeKey(key)
	for _, kv := range []jetstream.KeyValue{s.durable, s.ephemeral} {
		val, ok, err := s.get(ctx, kv, k)
		if err != nil || ok {
			return val, ok, err
		}
	}
	return nil, false, nil
}

func (s *Store) get(ctx context.Context, kv jetstream.KeyValue, key string) ([]byte, bool, error) {
	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	val, expiresAt, err := unwrap(entry.Value())
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value under key. Entries with ttl > 0 go to the ephemeral bucket.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	kv := s.durable
	var expiresAt time.Time
	if ttl > 0 {
		kv = s.ephemeral
		expiresAt = s.now().Add(ttl)
	}
	if _, err := kv.Put(ctx, encodeKey(key), wrap(value, expiresAt)); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Delete removes key from both buckets.
func (s *Store) Delete(ctx context.Context, key string) error {
	k := encodeKey(key)
	for _, kv := range []jetstream.KeyValue{s.durable, s.ephemeral} {
		if err := kv.Delete(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("kv delete %s: %w", key, err)
		}
	}
	return nil
}

// CompareAndSwap updates key at the revision it was read at, so a write by
// another process between the read and the update makes the swap fail.
func (s *Store) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	k := encodeKey(key)
	for _, kv := range []jetstream.KeyValue{s.durable, s.ephemeral} {
		entry, err := kv.Get(ctx, k)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
				continue
			}
			return false, fmt.Errorf("kv get %s: %w", key, err)
		}
		val, expiresAt, err := unwrap(entry.Value())
		if err != nil {
			return false, fmt.Errorf("kv get %s: %w", key, err)
		}
		if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
			return false, nil
		}
		if !bytes.Equal(val, prev) {
			return false, nil
		}
		if _, err := kv.Update(ctx, k, wrap(next, expiresAt), entry.Revision()); err != nil {
			if errors.Is(err, jetstream.ErrKeyExists) {
				return false, nil
			}
			return false, fmt.Errorf("kv update %s: %w", key, err)
		}
		return true, nil
	}
	return false, nil
}

// Scan lists keys in both buckets and returns the live entries under prefix.
func (s *Store) Scan(ctx context.Context, prefix string) ([]kvstore.Entry, error) {
	out := make([]kvstore.Entry, 0)
	for _, kv := range []jetstream.KeyValue{s.durable, s.ephemeral} {
		keys, err := listKeys(ctx, kv)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			key := decodeKey(k)
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			val, ok, err := s.get(ctx, kv, k)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, kvstore.Entry{Key: key, Value: val})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close is a no-op; the owning connection is closed by the caller.
func (s *Store) Close() error { return nil }

func listKeys(ctx context.Context, kv jetstream.KeyValue) ([]string, error) {
	lister, err := kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv list keys: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	return keys, nil
}

func encodeKey(key string) string { return strings.ReplaceAll(key, ":", ".") }
func decodeKey(key string) string { return strings.ReplaceAll(key, ".", ":") }

// wrap prefixes value with its expiry as big-endian unix nanoseconds (0 = never).
func wrap(value []byte, expiresAt time.Time) []byte {
	buf := make([]byte, 8+len(value))
	if !expiresAt.IsZero() {
		binary.BigEndian.PutUint64(buf, uint64(expiresAt.UnixNano()))
	}
	copy(buf[8:], value)
	return buf
}

func unwrap(raw []byte) ([]byte, time.Time, error) {
	if len(raw) < 8 {
		return nil, time.Time{}, errors.New("short value envelope")
	}
	var expiresAt time.Time
	if n := binary.BigEndian.Uint64(raw[:8]); n != 0 {
		expiresAt = time.Unix(0, int64(n))
	}
	return raw[8:], expiresAt, nil
}
