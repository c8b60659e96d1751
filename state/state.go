// Package state defines the shared key-value state layer used for caching,
// dedup markers, and rate limit counters.
//
// The store is the only shared mutable resource between service instances.
// There is deliberately no in-process cache on top: every call crosses to the
// backend so multiple instances observe the same state.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key has no entry (or it expired).
	ErrNotFound = errors.New("cadence: state entry not found")

	// ErrConflict is returned when a Set carries a stale expected etag.
	ErrConflict = errors.New("cadence: etag conflict")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("cadence: state store is closed")
)

// ETagAbsent is passed as SetOptions.ExpectedETag for create-only writes:
// the set succeeds only if the key does not exist yet.
const ETagAbsent = "-"

// Entry is a generic cached value with its concurrency token.
type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`

	// ETag is an opaque version token. A Set carrying a stale ETag is
	// rejected with ErrConflict.
	ETag string `json:"etag"`
}

// SetOptions configures a Set call.
type SetOptions struct {
	// TTL expires the entry automatically. Zero means no expiry.
	TTL time.Duration

	// ExpectedETag enables compare-and-swap: the write succeeds only if the
	// stored etag matches. Empty means unconditional (last-write-wins).
	// ETagAbsent means the key must not exist.
	ExpectedETag string
}

// Store is the typed client against a pluggable key-value backend.
type Store interface {
	// Get returns the entry at key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set writes value at key and returns the new etag. Returns
	// ErrConflict when opts.ExpectedETag is stale.
	Set(ctx context.Context, key string, value []byte, opts SetOptions) (string, error)

	// Delete removes the entry at key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Sweeper is an optional interface for backends that need explicit
// collection of expired entries. Backends with native TTL expiry, like
// Redis, do not implement it.
type Sweeper interface {
	// SweepExpired removes expired entries and returns how many were dropped.
	SweepExpired(ctx context.Context) (int, error)
}

// GetJSON reads the entry at key and unmarshals its value into dest.
func GetJSON(ctx context.Context, s Store, key string, dest any) (etag string, err error) {
	entry, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return "", err
	}
	return entry.ETag, nil
}

// SetJSON marshals value and writes it at key.
func SetJSON(ctx context.Context, s Store, key string, value any, opts SetOptions) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return s.Set(ctx, key, raw, opts)
}
