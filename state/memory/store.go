// Package memory provides an in-memory state.Store implementation for unit
// testing and single-process use.
package memory

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/cadence/state"
)

// compile-time interface checks.
var (
	_ state.Store   = (*Store)(nil)
	_ state.Sweeper = (*Store)(nil)
)

type record struct {
	value     json.RawMessage
	version   uint64
	expiresAt time.Time // zero means no expiry
}

// Store is an in-memory implementation of state.Store.
// Expired entries are reaped lazily on access.
type Store struct {
	mu      sync.Mutex
	records map[string]*record
	closed  bool

	// seq issues versions store-wide so an etag captured before a
	// delete/recreate cycle can never match the recreated entry.
	seq uint64

	// now is swappable in tests to control TTL expiry.
	now func() time.Time
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string]*record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the store's clock. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns the entry at key, or state.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (*state.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, state.ErrStoreClosed
	}

	rec, ok := s.live(key)
	if !ok {
		return nil, state.ErrNotFound
	}

	return &state.Entry{
		Key:   key,
		Value: rec.value,
		ETag:  etag(rec.version),
	}, nil
}

// Set writes value at key, honoring CAS semantics per opts.ExpectedETag.
func (s *Store) Set(_ context.Context, key string, value []byte, opts state.SetOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", state.ErrStoreClosed
	}

	rec, exists := s.live(key)

	switch opts.ExpectedETag {
	case "":
		// Unconditional write.
	case state.ETagAbsent:
		if exists {
			return "", state.ErrConflict
		}
	default:
		if !exists || etag(rec.version) != opts.ExpectedETag {
			return "", state.ErrConflict
		}
	}

	s.seq++
	version := s.seq

	next := &record{
		value:   append(json.RawMessage(nil), value...),
		version: version,
	}
	if opts.TTL > 0 {
		next.expiresAt = s.now().Add(opts.TTL)
	}
	s.records[key] = next

	return etag(version), nil
}

// Delete removes the entry at key. Idempotent.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return state.ErrStoreClosed
	}

	delete(s.records, key)
	return nil
}

// SweepExpired drops every expired entry. Implements state.Sweeper; the
// periodic cleanup job calls this since lazy reaping only covers keys that
// are read again.
func (s *Store) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, state.ErrStoreClosed
	}

	now := s.now()
	dropped := 0
	for key, rec := range s.records {
		if !rec.expiresAt.IsZero() && now.After(rec.expiresAt) {
			delete(s.records, key)
			dropped++
		}
	}
	return dropped, nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return state.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// live returns the record at key if present and unexpired, reaping it otherwise.
// Caller must hold s.mu.
func (s *Store) live(key string) (*record, bool) {
	rec, ok := s.records[key]
	if !ok {
		return nil, false
	}
	if !rec.expiresAt.IsZero() && !s.now().Before(rec.expiresAt) {
		delete(s.records, key)
		return nil, false
	}
	return rec, true
}

func etag(version uint64) string {
	return "v" + strconv.FormatUint(version, 10)
}
