// Package ratelimit implements fixed-window rate limiting on top of the
// shared state store, so the limit holds across horizontally scaled
// service instances.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/xraph/cadence/state"
)

// ErrRateLimited is returned by callers that surface a denied Allow as an
// error instead of a boolean.
var ErrRateLimited = errors.New("cadence: rate limit exceeded")

// ErrInvalidWindow is returned when the window is shorter than the limiter's
// one-second resolution.
var ErrInvalidWindow = errors.New("cadence: rate limit window must be at least one second")

// maxCASAttempts bounds the increment retry loop under contention.
// When exhausted the limiter fails closed: the request is denied rather than
// spinning on a hot counter.
const maxCASAttempts = 4

// Limiter counts events in contiguous, non-overlapping time windows.
type Limiter struct {
	store state.Store

	// now is swappable in tests to pin the window.
	now func() time.Time
}

// New creates a rate limiter over the given state store.
func New(store state.Store) *Limiter {
	return &Limiter{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the limiter's clock. Test hook.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

// Allow checks and increments the counter for (action, owner) in the current
// window. Returns false when the limit is exhausted, the window counter is
// too contended, or the store is unreachable. Denial is the safe side.
// A limit of 0 or less means unlimited.
func (l *Limiter) Allow(ctx context.Context, action, ownerID string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	if window < time.Second {
		return false, ErrInvalidWindow
	}

	windowID := l.now().Unix() / int64(window/time.Second)
	key := state.RateLimitKey(action, ownerID, windowID)

	// Stale windows self-expire instead of accumulating.
	ttl := 2 * window

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		entry, err := l.store.Get(ctx, key)

		switch {
		case errors.Is(err, state.ErrNotFound):
			// First request in a new window: create-only, count starts at 1.
			_, setErr := l.store.Set(ctx, key, countValue(1), state.SetOptions{
				TTL:          ttl,
				ExpectedETag: state.ETagAbsent,
			})
			if setErr == nil {
				return true, nil
			}
			if errors.Is(setErr, state.ErrConflict) {
				continue // another instance created the window; re-read
			}
			return false, setErr

		case err != nil:
			return false, err
		}

		count, parseErr := parseCount(entry.Value)
		if parseErr != nil {
			return false, parseErr
		}
		if count >= limit {
			return false, nil
		}

		_, setErr := l.store.Set(ctx, key, countValue(count+1), state.SetOptions{
			TTL:          ttl,
			ExpectedETag: entry.ETag,
		})
		if setErr == nil {
			return true, nil
		}
		if errors.Is(setErr, state.ErrConflict) {
			continue // lost the race; re-read and retry
		}
		return false, setErr
	}

	// Contention budget exhausted: fail closed.
	return false, nil
}

// Reset clears the counter for (action, owner) in the current window.
func (l *Limiter) Reset(ctx context.Context, action, ownerID string, window time.Duration) error {
	if window < time.Second {
		return ErrInvalidWindow
	}
	windowID := l.now().Unix() / int64(window/time.Second)
	return l.store.Delete(ctx, state.RateLimitKey(action, ownerID, windowID))
}

func countValue(n int) []byte {
	return []byte(strconv.Itoa(n))
}

func parseCount(raw json.RawMessage) (int, error) {
	return strconv.Atoi(string(raw))
}
