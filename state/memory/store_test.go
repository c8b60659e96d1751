package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/cadence/state"
	"github.com/xraph/cadence/state/memory"
)

func TestGetMissing(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	if !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("Get missing key: got %v, want ErrNotFound", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	etag, err := s.Set(ctx, "k", []byte(`{"n":1}`), state.SetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if etag == "" {
		t.Fatal("Set returned empty etag")
	}

	entry, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(entry.Value) != `{"n":1}` {
		t.Fatalf("value = %s", entry.Value)
	}
	if entry.ETag != etag {
		t.Fatalf("etag = %q, want %q", entry.ETag, etag)
	}
}

func TestETagAdvancesPerWrite(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	first, err := s.Set(ctx, "k", []byte(`1`), state.SetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Set(ctx, "k", []byte(`2`), state.SetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("etag did not advance: %q", first)
	}
}

func TestCreateOnly(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if _, err := s.Set(ctx, "k", []byte(`1`), state.SetOptions{ExpectedETag: state.ETagAbsent}); err != nil {
		t.Fatalf("create-only on absent key: %v", err)
	}

	_, err := s.Set(ctx, "k", []byte(`2`), state.SetOptions{ExpectedETag: state.ETagAbsent})
	if !errors.Is(err, state.ErrConflict) {
		t.Fatalf("create-only on existing key: got %v, want ErrConflict", err)
	}
}

func TestCompareAndSwap(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	etag, err := s.Set(ctx, "k", []byte(`1`), state.SetOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// Matching etag wins.
	next, err := s.Set(ctx, "k", []byte(`2`), state.SetOptions{ExpectedETag: etag})
	if err != nil {
		t.Fatalf("CAS with current etag: %v", err)
	}

	// The old etag is now stale.
	_, err = s.Set(ctx, "k", []byte(`3`), state.SetOptions{ExpectedETag: etag})
	if !errors.Is(err, state.ErrConflict) {
		t.Fatalf("CAS with stale etag: got %v, want ErrConflict", err)
	}

	entry, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(entry.Value) != `2` || entry.ETag != next {
		t.Fatalf("entry = %s @ %s, want 2 @ %s", entry.Value, entry.ETag, next)
	}
}

func TestStaleETagRejectedAfterRecreate(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	stale, err := s.Set(ctx, "k", []byte(`1`), state.SetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "k", []byte(`2`), state.SetOptions{}); err != nil {
		t.Fatal(err)
	}

	// The etag from before the delete/recreate cycle must not match the new
	// entry.
	_, err = s.Set(ctx, "k", []byte(`3`), state.SetOptions{ExpectedETag: stale})
	if !errors.Is(err, state.ErrConflict) {
		t.Fatalf("stale etag accepted after recreate: got %v, want ErrConflict", err)
	}
}

func TestCASOnMissingKey(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_, err := s.Set(ctx, "k", []byte(`1`), state.SetOptions{ExpectedETag: "v9"})
	if !errors.Is(err, state.ErrConflict) {
		t.Fatalf("CAS on missing key: got %v, want ErrConflict", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if _, err := s.Set(ctx, "k", []byte(`1`), state.SetOptions{TTL: time.Minute}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("before expiry: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("after expiry: got %v, want ErrNotFound", err)
	}

	// An expired key counts as absent for create-only writes.
	if _, err := s.Set(ctx, "k", []byte(`2`), state.SetOptions{ExpectedETag: state.ETagAbsent}); err != nil {
		t.Fatalf("create-only after expiry: %v", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if _, err := s.Set(ctx, "k", []byte(`1`), state.SetOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("after delete: got %v, want ErrNotFound", err)
	}
}

func TestSweepExpired(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if _, err := s.Set(ctx, "short", []byte(`1`), state.SetOptions{TTL: time.Minute}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "long", []byte(`1`), state.SetOptions{TTL: time.Hour}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "forever", []byte(`1`), state.SetOptions{}); err != nil {
		t.Fatal(err)
	}

	now = now.Add(10 * time.Minute)
	dropped, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if _, err := s.Get(ctx, "long"); err != nil {
		t.Fatalf("long-lived entry swept: %v", err)
	}
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Fatalf("non-expiring entry swept: %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "k"); !errors.Is(err, state.ErrStoreClosed) {
		t.Fatalf("Get after close: got %v, want ErrStoreClosed", err)
	}
	if _, err := s.Set(ctx, "k", []byte(`1`), state.SetOptions{}); !errors.Is(err, state.ErrStoreClosed) {
		t.Fatalf("Set after close: got %v, want ErrStoreClosed", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, state.ErrStoreClosed) {
		t.Fatalf("Ping after close: got %v, want ErrStoreClosed", err)
	}
}
