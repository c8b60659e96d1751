package scope_test

import (
	"context"
	"testing"

	"github.com/xraph/cadence/scope"
)

func TestOwnerRoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := scope.Owner(ctx); got != "" {
		t.Fatalf("Owner on empty context = %q", got)
	}

	ctx = scope.WithOwner(ctx, "usr_1")
	if got := scope.Owner(ctx); got != "usr_1" {
		t.Fatalf("Owner = %q", got)
	}

	// Inner scopes shadow without mutating the parent.
	inner := scope.WithOwner(ctx, "usr_2")
	if got := scope.Owner(inner); got != "usr_2" {
		t.Fatalf("inner Owner = %q", got)
	}
	if got := scope.Owner(ctx); got != "usr_1" {
		t.Fatalf("outer Owner = %q", got)
	}
}

func TestCausationRoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := scope.Causation(ctx); got != "" {
		t.Fatalf("Causation on empty context = %q", got)
	}

	ctx = scope.WithCausation(ctx, "evt_123")
	if got := scope.Causation(ctx); got != "evt_123" {
		t.Fatalf("Causation = %q", got)
	}
}
