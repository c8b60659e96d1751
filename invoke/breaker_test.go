package invoke_test

import (
	"testing"
	"time"

	"github.com/xraph/cadence/invoke"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := invoke.NewBreaker(3, 30*time.Second)

	for i := 0; i < 2; i++ {
		if !b.Allow("svc") {
			t.Fatalf("call %d refused below threshold", i+1)
		}
		b.OnFailure("svc")
	}
	if b.State("svc") != invoke.Closed {
		t.Fatalf("state = %v below threshold, want closed", b.State("svc"))
	}

	b.OnFailure("svc")
	if b.State("svc") != invoke.Open {
		t.Fatalf("state = %v at threshold, want open", b.State("svc"))
	}
	if b.Allow("svc") {
		t.Fatal("open circuit admitted a call")
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := invoke.NewBreaker(3, 30*time.Second)

	b.OnFailure("svc")
	b.OnFailure("svc")
	b.OnSuccess("svc")
	b.OnFailure("svc")
	b.OnFailure("svc")

	if b.State("svc") != invoke.Closed {
		t.Fatalf("non-consecutive failures opened the circuit: %v", b.State("svc"))
	}
}

func TestCooldownAdmitsSingleProbe(t *testing.T) {
	b := invoke.NewBreaker(1, 30*time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	b.OnFailure("svc")
	if b.Allow("svc") {
		t.Fatal("open circuit admitted a call before cooldown")
	}

	now = now.Add(31 * time.Second)
	if !b.Allow("svc") {
		t.Fatal("probe refused after cooldown")
	}
	if b.State("svc") != invoke.HalfOpen {
		t.Fatalf("state = %v after probe admission, want half_open", b.State("svc"))
	}
	// Only one probe at a time.
	if b.Allow("svc") {
		t.Fatal("second concurrent probe admitted")
	}
}

func TestProbeSuccessCloses(t *testing.T) {
	b := invoke.NewBreaker(1, time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	b.OnFailure("svc")
	now = now.Add(2 * time.Second)
	if !b.Allow("svc") {
		t.Fatal("probe refused")
	}
	b.OnSuccess("svc")

	if b.State("svc") != invoke.Closed {
		t.Fatalf("state = %v after probe success, want closed", b.State("svc"))
	}
	if !b.Allow("svc") {
		t.Fatal("closed circuit refused a call")
	}
}

func TestProbeFailureReopens(t *testing.T) {
	b := invoke.NewBreaker(5, time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		b.OnFailure("svc")
	}
	now = now.Add(2 * time.Second)
	if !b.Allow("svc") {
		t.Fatal("probe refused")
	}

	// A single probe failure reopens; the threshold does not apply half-open.
	b.OnFailure("svc")
	if b.State("svc") != invoke.Open {
		t.Fatalf("state = %v after probe failure, want open", b.State("svc"))
	}
	if b.Allow("svc") {
		t.Fatal("reopened circuit admitted a call before a fresh cooldown")
	}
}

func TestTargetsAreIndependent(t *testing.T) {
	b := invoke.NewBreaker(1, 30*time.Second)

	b.OnFailure("flaky")
	if b.State("flaky") != invoke.Open {
		t.Fatalf("flaky state = %v, want open", b.State("flaky"))
	}
	if !b.Allow("healthy") {
		t.Fatal("healthy target tripped by flaky target")
	}
}

func TestReset(t *testing.T) {
	b := invoke.NewBreaker(1, 30*time.Second)

	b.OnFailure("svc")
	b.Reset("svc")

	if b.State("svc") != invoke.Closed {
		t.Fatalf("state = %v after reset, want closed", b.State("svc"))
	}
	if !b.Allow("svc") {
		t.Fatal("reset circuit refused a call")
	}
}
