package invoke

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is refused because the target's
// circuit is open.
var ErrCircuitOpen = errors.New("cadence: circuit open")

// State is the circuit breaker state for one target service.
type State string

// Breaker states.
const (
	// Closed passes requests through while counting consecutive failures.
	Closed State = "closed"

	// Open fails calls fast without attempting network I/O.
	Open State = "open"

	// HalfOpen allows a single probe request to test recovery.
	HalfOpen State = "half_open"
)

// Breaker tracks per-target circuit state. It is process-local by design:
// its purpose is per-instance fast-fail, so it is never persisted or shared,
// and resets on process restart.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	circuits map[string]*circuit

	// now is swappable in tests to step through the cooldown.
	now func() time.Time
}

type circuit struct {
	state    State
	failures int
	openedAt time.Time
	probing  bool // a half-open probe is in flight
}

// NewBreaker creates a breaker with the given consecutive-failure threshold
// and open-state cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		circuits:  make(map[string]*circuit),
		now:       time.Now,
	}
}

// SetClock replaces the breaker's clock. Test hook.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Allow reports whether a call to target may proceed. At most one caller is
// admitted while the circuit is half-open; concurrent callers fail fast
// instead of all probing at once.
func (b *Breaker) Allow(target string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(target)
	switch c.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(c.openedAt) < b.cooldown {
			return false
		}
		// Cooldown elapsed: this caller becomes the probe.
		c.state = HalfOpen
		c.probing = true
		return true
	case HalfOpen:
		if c.probing {
			return false
		}
		c.probing = true
		return true
	default:
		return true
	}
}

// OnSuccess records a successful call: the failure streak resets and a
// half-open circuit closes.
func (b *Breaker) OnSuccess(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(target)
	c.failures = 0
	c.probing = false
	c.state = Closed
}

// OnFailure records a failed call: a half-open probe reopens the circuit,
// and a closed circuit opens once the consecutive-failure threshold is hit.
func (b *Breaker) OnFailure(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(target)
	c.failures++
	c.probing = false

	if c.state == HalfOpen || c.failures >= b.threshold {
		c.state = Open
		c.openedAt = b.now()
	}
}

// State returns the current state for a target.
func (b *Breaker) State(target string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.circuit(target).state
}

// Reset clears the circuit for a target.
func (b *Breaker) Reset(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.circuits, target)
}

// circuit returns the circuit for target, creating it closed. Caller holds b.mu.
func (b *Breaker) circuit(target string) *circuit {
	c, ok := b.circuits[target]
	if !ok {
		c = &circuit{state: Closed}
		b.circuits[target] = c
	}
	return c
}
