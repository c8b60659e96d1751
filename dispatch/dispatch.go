// Package dispatch is the subscriber runtime: per-service topic→route
// bindings plus an idempotent-dispatch wrapper around the route handlers.
package dispatch

import (
	"context"

	"github.com/xraph/cadence/event"
)

// Binding declares that envelopes on Topic are routed to the handler mounted
// at Route. The set of bindings is static per service and discoverable by the
// transport at startup.
type Binding struct {
	Topic string `json:"topic"`
	Route string `json:"route"`
}

// HandlerFunc processes one decoded envelope. A non-nil error asks the
// transport to redeliver; the dedup marker is not written so the retry can
// run the handler again.
type HandlerFunc func(ctx context.Context, env *event.Envelope) error

// Outcome is the result of dispatching one inbound message.
type Outcome int

const (
	// Processed means the handler ran (or already had) and the message is done.
	Processed Outcome = iota

	// Retry means the handler failed and the transport should redeliver.
	Retry

	// Dropped means the message is permanently unprocessable: malformed
	// envelope or unknown topic. Logged and parked, never redelivered.
	Dropped
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Processed:
		return "processed"
	case Retry:
		return "retry"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}
