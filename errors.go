package cadence

import (
	"errors"

	"github.com/xraph/cadence/bus"
	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/invoke"
	"github.com/xraph/cadence/ratelimit"
	"github.com/xraph/cadence/state"
	"github.com/xraph/cadence/task"
)

// Sentinel errors returned by Cadence construction.
var (
	// ErrNoStateStore is returned when a Cadence is created without a state store.
	ErrNoStateStore = errors.New("cadence: state store is required")

	// ErrNoTransport is returned when a Cadence is created without a bus transport.
	ErrNoTransport = errors.New("cadence: transport is required")
)

// Sentinel errors from the subsystem packages, re-exported so callers that
// only import this package can match them with errors.Is.
var (
	// ErrNotFound is returned when a state entry does not exist.
	ErrNotFound = state.ErrNotFound

	// ErrConflict is returned when a compare-and-swap write carries a stale etag.
	// It is an expected control-flow signal: re-read and retry, do not report.
	ErrConflict = state.ErrConflict

	// ErrStoreClosed is returned when a state operation is attempted after the
	// store is closed.
	ErrStoreClosed = state.ErrStoreClosed

	// ErrTopicNotFound is returned when a topic is not registered.
	ErrTopicNotFound = event.ErrTopicNotFound

	// ErrTopicDeprecated is returned when publishing to a deprecated topic.
	ErrTopicDeprecated = event.ErrTopicDeprecated

	// ErrPayloadValidationFailed is returned when an envelope payload fails
	// the topic's JSON Schema validation.
	ErrPayloadValidationFailed = event.ErrPayloadValidationFailed

	// ErrMalformedEnvelope is returned when an inbound message cannot be
	// decoded into a valid envelope. Permanent: dropped, never retried.
	ErrMalformedEnvelope = event.ErrMalformedEnvelope

	// ErrInvalidRecurrence is returned for a recurrence rule with an unknown
	// frequency or a non-positive interval.
	ErrInvalidRecurrence = event.ErrInvalidRecurrence

	// ErrCircuitOpen is returned when the circuit breaker for a target service
	// is open and the call was rejected without network I/O.
	ErrCircuitOpen = invoke.ErrCircuitOpen

	// ErrRateLimited is returned when a fixed-window counter denies a request.
	// Surfaced to the original caller, never retried automatically.
	ErrRateLimited = ratelimit.ErrRateLimited

	// ErrTaskNotFound is returned when the task API reports an unknown task.
	ErrTaskNotFound = task.ErrTaskNotFound

	// ErrTransportClosed is returned when publishing through a closed transport.
	ErrTransportClosed = bus.ErrTransportClosed
)
