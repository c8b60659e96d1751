package event

import "errors"

var (
	// ErrTopicNotFound is returned when a topic is not registered.
	ErrTopicNotFound = errors.New("cadence: topic not found")

	// ErrTopicDeprecated is returned when publishing to a deprecated topic.
	ErrTopicDeprecated = errors.New("cadence: topic is deprecated")

	// ErrPayloadValidationFailed is returned when payload data fails JSON
	// Schema validation for its topic.
	ErrPayloadValidationFailed = errors.New("cadence: payload validation failed")

	// ErrMalformedEnvelope is returned when envelope bytes cannot be decoded
	// or the envelope is missing identity fields.
	ErrMalformedEnvelope = errors.New("cadence: malformed envelope")

	// ErrInvalidRecurrence is returned when a recurrence rule has an unknown
	// frequency or a non-positive interval.
	ErrInvalidRecurrence = errors.New("cadence: invalid recurrence rule")
)
