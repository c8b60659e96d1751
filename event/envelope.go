// Package event defines the envelope that wraps every message crossing the
// bus, the typed payloads it carries, and the topic registry producers
// publish against.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/cadence/id"
)

// Topic names for task lifecycle and reminder events.
const (
	TopicTaskCreated   = "task.created"
	TopicTaskUpdated   = "task.updated"
	TopicTaskCompleted = "task.completed"
	TopicTaskDeleted   = "task.deleted"
	TopicReminderDue   = "reminder.due"
)

// Envelope is the unit of pub/sub communication.
//
// EventID is minted once at construction and must be reused verbatim when the
// same logical event is republished after a transport failure. Consumers key
// their dedup markers on it.
type Envelope struct {
	// EventID uniquely identifies this logical event, stable across retries.
	EventID id.ID `json:"event_id"`

	// Type is the dot-separated topic name (e.g. "task.completed").
	Type string `json:"event_type"`

	// SubjectID is the task this event concerns.
	SubjectID id.ID `json:"subject_id"`

	// OwnerID is the user the task belongs to. Used for per-user rate
	// limiting and as the transport partition key.
	OwnerID string `json:"owner_id"`

	// OccurredAt is the producer-assigned timestamp, not delivery time.
	OccurredAt time.Time `json:"occurred_at"`

	// Payload is the type-specific structured data, decoded via DecodePayload.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope mints an envelope for the given topic and subject with a fresh
// EventID and the current UTC time as OccurredAt.
func NewEnvelope(topic string, subjectID id.ID, ownerID string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("event: marshal payload: %w", err)
	}

	return &Envelope{
		EventID:    id.NewEventID(),
		Type:       topic,
		SubjectID:  subjectID,
		OwnerID:    ownerID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Validate checks the envelope's identity fields. A failure here is a
// permanent error: the message can never become valid on redelivery.
func (e *Envelope) Validate() error {
	if e.EventID.IsNil() {
		return fmt.Errorf("event: envelope missing event_id")
	}
	if e.Type == "" {
		return fmt.Errorf("event: envelope missing event_type")
	}
	if e.SubjectID.IsNil() {
		return fmt.Errorf("event: envelope missing subject_id")
	}
	return nil
}

// PartitionKey returns the key the transport should use for ordering
// affinity. Events for the same owner are delivered in publish order;
// ownerless events fall back to the subject.
func (e *Envelope) PartitionKey() string {
	if e.OwnerID != "" {
		return e.OwnerID
	}
	return e.SubjectID.String()
}

// Decode unmarshals raw bytes into an Envelope and validates it.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("event: decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Encode marshals the envelope for transport.
func (e *Envelope) Encode() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event: encode envelope: %w", err)
	}
	return raw, nil
}
