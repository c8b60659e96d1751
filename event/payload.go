package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/cadence/id"
)

// Frequency is the unit a recurrence rule advances by.
type Frequency string

// Recurrence frequencies.
const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	// Custom advances by Interval days.
	Custom Frequency = "custom"
)

// RecurrenceRule describes how a recurring task repeats.
//
// AnchorDueDate is the due date of the occurrence that just completed. The
// next occurrence is always computed from the anchor, never from completion
// time, so a series completed late does not drift.
type RecurrenceRule struct {
	Frequency     Frequency `json:"frequency"`
	Interval      int       `json:"interval"`
	AnchorDueDate time.Time `json:"anchor_due_date"`
}

// Validate checks the rule's frequency and interval.
func (r RecurrenceRule) Validate() error {
	switch r.Frequency {
	case Daily, Weekly, Monthly, Custom:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, r.Frequency)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRecurrence, r.Interval)
	}
	return nil
}

// NotificationType selects the delivery channel for a reminder.
type NotificationType string

// Reminder delivery channels.
const (
	NotifyEmail NotificationType = "email"
	NotifyPush  NotificationType = "push"
	NotifyInApp NotificationType = "in_app"
)

// ReminderSpec configures one reminder relative to a task's due date.
type ReminderSpec struct {
	// Offset is how long before the due date the reminder fires.
	Offset time.Duration `json:"offset"`

	Type NotificationType `json:"notification_type"`
}

// TaskPayload is the payload carried by the task.* topics.
type TaskPayload struct {
	Title string `json:"title,omitempty"`

	// DueDate is the task's current due date, if any.
	DueDate *time.Time `json:"due_date,omitempty"`

	// PreviousDueDate is set on task.updated when the due date changed.
	PreviousDueDate *time.Time `json:"previous_due_date,omitempty"`

	// Recurrence is present on recurring tasks.
	Recurrence *RecurrenceRule `json:"recurrence,omitempty"`

	// Reminders are the reminder specs configured on the task.
	Reminders []ReminderSpec `json:"reminders,omitempty"`

	// CompletedAt is set on task.completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ReminderDuePayload is the payload carried by the reminder.due topic.
type ReminderDuePayload struct {
	TaskID   id.ID            `json:"task_id"`
	RemindAt time.Time        `json:"remind_at"`
	Type     NotificationType `json:"notification_type"`
	Title    string           `json:"title,omitempty"`
}

// DecodePayload decodes an envelope's payload into the struct selected by its
// topic tag. Task lifecycle topics decode to *TaskPayload, reminder.due to
// *ReminderDuePayload. Unknown topics are a permanent error.
func DecodePayload(env *Envelope) (any, error) {
	switch env.Type {
	case TopicTaskCreated, TopicTaskUpdated, TopicTaskCompleted, TopicTaskDeleted:
		var p TaskPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("event: decode %s payload: %w", env.Type, err)
		}
		return &p, nil
	case TopicReminderDue:
		var p ReminderDuePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("event: decode %s payload: %w", env.Type, err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("event: no payload schema for topic %q", env.Type)
	}
}

// TaskData decodes the envelope payload as a TaskPayload.
func (e *Envelope) TaskData() (*TaskPayload, error) {
	p, err := DecodePayload(e)
	if err != nil {
		return nil, err
	}
	tp, ok := p.(*TaskPayload)
	if !ok {
		return nil, fmt.Errorf("event: topic %q does not carry a task payload", e.Type)
	}
	return tp, nil
}

// ReminderData decodes the envelope payload as a ReminderDuePayload.
func (e *Envelope) ReminderData() (*ReminderDuePayload, error) {
	p, err := DecodePayload(e)
	if err != nil {
		return nil, err
	}
	rp, ok := p.(*ReminderDuePayload)
	if !ok {
		return nil, fmt.Errorf("event: topic %q does not carry a reminder payload", e.Type)
	}
	return rp, nil
}
