// Package reminder computes which reminders are due and publishes
// reminder.due events, deduplicating deliveries through the state store.
package reminder

import (
	"context"
	"time"

	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/state"
)

// Record is one scheduled reminder for a task.
//
// Records are never deleted proactively: absence of a delivery marker in the
// state store means "not yet delivered".
type Record struct {
	TaskID   id.ID                  `json:"task_id"`
	RemindAt time.Time              `json:"remind_at"`
	Type     event.NotificationType `json:"notification_type"`

	// Title is carried into the notification payload.
	Title string `json:"title,omitempty"`

	// OwnerID partitions the published event.
	OwnerID string `json:"owner_id,omitempty"`
}

// DedupKey derives the delivery marker key. Stable for a given
// (task, remind_at, channel) triple, so duplicate scheduler ticks and
// redelivered events collapse onto the same marker.
func (r *Record) DedupKey() string {
	return state.ReminderDedupKey(r.TaskID.String(), r.RemindAt, string(r.Type))
}

// Source is the task API query interface the engine consumes.
type Source interface {
	QueryDueReminders(ctx context.Context, asOf time.Time) ([]*Record, error)
}
