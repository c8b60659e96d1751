// Package task models the task API collaborator: snapshots of its records
// and a resilient client for the handful of query calls the engines need.
// The task API's own schema and CRUD surface are out of scope; only the
// calls below cross the boundary.
package task

import (
	"errors"
	"time"

	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/internal/entity"
)

// ErrTaskNotFound is returned when the task API has no record for an ID.
var ErrTaskNotFound = errors.New("cadence: task not found")

// Snapshot is the engine-facing view of a task record.
type Snapshot struct {
	entity.Entity

	// ID is the unique TypeID for this task.
	ID id.ID `json:"id"`

	// OwnerID is the user the task belongs to.
	OwnerID string `json:"owner_id"`

	Title string `json:"title"`

	// DueDate is the current due date, if any.
	DueDate *time.Time `json:"due_date,omitempty"`

	// Recurrence is present on recurring tasks.
	Recurrence *event.RecurrenceRule `json:"recurrence,omitempty"`

	// Reminders are the reminder specs configured on the task.
	Reminders []event.ReminderSpec `json:"reminders,omitempty"`

	// Completed marks the task as done.
	Completed bool `json:"completed"`
}

// Fields is the partial-update payload for ApplyUpdate. Keys follow the
// task API's JSON field names.
type Fields map[string]any
