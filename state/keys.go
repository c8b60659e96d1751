package state

import (
	"strconv"
	"strings"
	"time"
)

// Keyspace namespaces. Keys are composite strings: "namespace:scope:identifier".
const (
	nsTaskCache = "task-cache"
	nsDedup     = "dedup"
	nsRateLimit = "ratelimit"
	nsParked    = "dlq"
)

// TaskCacheKey returns the cache-aside key for a task snapshot.
func TaskCacheKey(taskID string) string {
	return nsTaskCache + ":" + taskID
}

// DedupKey returns the consumer dedup marker key for an event on a topic.
func DedupKey(topic, eventID string) string {
	return strings.Join([]string{nsDedup, topic, eventID}, ":")
}

// ReminderDedupKey returns the delivery marker key for a fired reminder.
func ReminderDedupKey(taskID string, remindAt time.Time, notificationType string) string {
	return strings.Join([]string{
		nsDedup, "reminder", taskID,
		remindAt.UTC().Format(time.RFC3339), notificationType,
	}, ":")
}

// RecurrenceDedupKey returns the marker key guarding creation of one
// recurring occurrence.
func RecurrenceDedupKey(taskID string, nextDue time.Time) string {
	return strings.Join([]string{
		nsDedup, "recurrence", taskID, nextDue.UTC().Format(time.RFC3339),
	}, ":")
}

// RateLimitKey returns the fixed-window counter key for an action and owner.
func RateLimitKey(action, ownerID string, windowID int64) string {
	return strings.Join([]string{
		nsRateLimit, action, ownerID, strconv.FormatInt(windowID, 10),
	}, ":")
}

// ParkedKey returns the key under which a permanently dropped envelope is
// parked for inspection.
func ParkedKey(topic, eventID string) string {
	return strings.Join([]string{nsParked, topic, eventID}, ":")
}
