// Package recur materializes the next occurrence of recurring tasks when the
// current one completes, preserving the series' original cadence.
package recur

import (
	"time"

	"github.com/xraph/cadence/event"
)

// NextAfter computes the next occurrence's due date for a rule: the anchor
// advanced by whole periods until strictly after now.
//
// The computation starts from the anchor due date, never from completion
// time, so a task completed late keeps its original cadence. If the service
// was down for several periods, the anchor is advanced repeatedly and keeps
// its alignment rather than collapsing missed periods into one.
func NextAfter(rule event.RecurrenceRule, now time.Time) (time.Time, error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, err
	}

	next := advance(rule.AnchorDueDate, rule.Frequency, rule.Interval)
	for !next.After(now) {
		next = advance(next, rule.Frequency, rule.Interval)
	}
	return next, nil
}

// advance moves t forward by one rule period. Calendar units use AddDate so
// monthly schedules track month lengths instead of a fixed day count.
func advance(t time.Time, freq event.Frequency, interval int) time.Time {
	switch freq {
	case event.Daily:
		return t.AddDate(0, 0, interval)
	case event.Weekly:
		return t.AddDate(0, 0, 7*interval)
	case event.Monthly:
		return t.AddDate(0, interval, 0)
	case event.Custom:
		return t.AddDate(0, 0, interval)
	default:
		// Validate rejects unknown frequencies before this is reachable.
		return t.AddDate(0, 0, interval)
	}
}
