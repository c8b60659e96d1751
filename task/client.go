package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/invoke"
	"github.com/xraph/cadence/reminder"
	"github.com/xraph/cadence/state"
)

// target is the breaker key for all task API calls.
const target = "task-api"

// Client calls the task API through the resilient invoker, with cache-aside
// snapshot reads against the shared state store.
type Client struct {
	baseURL  string
	invoker  *invoke.Invoker
	store    state.Store
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewClient creates a task API client.
func NewClient(baseURL string, invoker *invoke.Invoker, store state.Store, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  baseURL,
		invoker:  invoker,
		store:    store,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Get returns a task snapshot, reading through the cache: check the cache,
// fall back to the task API on miss, repopulate on the way out.
func (c *Client) Get(ctx context.Context, taskID id.ID) (*Snapshot, error) {
	cacheKey := state.TaskCacheKey(taskID.String())

	var cached Snapshot
	if _, err := state.GetJSON(ctx, c.store, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, state.ErrNotFound) {
		// Cache trouble must not block reads; fall through to the source.
		c.logger.DebugContext(ctx, "task cache read failed", "task_id", taskID, "error", err)
	}

	res, err := c.invoker.Do(ctx, target, http.MethodGet, c.baseURL+"/internal/tasks/"+taskID.String(), nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !res.OK() {
		return nil, fmt.Errorf("task: get %s: status %d", taskID, res.StatusCode)
	}

	var snap Snapshot
	if err := json.Unmarshal(res.Body, &snap); err != nil {
		return nil, fmt.Errorf("task: decode snapshot: %w", err)
	}

	// Cache entries are disposable; last-write-wins is fine.
	if _, err := state.SetJSON(ctx, c.store, cacheKey, &snap, state.SetOptions{TTL: c.cacheTTL}); err != nil {
		c.logger.DebugContext(ctx, "task cache write failed", "task_id", taskID, "error", err)
	}
	return &snap, nil
}

// ApplyUpdate upserts fields on a task and returns the resulting snapshot.
// The cache entry is refreshed with the authoritative response.
func (c *Client) ApplyUpdate(ctx context.Context, taskID id.ID, fields Fields) (*Snapshot, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("task: marshal update: %w", err)
	}

	res, err := c.invoker.Do(ctx, target, http.MethodPut, c.baseURL+"/internal/tasks/"+taskID.String(), payload)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !res.OK() {
		return nil, fmt.Errorf("task: update %s: status %d", taskID, res.StatusCode)
	}

	var snap Snapshot
	if err := json.Unmarshal(res.Body, &snap); err != nil {
		return nil, fmt.Errorf("task: decode snapshot: %w", err)
	}

	if _, err := state.SetJSON(ctx, c.store, state.TaskCacheKey(taskID.String()), &snap, state.SetOptions{TTL: c.cacheTTL}); err != nil {
		c.logger.DebugContext(ctx, "task cache refresh failed", "task_id", taskID, "error", err)
	}
	return &snap, nil
}

// QueryDueReminders returns all reminder records due as of the given time.
// Implements reminder.Source.
func (c *Client) QueryDueReminders(ctx context.Context, asOf time.Time) ([]*reminder.Record, error) {
	u := c.baseURL + "/internal/reminders/due?as_of=" + url.QueryEscape(asOf.UTC().Format(time.RFC3339))
	res, err := c.invoker.Do(ctx, target, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("task: query due reminders: status %d", res.StatusCode)
	}

	var records []*reminder.Record
	if err := json.Unmarshal(res.Body, &records); err != nil {
		return nil, fmt.Errorf("task: decode reminders: %w", err)
	}
	return records, nil
}

// ListRecurringDue returns recurring tasks whose due date has passed without
// a completion event being processed. Feeds the hourly catch-up sweep.
func (c *Client) ListRecurringDue(ctx context.Context, asOf time.Time) ([]*Snapshot, error) {
	u := c.baseURL + "/internal/tasks/recurring-due?as_of=" + url.QueryEscape(asOf.UTC().Format(time.RFC3339))
	res, err := c.invoker.Do(ctx, target, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("task: list recurring due: status %d", res.StatusCode)
	}

	var snaps []*Snapshot
	if err := json.Unmarshal(res.Body, &snaps); err != nil {
		return nil, fmt.Errorf("task: decode snapshots: %w", err)
	}
	return snaps, nil
}

// Invalidate drops the cached snapshot for a task.
func (c *Client) Invalidate(ctx context.Context, taskID id.ID) error {
	return c.store.Delete(ctx, state.TaskCacheKey(taskID.String()))
}

// HandleLifecycleEvent keeps the cache coherent with the source of truth:
// task.updated and task.deleted invalidate the snapshot entry. Wired as the
// dispatch handler for those topics.
func (c *Client) HandleLifecycleEvent(ctx context.Context, env *event.Envelope) error {
	switch env.Type {
	case event.TopicTaskUpdated, event.TopicTaskDeleted:
		if err := c.Invalidate(ctx, env.SubjectID); err != nil {
			return fmt.Errorf("task: invalidate %s: %w", env.SubjectID, err)
		}
		c.logger.DebugContext(ctx, "task cache invalidated",
			"task_id", env.SubjectID, "topic", env.Type)
	}
	return nil
}
