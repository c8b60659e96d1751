package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/invoke"
	"github.com/xraph/cadence/state/memory"
	"github.com/xraph/cadence/task"
)

func fastPolicy() invoke.Policy {
	return invoke.Policy{
		Timeout:          time.Second,
		MaxRetries:       0,
		Backoff:          time.Millisecond,
		FailureThreshold: 100,
		Cooldown:         time.Minute,
	}
}

type clientFixture struct {
	client *task.Client
	gets   *atomic.Int64
}

// setupClient serves one known task over httptest and returns a client with
// a caching store in front of it.
func setupClient(t *testing.T, known id.ID) *clientFixture {
	t.Helper()

	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/internal/tasks/") {
			http.NotFound(w, r)
			return
		}
		requested := strings.TrimPrefix(r.URL.Path, "/internal/tasks/")

		switch r.Method {
		case http.MethodGet:
			gets.Add(1)
			if requested != known.String() {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":       known.String(),
				"owner_id": "usr_1",
				"title":    "water plants",
			})
		case http.MethodPut:
			var fields map[string]any
			if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":       requested,
				"owner_id": fields["owner_id"],
				"title":    fields["title"],
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	invoker := invoke.NewInvoker(fastPolicy(), "", nil)
	client := task.NewClient(srv.URL, invoker, memory.New(), 5*time.Minute, nil)
	return &clientFixture{client: client, gets: &gets}
}

func TestGetReadsThroughCache(t *testing.T) {
	taskID := id.NewTaskID()
	f := setupClient(t, taskID)
	ctx := context.Background()

	snap, err := f.client.Get(ctx, taskID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Title != "water plants" || snap.OwnerID != "usr_1" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if f.gets.Load() != 1 {
		t.Fatalf("task API hit %d times, want 1", f.gets.Load())
	}

	// Second read is served from the cache.
	if _, err := f.client.Get(ctx, taskID); err != nil {
		t.Fatal(err)
	}
	if f.gets.Load() != 1 {
		t.Fatalf("cached read hit the task API (%d hits)", f.gets.Load())
	}
}

func TestGetMissingTask(t *testing.T) {
	f := setupClient(t, id.NewTaskID())

	_, err := f.client.Get(context.Background(), id.NewTaskID())
	if !errors.Is(err, task.ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestLifecycleEventInvalidatesCache(t *testing.T) {
	taskID := id.NewTaskID()
	f := setupClient(t, taskID)
	ctx := context.Background()

	if _, err := f.client.Get(ctx, taskID); err != nil {
		t.Fatal(err)
	}

	env, err := event.NewEnvelope(event.TopicTaskUpdated, taskID, "usr_1", event.TaskPayload{Title: "renamed"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.client.HandleLifecycleEvent(ctx, env); err != nil {
		t.Fatal(err)
	}

	// The stale entry is gone, so the next read goes back to the source.
	if _, err := f.client.Get(ctx, taskID); err != nil {
		t.Fatal(err)
	}
	if f.gets.Load() != 2 {
		t.Fatalf("task API hit %d times, want 2", f.gets.Load())
	}
}

func TestApplyUpdateRefreshesCache(t *testing.T) {
	taskID := id.NewTaskID()
	f := setupClient(t, taskID)
	ctx := context.Background()

	snap, err := f.client.ApplyUpdate(ctx, taskID, task.Fields{
		"owner_id": "usr_1",
		"title":    "updated title",
	})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Title != "updated title" {
		t.Fatalf("snapshot = %+v", snap)
	}

	// The upsert response seeded the cache; the read never hits the API.
	cached, err := f.client.Get(ctx, taskID)
	if err != nil {
		t.Fatal(err)
	}
	if cached.Title != "updated title" {
		t.Fatalf("cached = %+v", cached)
	}
	if f.gets.Load() != 0 {
		t.Fatalf("task API hit %d times, want 0", f.gets.Load())
	}
}

func TestCompletedEventLeavesCacheAlone(t *testing.T) {
	taskID := id.NewTaskID()
	f := setupClient(t, taskID)
	ctx := context.Background()

	if _, err := f.client.Get(ctx, taskID); err != nil {
		t.Fatal(err)
	}

	env, err := event.NewEnvelope(event.TopicTaskCompleted, taskID, "usr_1", event.TaskPayload{})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.client.HandleLifecycleEvent(ctx, env); err != nil {
		t.Fatal(err)
	}

	if _, err := f.client.Get(ctx, taskID); err != nil {
		t.Fatal(err)
	}
	if f.gets.Load() != 1 {
		t.Fatalf("completion invalidated the cache (%d hits)", f.gets.Load())
	}
}
