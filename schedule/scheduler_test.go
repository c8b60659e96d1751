package schedule_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/cadence/invoke"
	"github.com/xraph/cadence/schedule"
)

func TestDefaultTriggers(t *testing.T) {
	triggers := schedule.DefaultTriggers()
	if len(triggers) != 3 {
		t.Fatalf("got %d triggers, want 3", len(triggers))
	}

	byName := make(map[string]schedule.Trigger, len(triggers))
	for _, trig := range triggers {
		byName[trig.Name] = trig
	}

	reminders, ok := byName["check-reminders"]
	if !ok || reminders.Spec != "* * * * *" {
		t.Fatalf("check-reminders = %+v", reminders)
	}
	sweep, ok := byName["sweep-recurring-tasks"]
	if !ok || sweep.Spec != "0 * * * *" {
		t.Fatalf("sweep-recurring-tasks = %+v", sweep)
	}
	if _, ok := byName["cleanup"]; !ok {
		t.Fatal("cleanup trigger missing")
	}

	for _, trig := range triggers {
		want := "/internal/jobs/" + trig.Name
		if trig.Route != want {
			t.Fatalf("trigger %s routes to %q, want %q", trig.Name, trig.Route, want)
		}
	}
}

func TestStartRejectsBadCronSpec(t *testing.T) {
	invoker := invoke.NewInvoker(invoke.DefaultPolicy(), "", nil)
	s := schedule.New("http://localhost:0", invoker, []schedule.Trigger{
		{Name: "bad", Spec: "not a cron spec", Route: "/internal/jobs/bad"},
	}, nil)

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("invalid cron spec accepted")
	}
}

func TestTicksPostToJobRoutes(t *testing.T) {
	var mu sync.Mutex
	var routes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		routes = append(routes, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	invoker := invoke.NewInvoker(invoke.DefaultPolicy(), "", nil)
	// An every-second spec keeps the test fast; production specs are
	// minute-grained.
	s := schedule.New(srv.URL, invoker, []schedule.Trigger{
		{Name: "check-reminders", Spec: "@every 1s", Route: "/internal/jobs/check-reminders"},
	}, nil)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(routes)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no tick arrived within the deadline")
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.HasPrefix(routes[0], "POST /internal/jobs/check-reminders") {
		t.Fatalf("tick = %q", routes[0])
	}
}
