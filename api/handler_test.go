package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/api"
	busmem "github.com/xraph/cadence/bus/memory"
	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/reminder"
	"github.com/xraph/cadence/signature"
	"github.com/xraph/cadence/state/memory"
)

const testSecret = "cadsec_test"

// newService wires a cadence instance against an in-memory store and
// transport and a stub task API, and returns the HTTP surface over it.
func newService(t *testing.T, due []*reminder.Record) *httptest.Server {
	t.Helper()

	taskAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/reminders/due":
			json.NewEncoder(w).Encode(due)
		case "/internal/tasks/recurring-due":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(taskAPI.Close)

	c, err := cadence.New(
		cadence.WithStateStore(memory.New()),
		cadence.WithTransport(busmem.New()),
		cadence.WithTaskAPI(taskAPI.URL),
		cadence.WithSigningSecret(testSecret),
	)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(api.NewHandler(c, testSecret, nil))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if into != nil {
		if err := json.NewDecoder(res.Body).Decode(into); err != nil {
			t.Fatal(err)
		}
	}
	return res.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := newService(t, nil)

	var body map[string]string
	if status := getJSON(t, srv.URL+"/healthz", &body); status != http.StatusOK {
		t.Fatalf("healthz status = %d", status)
	}
	if body["status"] != "ok" {
		t.Fatalf("healthz body = %v", body)
	}
}

func TestSubscriptionsListsStandardBindings(t *testing.T) {
	srv := newService(t, nil)

	// The body is a bare array, matching the Forge route.
	var body []struct {
		Topic string `json:"topic"`
		Route string `json:"route"`
	}
	if status := getJSON(t, srv.URL+"/subscriptions", &body); status != http.StatusOK {
		t.Fatalf("subscriptions status = %d", status)
	}
	if len(body) != 3 {
		t.Fatalf("got %d subscriptions, want 3", len(body))
	}

	topics := make(map[string]string)
	for _, s := range body {
		topics[s.Topic] = s.Route
	}
	if topics[event.TopicTaskCompleted] != "/events/task-completed" {
		t.Fatalf("task.completed route = %q", topics[event.TopicTaskCompleted])
	}
}

func TestPushEventAcknowledgesProcessed(t *testing.T) {
	srv := newService(t, nil)

	env, err := event.NewEnvelope(event.TopicTaskCompleted, id.NewTaskID(), "usr_1", event.TaskPayload{
		Title: "one-off task",
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := env.Encode()
	if err != nil {
		t.Fatal(err)
	}

	res, err := http.Post(srv.URL+"/events/task-completed", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("push status = %d", res.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["outcome"] != "processed" {
		t.Fatalf("outcome = %q", body["outcome"])
	}
}

func TestPushEventAcknowledgesDropped(t *testing.T) {
	srv := newService(t, nil)

	// Garbage never becomes valid, so it is acknowledged and parked rather
	// than redelivered forever.
	res, err := http.Post(srv.URL+"/events/task-completed", "application/json", bytes.NewReader([]byte(`{{{`)))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("push status = %d", res.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["outcome"] != "dropped" {
		t.Fatalf("outcome = %q", body["outcome"])
	}
}

func TestPushEventUnknownBinding(t *testing.T) {
	srv := newService(t, nil)

	res, err := http.Post(srv.URL+"/events/no-such-binding", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown binding status = %d", res.StatusCode)
	}
}

func TestRunJobRequiresSignature(t *testing.T) {
	srv := newService(t, nil)

	res, err := http.Post(srv.URL+"/internal/jobs/check-reminders", "application/json", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unsigned job status = %d", res.StatusCode)
	}
}

func TestRunJobSigned(t *testing.T) {
	due := []*reminder.Record{{
		TaskID:   id.NewTaskID(),
		RemindAt: time.Now().Add(-time.Minute),
		Type:     event.NotifyPush,
		Title:    "water plants",
		OwnerID:  "usr_1",
	}}
	srv := newService(t, due)

	res := postSignedJob(t, srv.URL+"/internal/jobs/check-reminders")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("signed job status = %d", res.StatusCode)
	}

	var body struct {
		Job      string `json:"job"`
		Affected int    `json:"affected"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Job != "check-reminders" || body.Affected != 1 {
		t.Fatalf("job result = %+v", body)
	}

	// Running the same job again converges on the delivery markers.
	res2 := postSignedJob(t, srv.URL+"/internal/jobs/check-reminders")
	defer res2.Body.Close()
	if err := json.NewDecoder(res2.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Affected != 0 {
		t.Fatalf("second run affected = %d, want 0", body.Affected)
	}
}

func TestRunJobUnknownName(t *testing.T) {
	srv := newService(t, nil)

	res := postSignedJob(t, srv.URL+"/internal/jobs/defragment")
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job status = %d", res.StatusCode)
	}
}

func TestRunJobRejectsBadSignature(t *testing.T) {
	srv := newService(t, nil)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/internal/jobs/cleanup", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(signature.HeaderTimestamp, "1700000000") // long expired
	req.Header.Set(signature.HeaderSignature, signature.Sign(nil, testSecret, 1700000000))

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale signature status = %d", res.StatusCode)
	}
}

// postSignedJob posts an empty body with a fresh HMAC signature.
func postSignedJob(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Now().Unix()
	req.Header.Set(signature.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(signature.HeaderSignature, signature.Sign(nil, testSecret, ts))

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return res
}
