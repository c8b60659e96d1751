package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/cadence/bus"
	busmem "github.com/xraph/cadence/bus/memory"
	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/reminder"
	"github.com/xraph/cadence/state/memory"
)

// stubSource serves a fixed due list, or fails when err is set.
type stubSource struct {
	records []*reminder.Record
	err     error
}

func (s *stubSource) QueryDueReminders(context.Context, time.Time) ([]*reminder.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

// flakyTransport drops every publish while broken is true.
type flakyTransport struct {
	*busmem.Transport
	broken bool
}

func (t *flakyTransport) Publish(ctx context.Context, topic, key string, data []byte) error {
	if t.broken {
		return errors.New("broker unreachable")
	}
	return t.Transport.Publish(ctx, topic, key, data)
}

type reminderFixture struct {
	engine *reminder.Engine
	source *stubSource
	flaky  *flakyTransport
	fired  *[]*event.Envelope
}

func setupReminders(t *testing.T) *reminderFixture {
	t.Helper()

	store := memory.New()
	flaky := &flakyTransport{Transport: busmem.New()}
	publisher := bus.NewPublisher(flaky, event.NewStandardRegistry(), nil)
	source := &stubSource{}

	var fired []*event.Envelope
	err := flaky.Subscribe(context.Background(), event.TopicReminderDue, func(_ context.Context, data []byte) error {
		env, decodeErr := event.Decode(data)
		if decodeErr != nil {
			return decodeErr
		}
		fired = append(fired, env)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	engine := reminder.NewEngine(source, store, publisher, reminder.Config{}, nil)
	return &reminderFixture{engine: engine, source: source, flaky: flaky, fired: &fired}
}

func dueRecord(remindAt time.Time) *reminder.Record {
	return &reminder.Record{
		TaskID:   id.NewTaskID(),
		RemindAt: remindAt,
		Type:     event.NotifyPush,
		Title:    "water plants",
		OwnerID:  "usr_1",
	}
}

func TestProcessDueFiresEachReminderOnce(t *testing.T) {
	f := setupReminders(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	f.source.records = []*reminder.Record{
		dueRecord(now.Add(-time.Minute)),
		dueRecord(now.Add(-2 * time.Minute)),
	}

	fired, err := f.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if fired != 2 {
		t.Fatalf("fired = %d, want 2", fired)
	}
	if len(*f.fired) != 2 {
		t.Fatalf("published %d events, want 2", len(*f.fired))
	}

	payload, err := event.DecodePayload((*f.fired)[0])
	if err != nil {
		t.Fatal(err)
	}
	due, ok := payload.(*event.ReminderDuePayload)
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	if due.Title != "water plants" || due.Type != event.NotifyPush {
		t.Fatalf("payload = %+v", due)
	}

	// Same due list next tick: the delivery markers suppress everything.
	fired, err = f.engine.ProcessDue(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if fired != 0 {
		t.Fatalf("second tick fired %d, want 0", fired)
	}
	if len(*f.fired) != 2 {
		t.Fatalf("second tick published %d extra events", len(*f.fired)-2)
	}
}

func TestFailedPublishLeavesReminderEligible(t *testing.T) {
	f := setupReminders(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	f.source.records = []*reminder.Record{dueRecord(now.Add(-time.Minute))}

	f.flaky.broken = true
	fired, err := f.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if fired != 0 {
		t.Fatalf("fired %d through a broken transport", fired)
	}

	// Transport recovers: the next tick delivers, no marker was written.
	f.flaky.broken = false
	fired, err = f.engine.ProcessDue(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d after recovery, want 1", fired)
	}
	if len(*f.fired) != 1 {
		t.Fatalf("published %d events, want 1", len(*f.fired))
	}
}

func TestOneBadReminderDoesNotStopTheRest(t *testing.T) {
	f := setupReminders(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	good := dueRecord(now.Add(-time.Minute))
	// A record with no task ID fails envelope validation for this record
	// only.
	bad := &reminder.Record{RemindAt: now.Add(-time.Minute), Type: event.NotifyPush}
	f.source.records = []*reminder.Record{bad, good}

	fired, err := f.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestNilRecordInDueListIsDropped(t *testing.T) {
	f := setupReminders(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	// A null element in the collaborator's JSON list decodes to nil.
	f.source.records = []*reminder.Record{nil, dueRecord(now.Add(-time.Minute)), nil}

	fired, err := f.engine.ProcessDue(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if len(*f.fired) != 1 {
		t.Fatalf("published %d events, want 1", len(*f.fired))
	}
}

func TestQueryFailureSurfaces(t *testing.T) {
	f := setupReminders(t)

	f.source.err = errors.New("task api down")
	if _, err := f.engine.ProcessDue(context.Background(), time.Now()); err == nil {
		t.Fatal("query failure reported no error")
	}
}

func TestDedupKeyIsStablePerChannel(t *testing.T) {
	taskID := id.NewTaskID()
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	push := &reminder.Record{TaskID: taskID, RemindAt: at, Type: event.NotifyPush}
	email := &reminder.Record{TaskID: taskID, RemindAt: at, Type: event.NotifyEmail}

	if push.DedupKey() == email.DedupKey() {
		t.Fatal("different channels share a delivery marker")
	}
	if push.DedupKey() != (&reminder.Record{TaskID: taskID, RemindAt: at, Type: event.NotifyPush}).DedupKey() {
		t.Fatal("same reminder produced different marker keys")
	}
}
