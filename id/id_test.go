package id_test

import (
	"encoding/json"
	"testing"

	"github.com/xraph/cadence/id"
)

func TestNewCarriesPrefix(t *testing.T) {
	if got := id.NewTaskID().Prefix(); got != id.PrefixTask {
		t.Fatalf("prefix = %q", got)
	}
	if got := id.NewEventID().Prefix(); got != id.PrefixEvent {
		t.Fatalf("prefix = %q", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := id.NewTaskID()

	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != orig {
		t.Fatalf("parsed %v != original %v", parsed, orig)
	}
}

func TestParseWithPrefixMismatch(t *testing.T) {
	if _, err := id.ParseEventID(id.NewTaskID().String()); err == nil {
		t.Fatal("task ID accepted as event ID")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not-an-id", "task_!!!"} {
		if _, err := id.Parse(s); err == nil {
			t.Fatalf("Parse(%q) accepted", s)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type doc struct {
		TaskID id.ID `json:"task_id"`
	}
	orig := doc{TaskID: id.NewTaskID()}

	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}
	var got doc
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.TaskID != orig.TaskID {
		t.Fatalf("round trip mangled the ID: %v != %v", got.TaskID, orig.TaskID)
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Fatal("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Fatalf("Nil.String() = %q", id.Nil.String())
	}
	if id.NewTaskID().IsNil() {
		t.Fatal("fresh ID reports nil")
	}
}
