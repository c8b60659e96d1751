package kafka_test

import (
	"context"
	"testing"

	"github.com/xraph/cadence/bus/kafka"
)

func TestClosedTransportRejectsOperations(t *testing.T) {
	tr := kafka.New([]string{"localhost:9092"}, "cadence", nil)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := tr.Publish(ctx, "task.created", "usr_1", []byte(`{}`)); err == nil {
		t.Fatal("publish on closed transport succeeded")
	}
	if err := tr.Subscribe(ctx, "task.created", func(context.Context, []byte) error { return nil }); err == nil {
		t.Fatal("subscribe on closed transport succeeded")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	tr := kafka.New([]string{"localhost:9092"}, "cadence", nil)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
}
