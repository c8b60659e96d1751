// Package kafka provides a bus.Transport over Apache Kafka.
//
// Each cadence topic maps to one Kafka topic; the envelope partition key is
// the message key, so a hash balancer keeps all events for one owner on one
// partition and consumers see them in order. Subscribing services consume
// through per-service consumer groups, each group receiving the full stream.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/xraph/cadence/bus"
)

// compile-time interface check.
var _ bus.Transport = (*Transport)(nil)

// Transport is a Kafka backed transport.
type Transport struct {
	brokers []string
	service string
	logger  *slog.Logger

	mu      sync.Mutex
	writers map[string]*kgo.Writer
	readers []*kgo.Reader
	cancel  []context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// New creates a transport over the given brokers. The service name scopes
// consumer group IDs so independent services each receive the full stream.
func New(brokers []string, service string, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		brokers: brokers,
		service: service,
		logger:  logger,
		writers: make(map[string]*kgo.Writer),
	}
}

// Publish sends data on the mapped Kafka topic with the partition key as
// message key.
func (t *Transport) Publish(ctx context.Context, topic, key string, data []byte) error {
	w, err := t.writer(topic)
	if err != nil {
		return err
	}

	err = w.WriteMessages(ctx, kgo.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("bus/kafka: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the topic through this service's consumer group until
// ctx is cancelled or the transport is closed. Offsets commit only after the
// handler succeeds; a failed message stays uncommitted and redelivers when
// the group rebalances.
func (t *Transport) Subscribe(ctx context.Context, topic string, h bus.Handler) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("bus/kafka: subscribe %s: transport closed", topic)
	}
	reader := kgo.NewReader(kgo.ReaderConfig{
		Brokers:        t.brokers,
		Topic:          topicID(topic),
		GroupID:        topicID(topic) + "--" + t.service,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits
	})
	recvCtx, cancel := context.WithCancel(ctx)
	t.readers = append(t.readers, reader)
	t.cancel = append(t.cancel, cancel)
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		for {
			m, err := reader.FetchMessage(recvCtx)
			if err != nil {
				// A closed reader surfaces io.EOF.
				if recvCtx.Err() == nil && !errors.Is(err, io.EOF) {
					t.logger.ErrorContext(recvCtx, "fetch loop ended",
						"topic", topic, "error", err)
				}
				return
			}
			if err := h(recvCtx, m.Value); err != nil {
				t.logger.ErrorContext(recvCtx, "handler failed, offset left uncommitted",
					"topic", topic, "partition", m.Partition, "offset", m.Offset, "error", err)
				continue
			}
			if err := reader.CommitMessages(recvCtx, m); err != nil {
				t.logger.ErrorContext(recvCtx, "commit failed",
					"topic", topic, "partition", m.Partition, "offset", m.Offset, "error", err)
			}
		}
	}()
	return nil
}

// Close stops all fetch loops and the writers.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	cancels := t.cancel
	readers := t.readers
	writers := t.writers
	t.cancel = nil
	t.readers = nil
	t.writers = make(map[string]*kgo.Writer)
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, w := range writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.wg.Wait()
	return errors.Join(errs...)
}

// writer returns the shared writer for a topic, creating it on first use.
func (t *Transport) writer(topic string) (*kgo.Writer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("bus/kafka: publish %s: transport closed", topic)
	}
	if w, ok := t.writers[topic]; ok {
		return w, nil
	}

	w := &kgo.Writer{
		Addr:                   kgo.TCP(t.brokers...),
		Topic:                  topicID(topic),
		Balancer:               &kgo.Hash{}, // same key, same partition
		RequiredAcks:           kgo.RequireOne,
		AllowAutoTopicCreation: true,
	}
	t.writers[topic] = w
	return w, nil
}

// topicID namespaces a cadence topic in the broker. Kafka topic names allow
// dots, so the dotted event topic carries through unchanged.
func topicID(topic string) string {
	return "cadence." + topic
}
