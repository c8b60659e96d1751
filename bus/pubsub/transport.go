// Package pubsub provides a bus.Transport over Google Cloud Pub/Sub.
//
// Each cadence topic maps to one Pub/Sub topic; each subscribing service
// consumes through a per-service subscription ("<topic>--<service>") so
// every service sees every message exactly as a consumer group would.
// Ordering keys carry the envelope partition key, giving per-owner ordering.
package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub"

	"github.com/xraph/cadence/bus"
)

// compile-time interface check.
var _ bus.Transport = (*Transport)(nil)

// Transport is a Google Cloud Pub/Sub backed transport.
type Transport struct {
	client  *gcppubsub.Client
	service string
	logger  *slog.Logger

	mu     sync.Mutex
	topics map[string]*gcppubsub.Topic
	cancel []context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a transport for the given service name over an existing client.
// The service name scopes subscription IDs so independent services each
// receive the full stream.
func New(client *gcppubsub.Client, service string, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		client:  client,
		service: service,
		logger:  logger,
		topics:  make(map[string]*gcppubsub.Topic),
	}
}

// Publish sends data on the mapped Pub/Sub topic with the partition key as
// ordering key.
func (t *Transport) Publish(ctx context.Context, topic, key string, data []byte) error {
	pt, err := t.topic(ctx, topic)
	if err != nil {
		return err
	}

	res := pt.Publish(ctx, &gcppubsub.Message{
		Data:        data,
		OrderingKey: key,
	})
	if _, err := res.Get(ctx); err != nil {
		// A failed ordering key pauses the whole key; resume so later
		// events for this owner are not wedged behind a dead publish.
		pt.ResumePublish(key)
		return fmt.Errorf("bus/pubsub: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe ensures the per-service subscription exists and consumes it until
// ctx is cancelled.
func (t *Transport) Subscribe(ctx context.Context, topic string, h bus.Handler) error {
	pt, err := t.topic(ctx, topic)
	if err != nil {
		return err
	}

	subID := topicID(topic) + "--" + t.service
	sub := t.client.Subscription(subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("bus/pubsub: check subscription %s: %w", subID, err)
	}
	if !exists {
		sub, err = t.client.CreateSubscription(ctx, subID, gcppubsub.SubscriptionConfig{
			Topic:                 pt,
			EnableMessageOrdering: true,
		})
		if err != nil {
			return fmt.Errorf("bus/pubsub: create subscription %s: %w", subID, err)
		}
	}

	recvCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = append(t.cancel, cancel)
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		err := sub.Receive(recvCtx, func(ctx context.Context, m *gcppubsub.Message) {
			if err := h(ctx, m.Data); err != nil {
				m.Nack() // broker redelivers per its own backoff
				return
			}
			m.Ack()
		})
		if err != nil && recvCtx.Err() == nil {
			t.logger.ErrorContext(ctx, "receive loop ended",
				"subscription", subID, "error", err)
		}
	}()
	return nil
}

// Close stops all receive loops and the underlying client.
func (t *Transport) Close() error {
	t.mu.Lock()
	cancels := t.cancel
	t.cancel = nil
	for _, pt := range t.topics {
		pt.Stop()
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	t.wg.Wait()
	return t.client.Close()
}

// topic returns the Pub/Sub topic handle for a cadence topic, creating the
// broker topic on first use.
func (t *Transport) topic(ctx context.Context, topic string) (*gcppubsub.Topic, error) {
	t.mu.Lock()
	if pt, ok := t.topics[topic]; ok {
		t.mu.Unlock()
		return pt, nil
	}
	t.mu.Unlock()

	id := topicID(topic)
	pt := t.client.Topic(id)
	exists, err := pt.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("bus/pubsub: check topic %s: %w", id, err)
	}
	if !exists {
		pt, err = t.client.CreateTopic(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("bus/pubsub: create topic %s: %w", id, err)
		}
	}
	pt.EnableMessageOrdering = true

	t.mu.Lock()
	t.topics[topic] = pt
	t.mu.Unlock()
	return pt, nil
}

// topicID maps a dotted cadence topic name to a Pub/Sub topic ID.
func topicID(topic string) string {
	return "cadence-" + strings.ReplaceAll(topic, ".", "-")
}
