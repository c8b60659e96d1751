// Package redis provides a bus.Transport over Redis Pub/Sub.
//
// Redis Pub/Sub is fire-and-forget fan-out: a message published while a
// subscriber is disconnected is lost. The scheduler's sweep jobs are the
// catch-up mechanism for that gap, so the engines stay correct under the
// weaker broker.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/cadence/bus"
)

// compile-time interface check.
var _ bus.Transport = (*Transport)(nil)

// channelPrefix namespaces cadence topics in the Redis keyspace.
const channelPrefix = "cadence:topic:"

// Transport is a Redis Pub/Sub backed transport.
type Transport struct {
	rdb    goredis.UniversalClient
	logger *slog.Logger

	mu     sync.Mutex
	subs   []*goredis.PubSub
	wg     sync.WaitGroup
	closed bool
}

// New creates a transport over the given Redis client.
func New(rdb goredis.UniversalClient, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{rdb: rdb, logger: logger}
}

// Publish sends data on the topic channel. Redis Pub/Sub has no partitions;
// the key is ignored.
func (t *Transport) Publish(ctx context.Context, topic, _ string, data []byte) error {
	if err := t.rdb.Publish(ctx, channelPrefix+topic, data).Err(); err != nil {
		return fmt.Errorf("bus/redis: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the topic channel on a dedicated goroutine until ctx is
// cancelled or the transport is closed.
func (t *Transport) Subscribe(ctx context.Context, topic string, h bus.Handler) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("bus/redis: subscribe %s: transport closed", topic)
	}
	sub := t.rdb.Subscribe(ctx, channelPrefix+topic)
	t.subs = append(t.subs, sub)
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := h(ctx, []byte(msg.Payload)); err != nil {
					// Redis Pub/Sub cannot redeliver; log and move on.
					// The sweep jobs reconcile anything missed.
					t.logger.ErrorContext(ctx, "handler failed, no redelivery",
						"topic", topic, "error", err)
				}
			}
		}
	}()
	return nil
}

// Close unsubscribes all channels and waits for consumer goroutines.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	t.wg.Wait()
	return nil
}
