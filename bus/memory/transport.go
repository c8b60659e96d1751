// Package memory provides an in-process bus.Transport for unit testing and
// single-binary deployments.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/cadence/bus"
)

// compile-time interface check.
var _ bus.Transport = (*Transport)(nil)

// Transport fans messages out to in-process subscribers.
//
// Handlers run synchronously inside Publish so tests observe effects without
// sleeping. A handler error is surfaced to the publisher after all handlers
// ran; the transport itself performs no redelivery; tests drive retries by
// publishing again, which is exactly what an at-least-once broker does.
type Transport struct {
	mu       sync.RWMutex
	handlers map[string][]bus.Handler
	closed   bool
}

// New creates a new in-process transport.
func New() *Transport {
	return &Transport{
		handlers: make(map[string][]bus.Handler),
	}
}

// Publish delivers data to every subscriber of topic, in subscription order.
func (t *Transport) Publish(ctx context.Context, topic, _ string, data []byte) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return bus.ErrTransportClosed
	}
	hs := append([]bus.Handler(nil), t.handlers[topic]...)
	t.mu.RUnlock()

	var firstErr error
	for _, h := range hs {
		if err := h(ctx, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for topic.
func (t *Transport) Subscribe(_ context.Context, topic string, h bus.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return bus.ErrTransportClosed
	}
	t.handlers[topic] = append(t.handlers[topic], h)
	return nil
}

// Close marks the transport as closed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
