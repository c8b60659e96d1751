// Package bus defines the pub/sub transport abstraction and the envelope
// publisher built on it.
package bus

import (
	"context"
	"errors"
)

// ErrTransportClosed is returned when publishing or subscribing on a closed
// transport.
var ErrTransportClosed = errors.New("cadence: transport is closed")

// Handler consumes one raw message. A non-nil error asks the transport to
// redeliver per its own backoff (at-least-once delivery).
type Handler func(ctx context.Context, data []byte) error

// Transport is a pluggable pub/sub broker connection.
//
// Delivery is at-least-once: consumers must be idempotent. Ordering is
// guaranteed only within a partition key, and only by transports that
// support partitioning.
type Transport interface {
	// Publish hands a message to the broker for at-least-once delivery.
	// key is the partition affinity key; transports without partitioning
	// ignore it.
	Publish(ctx context.Context, topic, key string, data []byte) error

	// Subscribe registers a handler for a topic. The handler runs once per
	// delivered message, concurrently across messages.
	Subscribe(ctx context.Context, topic string, h Handler) error

	// Close tears down the broker connection.
	Close() error
}
