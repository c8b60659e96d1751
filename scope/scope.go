// Package scope carries event provenance through context: the owner a
// message belongs to and the event that caused the current work. The
// dispatcher injects both before running a handler, so envelopes published
// from inside a handler inherit them without threading extra parameters.
package scope

import "context"

type contextKey int

const (
	ownerKey contextKey = iota
	causationKey
)

// WithOwner returns a context carrying the owner ID.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	if ownerID == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerKey, ownerID)
}

// Owner extracts the owner ID from the context, or empty string.
func Owner(ctx context.Context) string {
	v, _ := ctx.Value(ownerKey).(string)
	return v
}

// WithCausation returns a context carrying the ID of the event that caused
// the current work.
func WithCausation(ctx context.Context, eventID string) context.Context {
	if eventID == "" {
		return ctx
	}
	return context.WithValue(ctx, causationKey, eventID)
}

// Causation extracts the causing event ID from the context, or empty string.
func Causation(ctx context.Context) string {
	v, _ := ctx.Value(causationKey).(string)
	return v
}
