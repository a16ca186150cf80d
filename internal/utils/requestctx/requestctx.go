// Package requestctx carries the request correlation ID through a context.
// The same ID tags access logs, domain logs and artifact IDs.
package requestctx

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the ID carried by ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewID returns a fresh request ID.
func NewID() string {
	return uuid.New().String()
}

// EnsureRequestID returns the ID carried by ctx, minting and attaching a new
// one when there is none.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestID(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithRequestID(ctx, id), id
}
