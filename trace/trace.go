// Package trace correlates MTAP operations across process boundaries:
// request IDs attached to every call and idempotency keys minted for safe
// retries of mutating operations.
package trace

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// requestIDKey is the context key for request ID values
	requestIDKey contextKey = "request_id"
	// HeaderXRequestID is the header carrying the per-operation request ID
	HeaderXRequestID = "X-Request-ID"
)

// WithRequestID adds a request ID to the context. Downstream calls made with
// this context reuse the ID instead of minting a new one.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID from context if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		return requestID, true
	}
	return "", false
}

// EnsureRequestID returns the request ID from context or generates a new one
func EnsureRequestID(ctx context.Context) string {
	if requestID, ok := RequestIDFromContext(ctx); ok {
		return requestID
	}
	return uuid.New().String()
}

// NewIdempotencyKey mints a key for request-scoped idempotent retries.
// Callers that need cross-call idempotency supply their own stable key
// instead.
func NewIdempotencyKey() string {
	return uuid.New().String()
}
