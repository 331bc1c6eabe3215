package logger

import (
	"context"
	"sync/atomic"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// callCounterKey is the context key for tracking wire call count per operation
	callCounterKey contextKey = "wire_call_counter"
	// callElapsedKey is the context key for tracking total wire elapsed time per operation
	callElapsedKey contextKey = "wire_elapsed_nanos"
)

// WithCallCounter creates a new context with a wire call counter and elapsed
// time tracker. The transport increments both for every HTTP attempt, retries
// included, so an embedding application can log how much wire traffic a single
// logical operation produced.
func WithCallCounter(ctx context.Context) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, callCounterKey, &counter)
	ctx = context.WithValue(ctx, callElapsedKey, &elapsed)
	return ctx
}

// IncrementCallCounter increments the wire call counter in the context
func IncrementCallCounter(ctx context.Context) {
	if counter, ok := ctx.Value(callCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetCallCounter returns the current wire call count from the context
func GetCallCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(callCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddCallElapsed adds elapsed nanoseconds to the wire elapsed time in the context
func AddCallElapsed(ctx context.Context, nanos int64) {
	if elapsed, ok := ctx.Value(callElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// GetCallElapsed returns the current wire elapsed time in nanoseconds from the context
func GetCallElapsed(ctx context.Context) int64 {
	if elapsed, ok := ctx.Value(callElapsedKey).(*int64); ok && elapsed != nil {
		return atomic.LoadInt64(elapsed)
	}
	return 0
}
