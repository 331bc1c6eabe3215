package transport

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideOutcome(t *testing.T) {
	forcelist := DefaultRetryPolicy().retryable

	tests := []struct {
		name        string
		callErr     error
		statusCode  int
		parentErr   error
		wantOutcome attemptOutcome
		wantType    ErrorType
	}{
		{
			name:        "success status delivers",
			statusCode:  200,
			wantOutcome: outcomeDeliver,
		},
		{
			name:        "client error status delivers",
			statusCode:  400,
			wantOutcome: outcomeDeliver,
		},
		{
			name:        "rate limit status delivers",
			statusCode:  429,
			wantOutcome: outcomeDeliver,
		},
		{
			name:        "non-forcelist server status delivers",
			statusCode:  501,
			wantOutcome: outcomeDeliver,
		},
		{
			name:        "forcelist status retries",
			statusCode:  503,
			wantOutcome: outcomeRetry,
			wantType:    HTTPError,
		},
		{
			name:        "connection failure retries",
			callErr:     errors.New("connection refused"),
			wantOutcome: outcomeRetry,
			wantType:    NetworkError,
		},
		{
			name:        "attempt deadline retries",
			callErr:     &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded},
			wantOutcome: outcomeRetry,
			wantType:    TimeoutError,
		},
		{
			name:        "net timeout retries",
			callErr:     &net.DNSError{Err: "lookup timeout", IsTimeout: true},
			wantOutcome: outcomeRetry,
			wantType:    TimeoutError,
		},
		{
			name:        "caller cancellation aborts",
			callErr:     &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled},
			wantOutcome: outcomeAbort,
			wantType:    CanceledError,
		},
		{
			name:        "parent context done aborts even on retryable failure",
			callErr:     context.DeadlineExceeded,
			parentErr:   context.DeadlineExceeded,
			wantOutcome: outcomeAbort,
			wantType:    CanceledError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := decideOutcome(tt.callErr, tt.statusCode, tt.parentErr, forcelist)

			assert.Equal(t, tt.wantOutcome, outcome, "outcome %s", outcome)
			if tt.wantOutcome == outcomeDeliver {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsErrorType(err, tt.wantType), "want %s, got %v", tt.wantType, err)
		})
	}
}

func TestDecideOutcomeCarriesStatus(t *testing.T) {
	_, err := decideOutcome(nil, 502, nil, DefaultRetryPolicy().retryable)

	require.Error(t, err)
	status, ok := StatusCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, 502, status)
	assert.True(t, IsHTTPStatusError(err, 502))
}

func TestDecideOutcomeWrapsContextError(t *testing.T) {
	_, err := decideOutcome(context.Canceled, 0, context.Canceled, DefaultRetryPolicy().retryable)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "deliver", outcomeDeliver.String())
	assert.Equal(t, "retry", outcomeRetry.String())
	assert.Equal(t, "abort", outcomeAbort.String())
	assert.Equal(t, "unknown", attemptOutcome(42).String())
}

func TestSleepContext(t *testing.T) {
	t.Run("returns after delay", func(t *testing.T) {
		start := time.Now()
		err := sleepContext(context.Background(), 10*time.Millisecond)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("zero delay returns immediately", func(t *testing.T) {
		assert.NoError(t, sleepContext(context.Background(), 0))
	})

	t.Run("cancellation interrupts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := sleepContext(ctx, 10*time.Second)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("already canceled context fails fast", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := sleepContext(ctx, time.Second)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(context.DeadlineExceeded))
	assert.True(t, isTimeout(&net.DNSError{IsTimeout: true}))
	assert.True(t, isTimeout(&url.Error{Err: context.DeadlineExceeded}))
	assert.False(t, isTimeout(errors.New("connection reset")))
	assert.False(t, isTimeout(context.Canceled))
}

func TestUnwrapURLError(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	wrapped := &url.Error{Op: "Post", URL: "http://x", Err: inner}

	assert.Equal(t, inner, unwrapURLError(wrapped))
	assert.Equal(t, inner, unwrapURLError(inner))
}
