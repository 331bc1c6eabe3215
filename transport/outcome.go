package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// attemptOutcome tags the result of a single attempt. The retry loop acts on
// the tag; the classification itself performs no I/O and no clock reads so it
// can be tested exhaustively.
type attemptOutcome int

const (
	// outcomeDeliver hands the response to the caller as-is.
	outcomeDeliver attemptOutcome = iota
	// outcomeRetry schedules another attempt if budget remains.
	outcomeRetry
	// outcomeAbort surfaces the error immediately without retrying.
	outcomeAbort
)

func (o attemptOutcome) String() string {
	switch o {
	case outcomeDeliver:
		return "deliver"
	case outcomeRetry:
		return "retry"
	case outcomeAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// decideOutcome classifies one attempt given the call error, the response
// status (0 when no response was produced), the caller context error at the
// time the attempt finished, and the policy forcelist predicate.
//
// The returned error is the one that surfaces if this outcome ends the
// request: the abort cause, or the pending failure kept while retrying.
// A deliver outcome carries no error.
//
// Rules:
//   - caller cancellation or an expired caller deadline aborts, even when
//     the underlying failure would otherwise be retryable
//   - attempt-level timeouts and connectivity failures retry
//   - a status on the forcelist retries; any other status delivers
func decideOutcome(callErr error, statusCode int, parentErr error, retryable func(int) bool) (attemptOutcome, error) {
	if callErr != nil {
		if parentErr != nil {
			return outcomeAbort, NewCanceledError("request canceled by caller", parentErr)
		}
		if errors.Is(callErr, context.Canceled) {
			return outcomeAbort, NewCanceledError("request canceled", context.Canceled)
		}
		if isTimeout(callErr) {
			return outcomeRetry, NewTimeoutError("request timed out", 0, callErr)
		}
		return outcomeRetry, NewNetworkError("request failed", callErr)
	}
	if retryable(statusCode) {
		return outcomeRetry, NewHTTPError(
			fmt.Sprintf("retryable status %d persisted after all attempts", statusCode),
			statusCode)
	}
	return outcomeDeliver, nil
}

// isTimeout reports whether the error represents an attempt-level timeout:
// either the per-attempt deadline fired or the network stack timed out.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// sleepContext waits for the given delay or until the context is done,
// whichever comes first. Separated from the retry loop so tests can cover
// cancellation during a backoff window without a real transport.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// unwrapURLError strips the *url.Error envelope added by net/http so logged
// causes stay short. Classification never depends on this.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
