package transport

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Default retry policy values applied when a field is left at its zero value.
const (
	DefaultMaxAttempts   = 3
	DefaultBackoffFactor = 500 * time.Millisecond
	DefaultMaxDelay      = 60 * time.Second
)

// Default per-phase timeouts applied when a field is left at its zero value.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
)

// jitterRatio is the symmetric fraction of the base delay added or removed
// per retry to avoid synchronized retry storms across clients.
const jitterRatio = 0.1

// maxBackoffExponent caps the exponential term so the float math cannot
// overflow into a negative duration on absurd attempt counts.
const maxBackoffExponent = 32

// DefaultRetryableStatuses returns the status forcelist used when a policy
// does not override it.
func DefaultRetryableStatuses() []int {
	return []int{500, 502, 503, 504}
}

// RetryPolicy controls how many times a request is attempted and how long
// the transport waits between attempts. Delays grow exponentially with
// symmetric jitter and are capped at MaxDelay.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget including the first try.
	MaxAttempts int
	// BackoffFactor is the base delay; attempt k waits BackoffFactor * 2^(k-1).
	BackoffFactor time.Duration
	// MaxDelay caps a single inter-attempt delay after jitter.
	MaxDelay time.Duration
	// RetryableStatuses lists the HTTP statuses that trigger a retry.
	// Statuses outside this list are delivered to the caller immediately.
	RetryableStatuses []int
}

// DefaultRetryPolicy returns the retry policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       DefaultMaxAttempts,
		BackoffFactor:     DefaultBackoffFactor,
		MaxDelay:          DefaultMaxDelay,
		RetryableStatuses: DefaultRetryableStatuses(),
	}
}

// withDefaults fills zero-valued fields from the default policy.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BackoffFactor == 0 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.RetryableStatuses == nil {
		p.RetryableStatuses = DefaultRetryableStatuses()
	}
	return p
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return NewValidationError("max attempts must be at least 1", "max_attempts")
	}
	if p.BackoffFactor < 0 {
		return NewValidationError("backoff factor must not be negative", "backoff_factor")
	}
	if p.MaxDelay < 0 {
		return NewValidationError("max delay must not be negative", "max_delay")
	}
	for _, status := range p.RetryableStatuses {
		if status < 100 || status > 599 {
			return NewValidationError(
				fmt.Sprintf("retryable status %d outside valid HTTP range", status),
				"retryable_statuses")
		}
	}
	return nil
}

// retryable reports whether the status is on the policy forcelist.
func (p RetryPolicy) retryable(status int) bool {
	return slices.Contains(p.RetryableStatuses, status)
}

// backoffDelay computes the wait before the attempt following the given one.
// attempt is 1-based (the attempt that just failed). rnd supplies a value in
// [0,1) so tests can pin the jitter; the transport passes a seeded source.
//
// The delay is BackoffFactor * 2^(attempt-1), jittered by ±10% and clamped
// to [0, MaxDelay].
func (p RetryPolicy) backoffDelay(attempt int, rnd func() float64) time.Duration {
	exp := attempt - 1
	if exp < 0 {
		exp = 0
	}
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	base := float64(p.BackoffFactor) * math.Pow(2, float64(exp))
	jitter := base * jitterRatio * (2*rnd() - 1)
	delay := time.Duration(base + jitter)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// TimeoutPolicy bounds the phases of a single attempt. Connect limits dial
// time, Read limits the wait for response headers, and the sum of all three
// acts as the overall budget for a buffered exchange. Streaming responses
// are only bounded through Connect and Read; body reads are caller paced.
type TimeoutPolicy struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// DefaultTimeoutPolicy returns the timeout policy used when none is configured.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		Connect: DefaultConnectTimeout,
		Read:    DefaultReadTimeout,
		Write:   DefaultWriteTimeout,
	}
}

// withDefaults fills zero-valued fields from the default policy.
func (p TimeoutPolicy) withDefaults() TimeoutPolicy {
	if p.Connect == 0 {
		p.Connect = DefaultConnectTimeout
	}
	if p.Read == 0 {
		p.Read = DefaultReadTimeout
	}
	if p.Write == 0 {
		p.Write = DefaultWriteTimeout
	}
	return p
}

// Validate checks the policy invariants.
func (p TimeoutPolicy) Validate() error {
	if p.Connect < 0 || p.Read < 0 || p.Write < 0 {
		return NewValidationError("timeouts must not be negative", "timeout")
	}
	return nil
}

// requestBudget returns the overall deadline applied to one buffered attempt.
func (p TimeoutPolicy) requestBudget() time.Duration {
	return p.Connect + p.Read + p.Write
}
