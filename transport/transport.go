package transport

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mtap-io/mtap-go/logger"
)

// Connection pool defaults for the shared HTTP client.
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
)

// burstMultiplier sizes the limiter burst relative to the sustained rate
// when no explicit burst is configured.
const burstMultiplier = 2

// Config assembles a Transport.
type Config struct {
	// Retry controls attempts, backoff and the status forcelist. Zero
	// fields fall back to DefaultRetryPolicy.
	Retry RetryPolicy
	// Timeout bounds each attempt. Zero fields fall back to
	// DefaultTimeoutPolicy.
	Timeout TimeoutPolicy
	// RequestsPerSecond enables client-side throttling when positive.
	RequestsPerSecond int
	// Burst overrides the limiter burst; defaults to twice the rate.
	Burst int
	// HTTPClient overrides the pooled client. Tests inject stub round
	// trippers through this; production code normally leaves it nil.
	HTTPClient *http.Client
	// Logger receives attempt-level diagnostics. Defaults to a disabled
	// logger.
	Logger logger.Logger
}

// Transport executes request descriptors against a shared connection pool
// with retries, exponential backoff and optional client-side throttling.
// A Transport is safe for concurrent use and is meant to be shared by all
// operations of one client.
type Transport struct {
	client  *http.Client
	retry   RetryPolicy
	timeout TimeoutPolicy
	limiter *rate.Limiter
	log     logger.Logger
	// jitter supplies values in [0,1) for backoff randomization; tests
	// pin it to exercise the delay bounds.
	jitter func() float64
}

// New creates a Transport from the config, applying defaults to zero-valued
// policies and validating the result.
func New(cfg Config) (*Transport, error) {
	retry := cfg.Retry.withDefaults()
	if err := retry.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout.withDefaults()
	if err := timeout.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New("disabled", false)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = newPooledClient(timeout)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RequestsPerSecond * burstMultiplier
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Transport{
		client:  client,
		retry:   retry,
		timeout: timeout,
		limiter: limiter,
		log:     log,
		jitter:  rand.Float64,
	}, nil
}

// newPooledClient builds the shared HTTP client. Dial time is bounded by the
// connect timeout and the wait for response headers by the read timeout; the
// overall per-attempt budget is enforced separately through the request
// context so streaming responses stay unbounded.
func newPooledClient(timeout TimeoutPolicy) *http.Client {
	dialer := &net.Dialer{Timeout: timeout.Connect}
	pool := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ResponseHeaderTimeout: timeout.Read,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: pool}
}

// Execute runs the descriptor through the retry loop and returns the final
// response envelope.
//
// Contract:
//   - any status off the retry forcelist is delivered as (envelope, nil);
//     status interpretation belongs to the caller
//   - a forcelist status that survives the attempt budget returns the final
//     envelope, body still open, alongside an HTTP error carrying the status
//   - network or timeout exhaustion returns (nil, error)
//   - caller cancellation aborts immediately with a cancellation error
//
// The caller owns closing the returned envelope.
func (t *Transport) Execute(ctx context.Context, desc *RequestDescriptor) (*ResponseEnvelope, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	body, err := encodeBody(desc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= t.retry.MaxAttempts; attempt++ {
		if err := t.waitForSlot(ctx); err != nil {
			return nil, err
		}

		resp, callErr := t.attempt(ctx, desc, body)
		if IsErrorType(callErr, ValidationError) {
			// Request construction failed client-side; nothing to retry.
			return nil, callErr
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		outcome, pendingErr := decideOutcome(callErr, status, ctx.Err(), t.retry.retryable)

		switch outcome {
		case outcomeDeliver:
			env := newEnvelope(resp, attempt, time.Since(start))
			t.logDelivered(desc, env)
			return env, nil

		case outcomeAbort:
			if resp != nil {
				_ = drainAndClose(resp.Body)
			}
			t.log.Debug().
				Str("method", desc.Method).
				Str("url", desc.URL).
				Int("attempt", attempt).
				Err(pendingErr).
				Msg("Request aborted")
			return nil, pendingErr

		case outcomeRetry:
			lastErr = pendingErr
			if attempt == t.retry.MaxAttempts || !body.replayable() {
				// Out of budget, or the body stream is gone and cannot
				// back another attempt. A response, when present, is
				// still handed over so its body can be classified.
				elapsed := time.Since(start)
				t.logExhausted(desc, attempt, lastErr)
				if resp != nil {
					return newEnvelope(resp, attempt, elapsed), lastErr
				}
				return nil, lastErr
			}
			if resp != nil {
				_ = drainAndClose(resp.Body)
			}
			delay := t.retry.backoffDelay(attempt, t.jitter)
			t.logRetry(desc, attempt, status, callErr, delay)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, NewCanceledError("request canceled during retry backoff", err)
			}
		}
	}
	return nil, lastErr
}

// attempt performs one HTTP exchange. The per-attempt deadline covers the
// body read and is released when the response body is closed.
func (t *Transport) attempt(ctx context.Context, desc *RequestDescriptor, body *requestBody) (*http.Response, error) {
	reader, err := body.newReader()
	if err != nil {
		return nil, err
	}

	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if budget := t.budgetFor(desc); budget > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, budget)
	}

	req, err := http.NewRequestWithContext(attemptCtx, desc.Method, desc.URL, reader)
	if err != nil {
		cancel()
		return nil, NewValidationError(fmt.Sprintf("cannot build request: %v", err), "request")
	}
	applyHeaders(req, desc, body)

	started := time.Now()
	resp, err := t.client.Do(req)
	logger.IncrementCallCounter(ctx)
	logger.AddCallElapsed(ctx, time.Since(started).Nanoseconds())
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// budgetFor returns the overall deadline for one attempt of this request.
// Zero means no attempt-level deadline.
func (t *Transport) budgetFor(desc *RequestDescriptor) time.Duration {
	if desc.StreamResponse {
		// Streaming bodies are caller paced; only dial and header waits
		// are bounded, at the pool level.
		return 0
	}
	policy := t.timeout
	if desc.Timeout != nil {
		policy = desc.Timeout.withDefaults()
	}
	return policy.requestBudget()
}

func applyHeaders(req *http.Request, desc *RequestDescriptor, body *requestBody) {
	for key, value := range desc.Headers {
		req.Header.Set(key, value)
	}
	if desc.IdempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, desc.IdempotencyKey)
	}
	switch {
	case body.forceContentType:
		req.Header.Set(HeaderContentType, body.contentType)
	case body.contentType != "" && req.Header.Get(HeaderContentType) == "":
		req.Header.Set(HeaderContentType, body.contentType)
	}
}

// waitForSlot blocks on the client-side limiter when one is configured.
func (t *Transport) waitForSlot(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return NewCanceledError("request canceled while rate limited", ctx.Err())
		}
		return NewValidationError(fmt.Sprintf("client-side rate limit rejected request: %v", err), "rate_limit")
	}
	return nil
}

// Close releases idle connections held by the pooled client.
func (t *Transport) Close() {
	t.client.CloseIdleConnections()
}

func (t *Transport) logDelivered(desc *RequestDescriptor, env *ResponseEnvelope) {
	t.log.Debug().
		Str("method", desc.Method).
		Str("url", desc.URL).
		Int("status", env.StatusCode).
		Int("attempts", env.Stats.Attempts).
		Dur("elapsed", env.Stats.Elapsed).
		Msg("Request completed")
}

func (t *Transport) logRetry(desc *RequestDescriptor, attempt, status int, callErr error, delay time.Duration) {
	event := t.log.Warn().
		Str("method", desc.Method).
		Str("url", desc.URL).
		Int("attempt", attempt).
		Int("max_attempts", t.retry.MaxAttempts).
		Dur("delay", delay)
	if status > 0 {
		event = event.Int("status", status)
	}
	if callErr != nil {
		event = event.Err(unwrapURLError(callErr))
	}
	event.Msg("Retrying request")
}

func (t *Transport) logExhausted(desc *RequestDescriptor, attempts int, err error) {
	t.log.Error().
		Str("method", desc.Method).
		Str("url", desc.URL).
		Int("attempts", attempts).
		Err(err).
		Msg("Request failed after all attempts")
}
