package mtapclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/mtap-io/mtap-go/session"
	"github.com/mtap-io/mtap-go/trace"
	"github.com/mtap-io/mtap-go/transport"
)

// maxErrorBodyBytes bounds the best-effort read of an error response body.
const maxErrorBodyBytes = 512 * 1024

// apiResponse is a fully buffered successful response.
type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r *apiResponse) contentType() string {
	return r.header.Get(transport.HeaderContentType)
}

func (r *apiResponse) isJSON() bool {
	return isJSONContentType(r.contentType())
}

// send runs the descriptor through the pipeline and buffers the response.
// The body is closed on every path.
func (c *Client) send(ctx context.Context, desc *transport.RequestDescriptor) (*apiResponse, error) {
	env, err := c.execute(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	body, err := io.ReadAll(env.Body)
	if err != nil {
		return nil, NewNetworkFailure("failed to read response body", err)
	}
	return &apiResponse{status: env.StatusCode, header: env.Header, body: body}, nil
}

// sendJSON buffers the response and decodes it into target.
func (c *Client) sendJSON(ctx context.Context, desc *transport.RequestDescriptor, target any) error {
	res, err := c.send(ctx, desc)
	if err != nil {
		return err
	}
	return decodeJSON(res, desc.URL, target)
}

// sendStream runs the descriptor in streaming mode and hands back the
// envelope with its body open and unread. The caller owns closing it.
func (c *Client) sendStream(ctx context.Context, desc *transport.RequestDescriptor) (*transport.ResponseEnvelope, error) {
	desc.StreamResponse = true
	return c.execute(ctx, desc)
}

// execute is the shared request pipeline: session establishment, auth
// header injection, header merging, transport dispatch, and status
// classification. Expected statuses come back as an open envelope;
// everything else is drained, closed, and returned as a typed API error.
func (c *Client) execute(ctx context.Context, desc *transport.RequestDescriptor) (*transport.ResponseEnvelope, error) {
	if c.closed.Load() {
		return nil, errClientClosed()
	}

	if _, err := c.sessions.Ensure(ctx); err != nil {
		return nil, wrapSessionError(err)
	}
	authHeaders, err := c.sessions.AuthHeaders(ctx)
	if err != nil {
		return nil, wrapSessionError(err)
	}
	desc.Headers = c.mergeHeaders(ctx, desc.Headers, authHeaders)

	start := time.Now()
	c.logRequest(desc)

	env, execErr := c.transport.Execute(ctx, desc)
	if env == nil {
		clientErr := wrapTransportError(execErr)
		c.logFailure(desc, clientErr, time.Since(start))
		return nil, clientErr
	}

	// A forcelist status that survived the attempt budget arrives here as
	// an envelope too; the status check below classifies it like any other
	// unexpected status.
	if !slices.Contains(desc.ExpectedStatus, env.StatusCode) {
		clientErr := c.classifyEnvelope(desc.URL, env)
		c.logFailure(desc, clientErr, time.Since(start))
		return nil, clientErr
	}

	c.logResponse(desc, env, time.Since(start))
	return env, nil
}

// classifyEnvelope reads the error body best-effort, always closes the
// envelope, and maps the status to its typed error. Secondary read
// failures are swallowed; the status alone still classifies.
func (c *Client) classifyEnvelope(url string, env *transport.ResponseEnvelope) ClientError {
	var body []byte
	if env.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(env.Body, maxErrorBodyBytes))
	}
	_ = env.Close()
	return classifyResponse(url, env.StatusCode, env.ContentType(), body)
}

// mergeHeaders layers client defaults, the request correlation ID,
// per-call overrides, and auth headers, in ascending precedence.
func (c *Client) mergeHeaders(ctx context.Context, perCall, auth map[string]string) map[string]string {
	merged := make(map[string]string, len(c.defaultHeaders)+len(perCall)+len(auth)+1)
	for k, v := range c.defaultHeaders {
		merged[k] = v
	}
	merged[trace.HeaderXRequestID] = trace.EnsureRequestID(ctx)
	for k, v := range perCall {
		merged[k] = v
	}
	for k, v := range auth {
		merged[k] = v
	}
	return merged
}

// decodeJSON unmarshals a buffered success response into target. An empty
// body leaves the target zeroed; a malformed body on a success status is
// an unexpected error carrying that status.
func decodeJSON(res *apiResponse, url string, target any) error {
	if len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, target); err != nil {
		return &unexpectedError{
			message:    fmt.Sprintf("failed to decode JSON response from %s", url),
			statusCode: res.status,
			wrapped:    err,
		}
	}
	return nil
}

func errClientClosed() ClientError {
	return NewConfigurationError("client is closed", "")
}

// wrapSessionError maps session-manager failures onto the client taxonomy.
// A missing provider is a setup problem; everything else failed to
// establish an authenticated session.
func wrapSessionError(err error) ClientError {
	if errors.Is(err, session.ErrNoProvider) {
		return &configurationError{message: "no auth provider configured", field: "auth_provider", wrapped: err}
	}
	return &apiError{
		kind:    AuthenticationError,
		message: "failed to establish authenticated session",
		wrapped: err,
	}
}

// wrapTransportError maps transport failures onto the client taxonomy.
// Descriptor validation never reached the network and is a configuration
// problem; cancellation, timeouts and connection failures are network
// failures whose cause chain stays reachable through errors.Is.
func wrapTransportError(err error) ClientError {
	switch {
	case transport.IsErrorType(err, transport.ValidationError):
		return &configurationError{message: "invalid request", wrapped: err}
	case transport.IsErrorType(err, transport.CanceledError):
		return &networkFailure{message: "request canceled", wrapped: err}
	case transport.IsErrorType(err, transport.TimeoutError):
		return &networkFailure{message: "request timed out", wrapped: err}
	default:
		return &networkFailure{message: "request failed", wrapped: err}
	}
}

func (c *Client) logRequest(desc *transport.RequestDescriptor) {
	event := c.log.Debug().
		Str("method", desc.Method).
		Str("url", desc.URL)
	if len(desc.Headers) > 0 {
		event.Interface("headers", c.headerFilter.FilterHeaders(desc.Headers))
	}
	event.Msg("MTAP request")
}

func (c *Client) logResponse(desc *transport.RequestDescriptor, env *transport.ResponseEnvelope, elapsed time.Duration) {
	c.log.Info().
		Str("method", desc.Method).
		Str("url", desc.URL).
		Int("status", env.StatusCode).
		Int("attempts", env.Stats.Attempts).
		Dur("elapsed", elapsed).
		Msg("MTAP request completed")
}

func (c *Client) logFailure(desc *transport.RequestDescriptor, err error, elapsed time.Duration) {
	c.log.Warn().
		Str("method", desc.Method).
		Str("url", desc.URL).
		Err(err).
		Dur("elapsed", elapsed).
		Msg("MTAP request failed")
}

// joinPath builds an endpoint path from raw segments. Segments are IDs
// supplied by callers; escaping keeps them opaque on the wire.
func joinPath(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.Join(escaped, "/")
}
