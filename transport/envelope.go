package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// drainLimit bounds how much of a discarded body is read before closing so
// the underlying connection can be reused without buffering huge payloads.
const drainLimit = 512 * 1024

// ResponseEnvelope is the transport's view of a delivered response. The
// body is open; the caller owns closing it. Stats describe the attempt
// history that produced the response.
type ResponseEnvelope struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	Stats      Stats
}

// Stats records how a request was served.
type Stats struct {
	// Attempts is the number of attempts performed, including the final one.
	Attempts int
	// Elapsed is the total wall time across attempts and backoff waits.
	Elapsed time.Duration
}

// ContentType returns the response Content-Type header.
func (e *ResponseEnvelope) ContentType() string {
	return e.Header.Get(HeaderContentType)
}

// IsJSON reports whether the response declares a JSON content type.
func (e *ResponseEnvelope) IsJSON() bool {
	return strings.Contains(strings.ToLower(e.ContentType()), ContentTypeJSON)
}

// Close drains and closes the body. Safe on a nil envelope.
func (e *ResponseEnvelope) Close() error {
	if e == nil || e.Body == nil {
		return nil
	}
	return drainAndClose(e.Body)
}

func newEnvelope(resp *http.Response, attempts int, elapsed time.Duration) *ResponseEnvelope {
	return &ResponseEnvelope{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		Stats: Stats{
			Attempts: attempts,
			Elapsed:  elapsed,
		},
	}
}

// cancelBody ties a per-attempt cancel function to the response body so the
// attempt deadline keeps covering the body read and is released on Close.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// drainAndClose consumes the remainder of a body before closing it so the
// HTTP connection returns to the pool.
func drainAndClose(body io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, drainLimit))
	return body.Close()
}
