package transport

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// Wire-contract header names shared by the transport and the SDK layers.
const (
	HeaderContentType    = "Content-Type"
	HeaderAccept         = "Accept"
	HeaderRange          = "Range"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderConsentProof   = "X-Consent-Proof"
	HeaderPolicySnapshot = "X-Policy-Snapshot"
)

// Common content types produced by the body encoder.
const (
	ContentTypeJSON        = "application/json"
	ContentTypeJSONUTF8    = "application/json; charset=utf-8"
	ContentTypeOctetStream = "application/octet-stream"
)

// RequestDescriptor is the declarative form of one logical request. The
// orchestrator fills it in; the transport owns attempt construction, so a
// descriptor must stay valid across retries.
//
// At most one of JSONBody, RawBody, StreamBody, and Multipart may be set.
// A StreamBody is consumed by the first attempt and disables retries once
// read; prefer RawBody when the payload fits in memory.
type RequestDescriptor struct {
	// Method is the HTTP method.
	Method string
	// URL is the fully resolved request URL (see BuildURL).
	URL string
	// Headers are applied verbatim to every attempt.
	Headers map[string]string
	// JSONBody is marshaled once and replayed across attempts.
	JSONBody any
	// RawBody is sent as-is; Headers must carry an explicit Content-Type.
	RawBody []byte
	// StreamBody is a one-shot payload source.
	StreamBody io.Reader
	// Multipart describes a multipart/form-data payload.
	Multipart *MultipartPayload
	// IdempotencyKey, when set, is sent as the Idempotency-Key header.
	IdempotencyKey string
	// ExpectedStatus lists the statuses the caller treats as success.
	// The transport does not act on it; it rides along for logging and
	// for the orchestrator's classification step.
	ExpectedStatus []int
	// StreamResponse leaves the response body open and unbounded by the
	// per-attempt deadline so the caller can consume it at its own pace.
	StreamResponse bool
	// Timeout overrides the transport timeout policy for this request.
	Timeout *TimeoutPolicy
}

// MultipartPayload describes a multipart/form-data request with a JSON
// metadata part, an optional JSON context part, and a data part.
type MultipartPayload struct {
	// Metadata is marshaled into the "metadata" part.
	Metadata map[string]any
	// Context is marshaled into the "context" part when non-empty.
	Context map[string]any
	// Data is the payload part.
	Data DataPart
}

// DataPart is the binary payload of a multipart request. Exactly one of
// Bytes and Stream must be set. ContentType and Filename are optional; the
// encoder infers a content type from the filename extension and falls back
// to application/octet-stream.
type DataPart struct {
	Filename    string
	ContentType string
	Bytes       []byte
	Stream      io.Reader
}

// Validate checks descriptor invariants before the first attempt. Violations
// surface as validation errors and no network I/O happens.
func (d *RequestDescriptor) Validate() error {
	if d.Method == "" {
		return NewValidationError("method is required", "method")
	}
	if d.URL == "" {
		return NewValidationError("url is required", "url")
	}

	variants := 0
	if d.JSONBody != nil {
		variants++
	}
	if d.RawBody != nil {
		variants++
	}
	if d.StreamBody != nil {
		variants++
	}
	if d.Multipart != nil {
		variants++
	}
	if variants > 1 {
		return NewValidationError("request body variants are mutually exclusive", "body")
	}

	if d.RawBody != nil && headerValue(d.Headers, HeaderContentType) == "" {
		return NewValidationError("raw body requires an explicit Content-Type header", "headers")
	}

	if d.Multipart != nil {
		if err := d.Multipart.validate(); err != nil {
			return err
		}
	}

	if d.Timeout != nil {
		if err := d.Timeout.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultipartPayload) validate() error {
	hasBytes := m.Data.Bytes != nil
	hasStream := m.Data.Stream != nil
	if hasBytes && hasStream {
		return NewValidationError("multipart data must set exactly one of bytes and stream", "multipart.data")
	}
	if !hasBytes && !hasStream {
		return NewValidationError("multipart data is required", "multipart.data")
	}
	return nil
}

// BuildURL joins a base URL and a path with exactly one separating slash and
// appends the query parameters in deterministic (sorted) order. Boolean
// values are rendered lowercase; everything else uses its natural string
// form.
func BuildURL(baseURL, path string, query map[string]any) string {
	full := strings.TrimRight(baseURL, "/")
	if path != "" {
		full += "/" + strings.TrimLeft(path, "/")
	}
	if len(query) == 0 {
		return full
	}
	values := url.Values{}
	for key, value := range query {
		values.Set(key, queryValue(value))
	}
	return full + "?" + values.Encode()
}

func queryValue(value any) string {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// headerValue performs a case-insensitive lookup in a plain header map.
func headerValue(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}
