package mtapclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mtap-io/mtap-go/transport"
)

// classifyStatus maps an HTTP status code to its error kind. Unlisted 5xx
// statuses are server errors; anything else off the success path is a
// generic API error.
func classifyStatus(statusCode int) ErrorType {
	switch statusCode {
	case http.StatusBadRequest:
		return InvalidRequestError
	case http.StatusUnauthorized:
		return AuthenticationError
	case http.StatusForbidden:
		return AuthorizationError
	case http.StatusNotFound:
		return NotFoundError
	case http.StatusConflict:
		return IdempotencyConflictError
	case http.StatusTooManyRequests:
		return RateLimitError
	}
	if statusCode >= 500 && statusCode < 600 {
		return ServerError
	}
	return GenericAPIError
}

// classifyResponse turns a non-success response into its typed API error.
// It is a pure function of the response data; the transport is never
// involved.
func classifyResponse(url string, statusCode int, contentType string, body []byte) ClientError {
	return &apiError{
		kind:       classifyStatus(statusCode),
		message:    deriveMessage(url, statusCode, contentType, body),
		statusCode: statusCode,
	}
}

// deriveMessage extracts a human-readable message from an error response.
// JSON payloads are mined for the conventional detail/error/message fields,
// plain-text bodies are used verbatim, and everything else falls back to a
// generic message naming the URL and status. A JSON content type with an
// unparsable body also falls back rather than echoing garbage.
func deriveMessage(url string, statusCode int, contentType string, body []byte) string {
	fallback := fmt.Sprintf("API error at %s (status %d)", url, statusCode)
	if len(body) == 0 {
		return fallback
	}

	if isJSONContentType(contentType) {
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return fallback
		}
		switch v := payload.(type) {
		case map[string]any:
			if msg := structuredMessage(v); msg != "" {
				return msg
			}
		case string:
			if v != "" {
				return v
			}
		}
		return fallback
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fallback
}

// structuredMessage mines a JSON error object for its message. The "detail"
// field wins over "error"; when the chosen field is itself an object its
// "message" sub-field is preferred, else the object is stringified. A
// top-level "message" is the last resort.
func structuredMessage(payload map[string]any) string {
	detail, ok := payload["detail"]
	if !ok {
		detail, ok = payload["error"]
	}
	if ok {
		switch v := detail.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, sub := v["message"].(string); sub && msg != "" {
				return msg
			}
			return fmt.Sprintf("%v", v)
		}
	}
	if msg, ok := payload["message"].(string); ok && msg != "" {
		return msg
	}
	return ""
}

func isJSONContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), transport.ContentTypeJSON)
}
