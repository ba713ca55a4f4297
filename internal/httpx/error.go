package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx response from the service. The response headers are
// retained because FirecREST reports the failure reason through X-* headers
// rather than the body.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if desc := e.Description(); desc != "" {
		return fmt.Sprintf("httpx: status %d: %s", e.StatusCode, desc)
	}
	return fmt.Sprintf("httpx: status %d: %s", e.StatusCode, string(e.Body))
}

// Description extracts the human-readable description field FirecREST puts
// in JSON error bodies, or "" when the body carries none.
func (e *HTTPError) Description() string {
	if e == nil || len(e.Body) == 0 {
		return ""
	}
	var payload struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return ""
	}
	return payload.Description
}

// Retryable reports whether the error should be considered transient.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		(e.StatusCode >= 500 && e.StatusCode <= 599)
}
