// Package fcapi decodes FirecREST response envelopes. The API reports most
// failures through X-* headers rather than the HTTP status code, wraps task
// documents under a "task"/"tasks" field, and returns operation payloads
// under "out" or "output" depending on the microservice.
package fcapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorHeaders enumerates the response headers FirecREST uses to signal a
// failed operation on an otherwise successful HTTP exchange.
var ErrorHeaders = []string{
	"X-A-Directory",
	"X-Error",
	"X-Invalid-Path",
	"X-Machine-Does-Not-Exist",
	"X-Machine-Not-Available",
	"X-Not-A-Directory",
	"X-Not-Found",
	"X-Permission-Denied",
	"X-Timeout",
}

// HeaderError returns the first error header present in h along with its
// value, or "" when the response carries no error header.
func HeaderError(h http.Header) (name, value string) {
	for _, name := range ErrorHeaders {
		if v := h.Get(name); v != "" {
			return name, v
		}
	}
	return "", ""
}

// TaskID extracts the task_id field from an initiating response body.
func TaskID(body []byte) (string, error) {
	var envelope struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil {
		return "", fmt.Errorf("fcapi: decode task_id envelope: %w", err)
	}
	if envelope.TaskID == "" {
		return "", fmt.Errorf("fcapi: missing task_id in response")
	}
	return envelope.TaskID, nil
}

// TaskDocument unwraps the "task" field of a GET /tasks/{id} response.
func TaskDocument(body []byte) (json.RawMessage, error) {
	var envelope struct {
		Task json.RawMessage `json:"task"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil {
		return nil, fmt.Errorf("fcapi: decode task envelope: %w", err)
	}
	if envelope.Task == nil {
		return nil, fmt.Errorf("fcapi: missing task in response")
	}
	return envelope.Task, nil
}

// TaskDocuments unwraps the "tasks" field of a GET /tasks response into a map
// keyed by task ID.
func TaskDocuments(body []byte) (map[string]json.RawMessage, error) {
	var envelope struct {
		Tasks map[string]json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil {
		return nil, fmt.Errorf("fcapi: decode tasks envelope: %w", err)
	}
	return envelope.Tasks, nil
}

// DecodeOut decodes the payload stored under the "out" field (status
// endpoints) or the "output" field (utilities endpoints) into v. When
// neither field is present the whole body is decoded.
func DecodeOut(body []byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var envelope struct {
		Out    json.RawMessage `json:"out"`
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil {
		if envelope.Out != nil {
			return json.Unmarshal(envelope.Out, v)
		}
		if envelope.Output != nil {
			return json.Unmarshal(envelope.Output, v)
		}
	}
	return json.Unmarshal(trimmed, v)
}
