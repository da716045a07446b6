package reelclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden matches 403 responses.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest matches 400 responses, e.g. cancelling a finished task.
	ErrBadRequest = errors.New("bad request")
	// ErrValidation matches 422 responses.
	ErrValidation = errors.New("request validation failed")
	// ErrServer matches 5xx responses.
	ErrServer = errors.New("server error")
	// ErrUnexpectedStatus matches any other non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")

	ErrClientNotReady   = errors.New("client not ready")
	ErrInvalidConfig    = errors.New("invalid config")
	ErrInvalidTaskID    = errors.New("invalid task id")
	ErrEmptyURL         = errors.New("task url is empty")
	ErrEmptyCredentials = errors.New("username and password are required")
	ErrDecodeResponse   = errors.New("decode response")
)

// APIError is returned for every non-2xx response. errors.Is matches it
// against the sentinel for its status class.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Detail     string
	RequestID  string
	Body       []byte
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Method)
	b.WriteByte(' ')
	b.WriteString(e.Path)
	b.WriteString(": ")
	b.WriteString(fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode)))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return ErrBadRequest
	case e.StatusCode == http.StatusUnprocessableEntity:
		return ErrValidation
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return ErrUnexpectedStatus
	}
}

func newAPIError(method, path string, status int, requestID string, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Detail:     parseDetail(body),
		RequestID:  requestID,
		Body:       body,
	}
}

const maxDetailLen = 256

// parseDetail extracts the {"detail": ...} field the backend puts on errors.
// Structured details (validation error lists) are returned as compact JSON.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxDetailLen {
			text = text[:maxDetailLen] + "..."
		}
		return text
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	return string(envelope.Detail)
}
