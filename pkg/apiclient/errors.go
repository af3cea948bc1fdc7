package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/angeloszaimis/campus-gateway/internal/probe"
)

// ErrNoReachableEndpoint is returned when no backend address could be
// resolved at all.
var ErrNoReachableEndpoint = probe.ErrNoReachableEndpoint

// ErrInvalidResponse is returned when a 2xx response body is not valid JSON.
var ErrInvalidResponse = errors.New("invalid JSON response")

const maxMessageLength = 512

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status   int
	Message  string
	Body     json.RawMessage
	Endpoint string
	Method   string
	Path     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d on %s %s: %s", e.Status, e.Method, e.Path, e.Message)
}

// NetworkError is a transport-level failure: timeout, refused connection,
// DNS failure or a response body that could not be read.
type NetworkError struct {
	Endpoint string
	Method   string
	Path     string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s %s%s: %v", e.Method, e.Endpoint, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{
		Status:  status,
		Message: messageFromBody(status, body),
	}
	if json.Valid(body) {
		e.Body = append(json.RawMessage(nil), body...)
	}
	return e
}

// messageFromBody extracts a human readable message from an error response.
// The backend reports errors as {"detail": "..."}, or for validation
// failures {"detail": [{"msg": "..."}]}; "message" and "error" are accepted
// too.
func messageFromBody(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			switch v := payload[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case []any:
				if msg := firstMessage(v); msg != "" {
					return msg
				}
			}
		}
	} else {
		text := strings.TrimSpace(string(body))
		if text != "" {
			if len(text) > maxMessageLength {
				text = text[:maxMessageLength]
			}
			return text
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

func firstMessage(items []any) string {
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["msg"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return ""
}
