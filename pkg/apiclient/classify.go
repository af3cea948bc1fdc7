package apiclient

import (
	"errors"
	"net/http"
)

type Outcome int

const (
	OutcomeSuccess   Outcome = iota // 2xx
	OutcomeRetryable                // Connectivity evidence, eligible for one retry
	OutcomeFatal                    // Returned to the caller unchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeRetryable:
		return "RETRYABLE"
	case OutcomeFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Classifier decides whether a failed attempt is evidence that the backend
// moved.
type Classifier struct {
	// NotFoundIsStale treats 404 as a stale-route symptom. It also turns a
	// genuinely missing route into a redetection, so failures it triggers
	// are logged loudly.
	NotFoundIsStale bool
}

func (c Classifier) Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return OutcomeRetryable
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status >= http.StatusInternalServerError:
			return OutcomeRetryable
		case apiErr.Status == http.StatusNotFound && c.NotFoundIsStale:
			return OutcomeRetryable
		}
	}

	return OutcomeFatal
}

// kindOf names the error class for logs and metrics.
func kindOf(err error) string {
	var netErr *NetworkError
	var apiErr *APIError
	switch {
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	case errors.As(err, &apiErr):
		return "api"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "request"
	}
}
