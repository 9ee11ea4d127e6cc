package practicum

import (
	"fmt"
	"net/http"
)

// Reason classifies why a status fetch failed.
type Reason string

const (
	ReasonRequest Reason = "request"
	ReasonStatus  Reason = "status"
	ReasonPayload Reason = "payload"
)

// FetchError reports a failed status query: transport failure,
// non-200 response, or an unreadable payload.
type FetchError struct {
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch homework statuses (%s): %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the same request may succeed later without changes.
func (e *FetchError) IsRetryable() bool {
	switch e.Reason {
	case ReasonRequest:
		return true
	case ReasonStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}
