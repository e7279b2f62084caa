package ai

import (
	"errors"
	"fmt"
)

// ErrNoCredential is returned by every service call when no API key is configured.
// It is terminal for the request and is never retried.
var ErrNoCredential = errors.New("no API key available")

// StatusError reports a non-success response from a remote service.
type StatusError struct {
	Service    string // "transcription", "embedding" or "chat"
	StatusCode int
	Body       string
	Err        error // underlying client error, if any
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error: %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API error: %d: %s", e.Service, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the remote status code from err, if any.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// IsRetryable reports whether a failed call may succeed when repeated.
// Missing credentials and client errors other than 408/429 are permanent.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrNoCredential) {
		return false
	}
	code, ok := StatusCode(err)
	if !ok {
		return true
	}
	return code == 408 || code == 429 || code >= 500
}

// ErrEmptyResponse is returned when a service answers successfully but with no usable content.
var ErrEmptyResponse = errors.New("empty response from AI service")
