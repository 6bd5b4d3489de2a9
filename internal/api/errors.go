package api

import (
	"errors"
	"fmt"
)

// APIError is returned when the backend answers with a non-2xx status
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API error: %s %s: %s", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("API error: %s %s: %s - %s", e.Method, e.Path, e.Status, e.Body)
}

// ApplicationError is a structured error the backend reported inside an
// otherwise successful response.
type ApplicationError struct {
	SessionID string
	Message   string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("backend error: %s", e.Message)
}

// TransportError wraps failures to reach the backend or read its answer
type TransportError struct {
	Op  string // "send", "read", "decode"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err came from the backend exchange itself.
// Every such failure is surfaced to the user and never ends the process.
func IsRecoverable(err error) bool {
	var apiErr *APIError
	var appErr *ApplicationError
	var transportErr *TransportError
	return errors.As(err, &apiErr) || errors.As(err, &appErr) || errors.As(err, &transportErr)
}
