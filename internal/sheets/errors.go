package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned when the spreadsheet service rejects a request.
type APIError struct {
	Status  int    // HTTP status code, 0 for transport-level failures
	Op      string // operation that failed, e.g. "get rows"
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("sheets: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("sheets: %s: %s (status %d)", e.Op, e.Message, e.Status)
}

// IsAuthError returns true for authentication or permission failures.
func IsAuthError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden
	}
	return false
}

// IsNotFound returns true if the table or row does not exist.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// IsTransient returns true for errors that are worth retrying: server
// errors, rate limits, and network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status == 0 || ae.Status >= 500 || ae.Status == http.StatusTooManyRequests
	}
	return true // bare network errors are transient
}
