package pngx

import (
	"errors"
	"fmt"
)

// APIError is returned when the document service answers with a non-success
// status code. The message carries the response body (trimmed) when present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request failed: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("API request failed: status=%d message=%s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with a 404 status.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
