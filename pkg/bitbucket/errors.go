package bitbucket

import (
	"errors"
	"fmt"
	"time"
)

// ErrCredentialsRequired is returned when the client is constructed without
// a username or app password.
var ErrCredentialsRequired = errors.New("a Bitbucket username and app password are required")

// APIError is a non-2xx response from the Bitbucket API. RetryAfter is only
// set for 429 responses carrying a Retry-After header.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bitbucket API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("bitbucket API error: status %d: %s", e.StatusCode, e.Message)
}
