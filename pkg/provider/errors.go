package provider

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors forming the provider error taxonomy. The orchestrator
// keys its retry and isolation policy off these: only ErrRateLimited is
// retryable, ErrAuth poisons the whole account, everything else fails the
// single item.
var (
	// ErrAuth is returned for invalid or expired credentials.
	ErrAuth = errors.New("invalid or expired provider credentials")

	// ErrRateLimited is returned when the provider throttled the request.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrNotFound is returned when the pull request or repository vanished.
	ErrNotFound = errors.New("pull request or repository not found")

	// ErrConflict is returned when the provider refused a merge.
	ErrConflict = errors.New("pull request cannot be merged, refresh and try again")

	// ErrPrecondition is returned when revalidation found the pull request
	// no longer mergeable, before any merge call was made.
	ErrPrecondition = errors.New("pull request state changed since selection, refresh and try again")

	// ErrNetwork is returned for transient transport failures and timeouts.
	ErrNetwork = errors.New("provider request failed")
)

// RateLimitError carries the provider-suggested wait time. It unwraps to
// ErrRateLimited so errors.Is keeps working.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "provider rate limit exceeded"
}

// Unwrap makes errors.Is(err, ErrRateLimited) true.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Retryable reports whether the error may be retried with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// RetryAfter extracts the provider-suggested wait time, or zero when the
// error carries none.
func RetryAfter(err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter
	}
	return 0
}

// Taxonomy codes attached to failed merge operation items.
const (
	CodeAuth         = "auth"
	CodeRateLimited  = "rate_limited"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodePrecondition = "precondition"
	CodeNetwork      = "network"
	CodeInternal     = "internal"
)

// Code maps an error to its taxonomy code. Unrecognized errors are internal.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return CodeAuth
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrPrecondition):
		return CodePrecondition
	case errors.Is(err, ErrNetwork):
		return CodeNetwork
	default:
		return CodeInternal
	}
}
