package errors

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError represents a rate limit error from a remote site or API.
// Attempts is the number of tries made before giving up.
type RateLimitError struct {
	Message    string
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	msg := e.Message
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
	}
	return msg
}

// NewRateLimitError creates a new RateLimitError with the given message
func NewRateLimitError(message string) *RateLimitError {
	return &RateLimitError{Message: message}
}

// NewRateLimitErrorWithAttempts creates a RateLimitError that records how many
// attempts were made.
func NewRateLimitErrorWithAttempts(message string, attempts int) *RateLimitError {
	return &RateLimitError{Message: message, Attempts: attempts}
}

// IsRateLimitError checks if an error is a RateLimitError
func IsRateLimitError(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}
