package errors

import "errors"

// NotFoundError marks a lookup that completed but found nothing.
type NotFoundError struct {
	Source string
	Query  string
}

func (e *NotFoundError) Error() string {
	return e.Source + ": no match for " + e.Query
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(source, query string) *NotFoundError {
	return &NotFoundError{Source: source, Query: query}
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}
