package errors

import (
	"errors"
	"fmt"
)

// CatastrophicError wraps a recovered panic. Stack holds the goroutine stack
// captured at recovery time.
type CatastrophicError struct {
	Value any
	Stack []byte
}

func (e *CatastrophicError) Error() string {
	return fmt.Sprintf("unexpected failure: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *CatastrophicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// NewCatastrophicError creates a new CatastrophicError
func NewCatastrophicError(value any, stack []byte) *CatastrophicError {
	return &CatastrophicError{Value: value, Stack: stack}
}

// IsCatastrophicError checks if an error is a CatastrophicError
func IsCatastrophicError(err error) bool {
	var catastrophicErr *CatastrophicError
	return errors.As(err, &catastrophicErr)
}
