package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal transition of order status")
)

// ValidationError reports bad or missing input tied to one field or option group.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError means a concurrent writer already created the order for this reference.
type ConflictError struct {
	PaymentReference string
	Err              error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order for payment reference %q already exists", e.PaymentReference)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// DependencyError wraps a failure of the catalog, a store, the estimator or the notifier.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
