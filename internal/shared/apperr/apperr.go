// Package apperr holds the error kinds shared by every domain package.
// Domain packages wrap these sentinels so callers can classify failures
// with errors.Is without importing each other.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrDuplicatePayment = errors.New("invoice already paid")
	ErrBalanceMutation  = errors.New("balance mutation failed")
	ErrConflict         = errors.New("concurrent modification")
	ErrMalformedRule    = errors.New("malformed recurrence rule")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// BalanceMutationError is returned when a balance adjustment could not be
// applied. The surrounding unit of work is rolled back.
type BalanceMutationError struct {
	Op        string
	AccountID string
	Err       error
}

func (e *BalanceMutationError) Error() string {
	return fmt.Sprintf("%s: adjust balance of account %s: %v", e.Op, e.AccountID, e.Err)
}

func (e *BalanceMutationError) Unwrap() []error { return []error{ErrBalanceMutation, e.Err} }

// Kind returns the sentinel that classifies err, or nil when err is not
// one of the known kinds.
func Kind(err error) error {
	for _, kind := range []error{ErrBalanceMutation, ErrDuplicatePayment, ErrConflict, ErrMalformedRule, ErrValidation, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
