package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrAccountNotFound    = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid password")
	ErrIdentityProvider   = errors.New("identity provider rejected the operation")
	ErrStoreWrite         = errors.New("document store write failed")
	ErrStoreRead          = errors.New("document store read failed")
	ErrInconsistentState  = errors.New("identity provider and document store diverged")

	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrExpiredAccessToken = errors.New("access token expired")
)

// ValidationError reports a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func requiredField(field string) *ValidationError {
	return &ValidationError{Field: field, Message: field + " is required"}
}

// InconsistentStateError is returned when a compensating action failed after a
// partial write. Err is the failure that triggered the compensation.
type InconsistentStateError struct {
	Operation       string
	AccountID       string
	Err             error
	CompensationErr error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s %s: %v (compensation failed: %v)", e.Operation, e.AccountID, e.Err, e.CompensationErr)
}

func (e *InconsistentStateError) Is(target error) bool {
	return target == ErrInconsistentState
}

func (e *InconsistentStateError) Unwrap() []error {
	return []error{e.Err, e.CompensationErr}
}
