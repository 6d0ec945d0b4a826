// Package apperr defines the error taxonomy shared across the workflow and
// billing core. Handlers map these types to HTTP status codes; everything else
// wraps them with fmt.Errorf("%w", ...).
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed or incomplete input. Fields lists the
// specific offending fields so the caller can surface field-level errors.
type ValidationError struct {
	Msg    string
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.Fields, ", "))
}

// NewValidation creates a ValidationError
func NewValidation(msg string, fields ...string) *ValidationError {
	return &ValidationError{Msg: msg, Fields: fields}
}

// ConflictError reports an operation whose precondition on current state is
// not met. It names current vs attempted so the caller can resolve and retry.
type ConflictError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: current state %q does not permit %q", e.Entity, e.Current, e.Attempted)
}

// NewConflict creates a ConflictError
func NewConflict(entity, current, attempted string) *ConflictError {
	return &ConflictError{Entity: entity, Current: current, Attempted: attempted}
}

// NotFoundError reports a missing or expired referenced entity
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Ref)
}

// NewNotFound creates a NotFoundError
func NewNotFound(entity, ref string) *NotFoundError {
	return &NotFoundError{Entity: entity, Ref: ref}
}

// ConcurrencyError reports an optimistic-lock or unique-constraint violation
// detected at commit time. The operation is safely retryable once after
// re-reading current state.
type ConcurrencyError struct {
	Entity string
	ID     int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %d", e.Entity, e.ID)
}

// NewConcurrency creates a ConcurrencyError
func NewConcurrency(entity string, id int64) *ConcurrencyError {
	return &ConcurrencyError{Entity: entity, ID: id}
}

// ExternalServiceError reports a collaborator failure (notification dispatch,
// certificate rendering). It never fails the workflow operation that
// triggered it; callers log it and move on.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConcurrency reports whether err is a ConcurrencyError
func IsConcurrency(err error) bool {
	var target *ConcurrencyError
	return errors.As(err, &target)
}
