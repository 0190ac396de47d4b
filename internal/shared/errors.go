package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a missing, expired or revoked bearer token.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrUnauthorized indicates the actor lacks a required permission or role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an action against a protected entity.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidPermission indicates a permission name missing from the registry.
	ErrInvalidPermission = errors.New("invalid permission")
	// ErrDuplicateName indicates a name already taken by another record.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrConflict indicates the operation conflicts with current state.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
)

// FieldError ties a sentinel error to the offending field and value.
type FieldError struct {
	Field string
	Value string
	Err   error
}

// NewFieldError builds a FieldError.
func NewFieldError(err error, field, value string) *FieldError {
	return &FieldError{Field: field, Value: value, Err: err}
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("%s: %s %q", e.Err, e.Field, e.Value)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// IsAuthFailure reports whether err means the caller must (re)authenticate or lacks access.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// UserSafeMessage returns a message suitable for end users.
func UserSafeMessage(err error) string {
	var fieldErr *FieldError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fieldErr):
		return fieldErr.Error()
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in again"
	case errors.Is(err, ErrUnauthorized):
		return "You do not have permission to perform this action"
	case errors.Is(err, ErrForbidden):
		return "This record is protected and cannot be changed this way"
	case errors.Is(err, ErrConflict):
		return "The role may be assigned to users or be a system role"
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrDuplicateName), errors.Is(err, ErrInvalidPermission), errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "Something went wrong, please try again"
	}
}
