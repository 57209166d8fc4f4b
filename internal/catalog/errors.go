package catalog

import (
	"errors"
	"fmt"
)

// Error is returned by every failing catalog operation.
//
// The catalog never retries. Callers decide whether to abort the statement
// or surface a message.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Kind names the object class the error concerns (table, column, ...).
	Kind string

	// ID identifies the object, when there is one.
	ID int64
}

// ErrorCode categorizes catalog errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a lookup by id found nothing.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUnsupported indicates the entity or adapter lacks a capability,
	// such as modification or a scan strategy for a model.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_CAPABILITY"

	// ErrCodeInvariantViolation indicates inconsistent input from an
	// upstream layer. It is a bug, not a user error.
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s %d: %s", e.Code, e.Kind, e.ID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsUnsupported reports whether err is an unsupported-capability error.
func IsUnsupported(err error) bool { return hasCode(err, ErrCodeUnsupported) }

// IsInvariantViolation reports whether err is an invariant violation.
func IsInvariantViolation(err error) bool { return hasCode(err, ErrCodeInvariantViolation) }

// NewNotFoundError creates an Error for a missing object.
func NewNotFoundError(kind string, id int64) *Error {
	return &Error{Code: ErrCodeNotFound, Kind: kind, ID: id, Message: "not found"}
}

// NewUnsupportedError creates an Error for a missing capability.
func NewUnsupportedError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeUnsupported, Message: fmt.Sprintf(format, args...)}
}

// NewInvariantError creates an Error for inconsistent upstream state.
func NewInvariantError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvariantViolation, Message: fmt.Sprintf(format, args...)}
}
