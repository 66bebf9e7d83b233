// Package apperror defines the error categories surfaced by the submission
// pipeline and how they map onto HTTP.
package apperror

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Code is a stable, machine-readable error category.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeDuplicate    Code = "DUPLICATE_SUBMISSION"
	CodeConflict     Code = "CONFLICT_DETECTED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeTimeout      Code = "TRANSACTION_TIMEOUT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
)

// HTTPStatus maps a code to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeDuplicate, CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusServiceUnavailable
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the client may resend the same request unchanged
// and expect a different outcome.
func (c Code) Retryable() bool {
	return c == CodeTimeout
}

// Error is the domain error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrDuplicate  = &Error{Code: CodeDuplicate}
	ErrConflict   = &Error{Code: CodeConflict}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrInternal   = &Error{Code: CodeInternal}
	ErrTimeout    = &Error{Code: CodeTimeout}
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Validation(message string) *Error { return New(CodeValidation, message) }
func Duplicate(message string) *Error  { return New(CodeDuplicate, message) }
func Conflict(message string) *Error   { return New(CodeConflict, message) }
func NotFound(message string) *Error   { return New(CodeNotFound, message) }

func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

// uniqueViolation is the postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// From classifies any error into an *Error. Errors that are already
// classified pass through untouched.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeTimeout, "transaction timed out, retry later", err)
	case errors.Is(err, context.Canceled):
		return Wrap(CodeTimeout, "request cancelled before commit", err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(CodeNotFound, "record not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(CodeDuplicate, "evaluation already recorded", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Wrap(CodeDuplicate, "evaluation already recorded", err)
	}
	return Wrap(CodeInternal, "internal error", err)
}

// PublicMessage is the text safe to show a client. Internal failures are
// redacted unless detail is explicitly allowed.
func (e *Error) PublicMessage(detailed bool) string {
	if e.Code == CodeInternal && !detailed {
		return "internal server error"
	}
	if e.Message == "" {
		return string(e.Code)
	}
	if detailed {
		return e.Error()
	}
	return e.Message
}
