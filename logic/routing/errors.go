package routing

import (
	"errors"
	"fmt"
)

// Code is the stable machine-readable category of a workflow error.
type Code string

const (
	// CodeInvalidArgument: malformed or missing input, detected before any write.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeNotFound: letter, signature row or addressed unit does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodePreconditionFailed: a state machine rule would be violated.
	CodePreconditionFailed Code = "PRECONDITION_FAILED"

	// CodeConflict: duplicate letter id, or a race lost to a concurrent operation.
	CodeConflict Code = "CONFLICT"

	// CodeInternal is reported for errors that carry no workflow code.
	CodeInternal Code = "INTERNAL"
)

// Error is returned by every workflow operation that rejects its input or the
// current state. A rejected operation never leaves a partial change behind.
type Error struct {
	Code    Code
	Message string

	// Retryable is set when the same call may succeed later unchanged
	// (lock wait timed out, concurrent update detected).
	Retryable bool

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...any) *Error {
	return newError(CodeInvalidArgument, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

func PreconditionFailed(format string, args ...any) *Error {
	return newError(CodePreconditionFailed, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(CodeConflict, format, args...)
}

// RetryableConflict wraps cause as a CONFLICT the caller may retry.
func RetryableConflict(cause error, format string, args ...any) *Error {
	e := newError(CodeConflict, format, args...)
	e.Retryable = true
	e.Err = cause
	return e
}

// CodeOf returns the workflow code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return CodeInternal
}

// IsRetryable reports whether err is a workflow error marked retryable.
func IsRetryable(err error) bool {
	var we *Error
	return errors.As(err, &we) && we.Retryable
}

func IsInvalidArgument(err error) bool { return CodeOf(err) == CodeInvalidArgument }
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }
func IsPreconditionFailed(err error) bool { return CodeOf(err) == CodePreconditionFailed }
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }
