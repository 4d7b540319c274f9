// Package market defines the domain error taxonomy shared by services and
// the Telegram surface. Every error carries a stable code that shows up in
// handler summary logs.
package market

import "fmt"

// Error is a domain error with a stable machine-readable code.
type Error struct {
	ErrCode string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Code returns the stable error code for log summaries.
func (e *Error) Code() string { return e.ErrCode }

// Codes used across the domain.
const (
	CodeValidation = "VALIDATION"
	CodeNotFound   = "NOT_FOUND"
	CodePermission = "PERMISSION"
	CodeConflict   = "CONFLICT"
)

// Validation reports bad user input. The caller re-prompts without a state
// change.
func Validation(format string, args ...any) *Error {
	return &Error{ErrCode: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing product/user/session.
func NotFound(format string, args ...any) *Error {
	return &Error{ErrCode: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Permission reports an action the requester may not perform.
func Permission(format string, args ...any) *Error {
	return &Error{ErrCode: CodePermission, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports an action that lost a race to an earlier decision. It is
// an idempotent no-op outcome, never a crash.
func Conflict(format string, args ...any) *Error {
	return &Error{ErrCode: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a market error with the given code.
func IsCode(err error, code string) bool {
	me, ok := err.(*Error)
	return ok && me.ErrCode == code
}
