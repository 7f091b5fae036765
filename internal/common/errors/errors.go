package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeConflict   ErrorCode = "CONFLICT"

	// Authorization
	ErrCodeNotAuthorized ErrorCode = "NOT_AUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadCredential ErrorCode = "BAD_CREDENTIAL"

	// A record referenced by an in-flight workflow disappeared before commit.
	ErrCodeTargetLost ErrorCode = "TARGET_LOST"

	// I/O
	ErrCodeStoreIO    ErrorCode = "STORE_IO_ERROR"
	ErrCodePlatformIO ErrorCode = "PLATFORM_IO_ERROR"
)

// AppError is a typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Stack     []string               `json:"stack,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsUnauthorized reports any of the authorization denials.
func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeNotAuthorized || e.Code == ErrCodeForbidden || e.Code == ErrCodeBadCredential
}

// WithDetail adds a detail value to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithUserID records the acting user.
func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

// Wrap wraps an existing error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

// NewValidationError reports malformed input for a workflow field.
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewConflictError reports a uniqueness violation.
func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

// NewTargetLostError reports a record that vanished between selection and commit.
func NewTargetLostError(resource string, id interface{}) *AppError {
	return New(ErrCodeTargetLost, fmt.Sprintf("%s disappeared", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// NewNotAuthorizedError reports a missing or expired admin session.
func NewNotAuthorizedError(reason string) *AppError {
	return New(ErrCodeNotAuthorized, fmt.Sprintf("Not authorized: %s", reason)).
		WithDetail("reason", reason)
}

// NewForbiddenError reports a user outside the admin allow-list.
func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

// NewBadCredentialError reports a failed secret check.
func NewBadCredentialError() *AppError {
	return New(ErrCodeBadCredential, "credential check failed")
}

// NewStoreIOError wraps a store read/write failure.
func NewStoreIOError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreIO, fmt.Sprintf("Store operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// NewPlatformIOError wraps a chat platform failure.
func NewPlatformIOError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePlatformIO, fmt.Sprintf("Telegram API operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError extracts an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in the chain, or
// ErrCodeInternal for any other non-nil error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Reason returns the user-facing reason recorded on an AppError, falling
// back to its message.
func Reason(err error) string {
	appErr, ok := AsAppError(err)
	if !ok {
		return ""
	}
	if r, ok := appErr.Details["reason"].(string); ok && r != "" {
		return r
	}
	return appErr.Message
}
