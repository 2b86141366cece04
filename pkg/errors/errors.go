package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType classifies a failure. Callers branch on the type, never on the
// message text.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeMethod       ErrorType = "METHOD_NOT_ALLOWED"
	ErrorTypeInternal     ErrorType = "INTERNAL"

	// ErrorTypeTransientStore is a store failure that leaves no partial
	// state behind; repeating the call is safe.
	ErrorTypeTransientStore ErrorType = "TRANSIENT_STORE"
	ErrorTypeExternal       ErrorType = "EXTERNAL"
)

// Machine readable codes attached to some errors so API clients can tell
// apart failures that share a type.
const (
	CodeUniqueKeyTaken = "UNIQUE_KEY_TAKEN"
	CodeReservedSlug   = "RESERVED_SLUG"
	CodeBodyTooLarge   = "BODY_TOO_LARGE"
)

// AppError is the error value returned across package boundaries.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Code != "" {
		b.WriteString("[" + e.Code + "]")
	}
	b.WriteString(": " + e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode sets the machine readable code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single detail entry.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails replaces the detail map.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newAppError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: stackTrace(3),
	}
}

// stackTrace renders the caller stack, skipping the runtime frames and
// the constructors in this package.
func stackTrace(skip int) string {
	var pcs [32]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			return b.String()
		}
	}
}

func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message)
}

func NewValidationErrorf(format string, args ...interface{}) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing resource, e.g. "coupon not found".
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, resource+" not found")
}

func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message)
}

func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newAppError(ErrorTypeForbidden, http.StatusForbidden, message)
}

func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewTransientStoreError wraps a store call that failed for infrastructure
// reasons. The same call is safe to retry.
func NewTransientStoreError(operation string, err error) *AppError {
	e := newAppError(ErrorTypeTransientStore, http.StatusServiceUnavailable,
		fmt.Sprintf("store operation '%s' failed", operation))
	e.Cause = err
	e.Retryable = true
	return e
}

func NewExternalError(service string, err error) *AppError {
	e := newAppError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service))
	e.Cause = err
	return e
}

func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// GetAppError returns the first AppError in err's chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

func IsNotFound(err error) bool     { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool   { return IsType(err, ErrorTypeValidation) }
func IsUnauthorized(err error) bool { return IsType(err, ErrorTypeUnauthorized) }
func IsForbidden(err error) bool    { return IsType(err, ErrorTypeForbidden) }
func IsConflict(err error) bool     { return IsType(err, ErrorTypeConflict) }
func IsTransient(err error) bool    { return IsType(err, ErrorTypeTransientStore) }

// StatusOf maps any error to the HTTP status it is answered with.
func StatusOf(err error) int {
	if appErr := GetAppError(err); appErr != nil && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
