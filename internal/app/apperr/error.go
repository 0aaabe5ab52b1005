package apperr

import (
	"errors"
	"net/http"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeForbidden      = "FORBIDDEN"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeNotProvisioned = "PROFILE_NOT_PROVISIONED"
)

// Validation returns a 422 with per-field details.
func Validation(message string, details map[string]any) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeValidation, Message: message, Details: details}
}

// Field is shorthand for a single-field validation error.
func Field(field, problem string) *Error {
	return Validation("invalid "+field, map[string]any{field: problem})
}

// Forbidden is returned when an authorization check denies an operation.
func Forbidden(message string, details map[string]any) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: message, Details: details}
}

func NotFound(code, message string) *Error {
	if code == "" {
		code = CodeNotFound
	}
	return &Error{Status: http.StatusNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	if code == "" {
		code = CodeConflict
	}
	return &Error{Status: http.StatusConflict, Code: code, Message: message}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	ae := (*Error)(nil)
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsForbidden reports whether err is a 403 application error.
func IsForbidden(err error) bool {
	ae, ok := As(err)
	return ok && ae.Status == http.StatusForbidden
}

// HasCode reports whether err is an application error with the given code.
func HasCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}
