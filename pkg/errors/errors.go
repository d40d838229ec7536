package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so sentinel comparisons survive Clone and Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of the error carrying field level detail.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	for k, v := range details {
		clone.Details[k] = v
	}
	return &clone
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// Timetable validation.
	ErrInvalidDay        = New("INVALID_DAY", http.StatusBadRequest, "day must be one of SENIN, SELASA, RABU, KAMIS, JUMAT, SABTU")
	ErrInvalidTimeFormat = New("INVALID_TIME_FORMAT", http.StatusBadRequest, "time must use 24-hour HH:MM format")
	ErrEndNotAfterStart  = New("END_NOT_AFTER_START", http.StatusBadRequest, "end time must be after start time")

	// Timetable conflicts and references.
	ErrTeacherConflict    = New("TEACHER_CONFLICT", http.StatusConflict, "teacher already scheduled in an overlapping slot")
	ErrClassConflict      = New("CLASS_CONFLICT", http.StatusConflict, "class already scheduled in an overlapping slot")
	ErrAssignmentNotFound = New("ASSIGNMENT_NOT_FOUND", http.StatusNotFound, "teaching assignment not found")
	ErrAssignmentInUse    = New("ASSIGNMENT_IN_USE", http.StatusConflict, "teaching assignment still owns schedule entries")

	// Transient failures.
	ErrTimeout            = New("TIMEOUT", http.StatusGatewayTimeout, "operation timed out")
	ErrStorageUnavailable = New("STORAGE_UNAVAILABLE", http.StatusServiceUnavailable, "storage temporarily unavailable")

	// ErrCacheMiss is returned by cache backends when a key is absent.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Transient reports whether the caller may retry the failed operation with backoff.
func Transient(err error) bool {
	appErr := FromError(err)
	if appErr == nil {
		return false
	}
	return appErr.Code == ErrTimeout.Code || appErr.Code == ErrStorageUnavailable.Code
}
