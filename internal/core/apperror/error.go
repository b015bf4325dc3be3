// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeStore    = "STORE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule     = "BUSINESS_RULE_VIOLATION"
	CodeQuarantined      = "SYSTEM_QUARANTINED"
	CodeFixInProgress    = "FIX_IN_PROGRESS"
	CodeNoJobs           = "NO_JOBS"
	CodeConfirmation     = "CONFIRMATION_REQUIRED"
	CodeIDOverflow       = "ID_OVERFLOW"
	CodeIDExhausted      = "ID_SPACE_EXHAUSTED"
	CodeRollbackMissing  = "ROLLBACK_UNAVAILABLE"
	CodeLinkLimitReached = "LINK_LIMIT_REACHED"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
	CodeLockHeld  = "LOCK_HELD"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, counts, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewQuarantined is returned when remediation is attempted while the
// delete registry is quarantined.
func NewQuarantined(ratio float64) *AppError {
	return &AppError{
		Code:       CodeQuarantined,
		Message:    "Delete registry is quarantined; remediation is disabled",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"duplicate_ratio": ratio},
	}
}

// NewFixInProgress is returned when a remediation run is already executing.
func NewFixInProgress() *AppError {
	return &AppError{
		Code:       CodeFixInProgress,
		Message:    "A remediation run is already in progress",
		HTTPStatus: http.StatusConflict,
	}
}

// NewLockHeld is returned when the advisory lock is held by another admin.
func NewLockHeld(holder string) *AppError {
	return &AppError{
		Code:       CodeLockHeld,
		Message:    fmt.Sprintf("System busy (held by %s)", holder),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"held_by": holder},
	}
}

// NewConfirmationRequired is returned when a mutating operation lacks the
// explicit operator confirmation.
func NewConfirmationRequired(operation string) *AppError {
	return &AppError{
		Code:       CodeConfirmation,
		Message:    "Operator confirmation is required",
		HTTPStatus: http.StatusPreconditionRequired,
		Details:    map[string]any{"operation": operation},
	}
}

// NewIDOverflow is returned when the delete-view ID numeric space is
// exceeded. This is a hard operational ceiling requiring a format change.
func NewIDOverflow(next int, pad int) *AppError {
	return &AppError{
		Code:       CodeIDOverflow,
		Message:    "Delete-view ID space overflow",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"next": next, "pad": pad},
	}
}

// NewIDExhausted is returned when the allocator retry ceiling is exceeded,
// which signals index corruption.
func NewIDExhausted(attempts int) *AppError {
	return &AppError{
		Code:       CodeIDExhausted,
		Message:    "Could not allocate a unique delete-view ID",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"attempts": attempts},
	}
}

// NewRollbackUnavailable is returned when no cached snapshot exists for the
// requested record.
func NewRollbackUnavailable(id string) *AppError {
	return &AppError{
		Code:       CodeRollbackMissing,
		Message:    "No pre-fix snapshot available for this record",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"record_id": id},
	}
}

// NewNoJobs is returned when a remediation entry point has nothing to do.
func NewNoJobs(scope string) *AppError {
	return &AppError{
		Code:       CodeNoJobs,
		Message:    "No remediation jobs queued",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"scope": scope},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewStore wraps a document-store failure (5xx)
func NewStore(err error) *AppError {
	return &AppError{
		Code:       CodeStore,
		Message:    "Document store operation failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsCode checks if error carries a specific code
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
