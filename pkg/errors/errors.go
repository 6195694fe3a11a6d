package errors

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// Common error codes
const (
	// Client errors (4xx)
	CodeBadRequest       = 400
	CodeUnauthorized     = 401
	CodeForbidden        = 403
	CodeNotFound         = 404
	CodeConflict         = 409
	CodeValidationFailed = 422
	CodeLocked           = 423

	// Server errors (5xx)
	CodeInternalServerError = 500
	CodeServiceUnavailable  = 503
)

// Common errors
var (
	ErrBadRequest          = errors.BadRequest("BAD_REQUEST", "Bad request")
	ErrUnauthorized        = errors.Unauthorized("UNAUTHORIZED", "Unauthorized")
	ErrForbidden           = errors.Forbidden("FORBIDDEN", "Forbidden")
	ErrNotFound            = errors.NotFound("NOT_FOUND", "Resource not found")
	ErrConflict            = errors.Conflict("CONFLICT", "Resource conflict")
	ErrValidationFailed    = errors.BadRequest("VALIDATION_FAILED", "Validation failed")
	ErrReadonly            = errors.New(CodeLocked, "READONLY", "Collection is public and readonly")
	ErrInternalServerError = errors.InternalServer("INTERNAL_SERVER_ERROR", "Internal server error")
	ErrServiceUnavailable  = errors.ServiceUnavailable("SERVICE_UNAVAILABLE", "Service unavailable")
)

// NewBadRequest creates a new bad request error.
func NewBadRequest(reason, message string) *errors.Error {
	return errors.BadRequest(reason, message)
}

// NewForbidden creates a new forbidden error.
func NewForbidden(reason, message string) *errors.Error {
	return errors.Forbidden(reason, message)
}

// NewNotFound creates a new not found error.
func NewNotFound(reason, message string) *errors.Error {
	return errors.NotFound(reason, message)
}

// NewConflict creates a new conflict error.
func NewConflict(reason, message string) *errors.Error {
	return errors.Conflict(reason, message)
}

// NewReadonly creates a readonly violation error for a public collection.
func NewReadonly(message string) *errors.Error {
	return errors.New(CodeLocked, "READONLY", message)
}

// NewInternalServerError creates a new internal server error.
func NewInternalServerError(reason, message string) *errors.Error {
	return errors.InternalServer(reason, message)
}

// IsReadonly reports whether err is a readonly violation.
func IsReadonly(err error) bool {
	return errors.Reason(err) == "READONLY"
}
