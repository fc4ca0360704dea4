package store

import (
	"fmt"
	"net/http"
	"strings"
)

// StatusCodeError is implemented by every domain error so routers can map the
// failure kind to an HTTP status at a single boundary.
type StatusCodeError interface {
	error
	StatusCode() int
}

// ValidationError reports malformed or missing input, optionally with
// per-field messages.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	if e.Message == "" {
		return strings.Join(parts, "; ")
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// StatusCode returns 400.
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// NotFoundError reports an unknown key or identifier.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Ref)
}

// StatusCode returns 404.
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// ConflictError reports a state-incompatible operation, such as applying a
// transition whose source status does not match.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// StatusCode returns 409.
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// UnauthorizedError reports a missing or invalid bearer token.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "authentication required"
	}
	return e.Message
}

// StatusCode returns 401.
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

// ForbiddenError reports an authenticated but not permitted request.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// StatusCode returns 403.
func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

// RateLimitedError reports quota exhaustion. It always carries enough
// metadata for a well-behaved client to back off.
type RateLimitedError struct {
	// RetryAfter is the number of seconds until at least one in-window entry
	// expires.
	RetryAfter int
	// Remaining is the unused quota at rejection time.
	Remaining int
	// Reset is the unix timestamp when the window fully resets.
	Reset int64
	// Forced marks a deterministic test-induced rejection.
	Forced bool
}

func (e *RateLimitedError) Error() string {
	if e.Forced {
		return "rate limit exceeded (forced)"
	}
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}

// StatusCode returns 429.
func (e *RateLimitedError) StatusCode() int { return http.StatusTooManyRequests }

// InternalError wraps an unexpected failure.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return "internal error: " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

// StatusCode returns 500.
func (e *InternalError) StatusCode() int { return http.StatusInternalServerError }
