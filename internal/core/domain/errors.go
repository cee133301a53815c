// Package domain defines the core domain models for FileLink.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
//
// Codes follow the format FL-<AREA>-<NNNN>; the last four digits carry the
// HTTP status family the transport maps them to.
type DomainError struct {
	Code    string // Error code (e.g., "FL-LINK-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Link Errors (LINK)
// ============================================================================

var (
	// ErrLinkNotFound is the single outcome for absent, exhausted and expired
	// tokens. Callers must not be able to tell these apart.
	ErrLinkNotFound = NewDomainError("FL-LINK-4040", "link not found")

	// ErrTokenConflict is returned by repositories when the token already exists.
	ErrTokenConflict = NewDomainError("FL-LINK-4090", "token already exists")

	// ErrStoreExhausted indicates insert could not find a free token within
	// the retry budget.
	ErrStoreExhausted = NewDomainError("FL-LINK-5070", "token space exhausted")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("FL-SYS-5000", "internal server error")

	// ErrStorageError indicates the backing store failed or was unreachable.
	ErrStorageError = NewDomainError("FL-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("FL-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("FL-SYS-4000", "bad request")

	// ErrUnauthorized indicates missing or wrong admin credentials.
	ErrUnauthorized = NewDomainError("FL-SYS-4010", "unauthorized")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("FL-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("FL-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("FL-ARG-1002", "missing required argument")
)
