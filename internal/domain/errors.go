package domain

import "fmt"

// Error type constants for API error responses
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeConflict     = "conflict"
	ErrorTypeIntegrity    = "integrity_error"
	ErrorTypeUnauthorized = "unauthorized"
	ErrorTypeForbidden    = "forbidden"
	ErrorTypeInternal     = "internal_error"
	ErrorTypeRateLimited  = "rate_limited"
)

// APIError is the JSON error body returned by every handler
type APIError struct {
	Status  int               `json:"status"`
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewAPIError creates an APIError with the given status, type and message
func NewAPIError(status int, errType, message string) *APIError {
	return &APIError{Status: status, Type: errType, Message: message}
}

// IntegrityError describes a referential integrity violation: a reference
// field pointing at a missing, soft-deleted, or structurally wrong target.
type IntegrityError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s: %s", e.Field, e.Reason)
}

// NewIntegrityError creates an IntegrityError for the given field
func NewIntegrityError(field, reason string) *IntegrityError {
	return &IntegrityError{Field: field, Reason: reason}
}
