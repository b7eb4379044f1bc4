package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeConsistency   = "CONSISTENCY_FAULT"
)

// Validation errors: caller-input faults, no partial state change.
var (
	ErrInvalidTag           = NewDomainError(ErrCodeValidation, "tag must be a kebab-case token")
	ErrEmptyContent         = NewDomainError(ErrCodeValidation, "content cannot be empty")
	ErrUnderspecifiedFilter = NewDomainError(ErrCodeValidation, "delete filter requires at least one criterion")
	ErrInvalidFilter        = NewDomainError(ErrCodeValidation, "invalid filter")
	ErrInvalidResolution    = NewDomainError(ErrCodeValidation, "invalid resolution action")
)

// Not found errors
var (
	ErrEntryNotFound      = NewDomainError(ErrCodeNotFound, "knowledge entry not found")
	ErrResolutionNotFound = NewDomainError(ErrCodeNotFound, "pending resolution not found or expired")
)

// Authorization errors
var (
	ErrCapabilityRequired = NewDomainError(ErrCodeUnauthorized, "operation requires the admin capability")
)

// Transient infrastructure errors: retried with bounded backoff at the
// call site, surfaced after exhaustion.
var (
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeUnavailable, "embedding backend unavailable")
	ErrStoreTimeout         = NewDomainError(ErrCodeUnavailable, "store operation timed out")
)

// Consistency faults: one-sided entries across the two stores. Never
// surfaced as a query match.
var (
	ErrVectorOrphan = NewDomainError(ErrCodeConsistency, "vector index hit with no backing record")
)
