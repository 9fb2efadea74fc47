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

// Is matches on code and message so a WithCause copy of a sentinel still
// satisfies errors.Is against the sentinel itself.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of e carrying err as its underlying cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
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
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUpstream         = "UPSTREAM_ERROR"
)

// Validation errors
var (
	ErrMissingCourseTitle = NewDomainError(ErrCodeValidation, "document is missing the Course Title header")
	ErrInvalidChunkConfig = NewDomainError(ErrCodeValidation, "chunk overlap must be strictly less than chunk size")
	ErrEmptyQuery         = NewDomainError(ErrCodeValidation, "query text cannot be empty")
)

// Not found errors
var (
	ErrCourseNotFound  = NewDomainError(ErrCodeNotFound, "course not found")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// Already exists errors
var (
	ErrCourseAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "course already exists")
)

// Operation errors
var (
	ErrUnknownTool     = NewDomainError(ErrCodeInvalidOperation, "unknown tool name")
	ErrInvalidToolCall = NewDomainError(ErrCodeInvalidOperation, "invalid tool invocation")
)

// Upstream failures from the embedding or chat providers. These propagate to
// the caller unretried; conversation memory is left untouched for the turn.
var (
	ErrGenerationFailed = NewDomainError(ErrCodeUpstream, "answer generation failed")
	ErrEmbeddingFailed  = NewDomainError(ErrCodeUpstream, "embedding generation failed")
)
