package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent violations of the content model.
// They are distinct from infrastructure errors (object store, database, network).

var (
	// ===========================================
	// Addressing Errors
	// ===========================================

	// ErrOutOfRange indicates a requested logical range is outside of the content.
	ErrOutOfRange = errors.New("range out of bounds")

	// ErrInvalidSegment indicates a segment with a negative offset or size.
	ErrInvalidSegment = errors.New("invalid segment")

	// ===========================================
	// Splitter Errors
	// ===========================================

	// ErrLineOverflow indicates a single line is longer than the allowed maximum.
	ErrLineOverflow = errors.New("line exceeds the max size limit")

	// ErrSegmentOverflow indicates a child (header included) cannot hold even one data row.
	ErrSegmentOverflow = errors.New("The segment will not fit within the max size limit")

	// ErrHeaderNotFound indicates headers were requested but every line was a comment.
	ErrHeaderNotFound = errors.New("Unable to find the header line")

	// ErrInvalidSplitterParams indicates a splitter parameter outside its valid range.
	ErrInvalidSplitterParams = errors.New("invalid splitter parameters")

	// ===========================================
	// Storage Errors
	// ===========================================

	// ErrObjectNotFound indicates a referenced object does not exist in the store.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStorage indicates the object store failed.
	ErrStorage = errors.New("object storage failure")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., content name, object name).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
