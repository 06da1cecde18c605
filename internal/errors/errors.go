// Package errors provides standardized error types for flux-table operations.
// This package defines FluxError for consistent error handling across
// all public APIs, with operation context and error wrapping support.
package errors

import (
	"fmt"
)

// FluxError represents standardized errors across all flux-table operations
type FluxError struct {
	Op      string // Operation name (e.g., "Locations", "Fill", "Resample")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *FluxError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, e.Message)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *FluxError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is()
func (e *FluxError) Is(target error) bool {
	if fe, ok := target.(*FluxError); ok {
		return e.Op == fe.Op && e.Column == fe.Column && e.Message == fe.Message
	}
	return false
}

// Common error constructors for consistent error creation

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *FluxError {
	return &FluxError{
		Op:      op,
		Column:  column,
		Message: "column does not exist",
		Cause:   ErrColumnNotFound,
	}
}

// NewMalformedNameError creates an error for column names that do not follow
// the measurement naming convention
func NewMalformedNameError(op, column, message string) *FluxError {
	return &FluxError{
		Op:      op,
		Column:  column,
		Message: message,
		Cause:   ErrMalformedName,
	}
}

// NewIndexMismatchError creates an error for series whose time indices disagree
func NewIndexMismatchError(op, message string) *FluxError {
	return &FluxError{
		Op:      op,
		Message: message,
		Cause:   ErrIndexMismatch,
	}
}

// NewUnsortedIndexError creates an error for operations requiring a
// monotonically increasing time index
func NewUnsortedIndexError(op string) *FluxError {
	return &FluxError{
		Op:      op,
		Message: "time index is not monotonically increasing",
		Cause:   ErrUnsortedIndex,
	}
}

// NewLengthMismatchError creates an error for mismatched value counts
func NewLengthMismatchError(op string, want, got int) *FluxError {
	return &FluxError{
		Op:      op,
		Message: fmt.Sprintf("expected %d values, got %d", want, got),
		Cause:   ErrMismatchedLength,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *FluxError {
	return &FluxError{
		Op:      op,
		Message: message,
	}
}

// NewValidationError creates an error for input validation failures
func NewValidationError(op, column, message string) *FluxError {
	return &FluxError{
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// NewUnsupportedTypeError creates an error for unsupported data types
func NewUnsupportedTypeError(op, typeName string) *FluxError {
	return &FluxError{
		Op:      op,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
	}
}

// Predefined error variables for common cases
var (
	// ErrMismatchedLength indicates length mismatches between index and values
	ErrMismatchedLength = &FluxError{
		Op:      "validation",
		Message: "index and values must have the same length",
	}

	// ErrColumnNotFound indicates a referenced column is absent from a table
	ErrColumnNotFound = &FluxError{
		Op:      "lookup",
		Message: "column does not exist",
	}

	// ErrMalformedName indicates a column name that cannot be tokenized into
	// measurement, horizontal and vertical position parts
	ErrMalformedName = &FluxError{
		Op:      "naming",
		Message: "column name does not follow the measurement naming convention",
	}

	// ErrIndexMismatch indicates two series whose time indices are not identical
	ErrIndexMismatch = &FluxError{
		Op:      "align",
		Message: "series time indices are not identical",
	}

	// ErrUnsortedIndex indicates a time index that is not monotonically increasing
	ErrUnsortedIndex = &FluxError{
		Op:      "ordering",
		Message: "time index is not monotonically increasing",
	}
)
