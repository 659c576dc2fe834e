// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDegenerateInput  = errors.New("degenerate input")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDataNotFound     = errors.New("data not found")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
)

// ValidationError represents a rejected parameter or field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidParameter
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NonNegative returns a ValidationError if value is negative.
func NonNegative(field string, value int) error {
	if value < 0 {
		return NewValidationError(field, value, "must be non-negative")
	}
	return nil
}

// DegenerateInputError is returned when a regression input has fewer than
// two distinct x values.
type DegenerateInputError struct {
	Points         int
	DistinctXCount int
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate input: %d points with %d distinct x values, need at least 2", e.Points, e.DistinctXCount)
}

func (e *DegenerateInputError) Unwrap() error {
	return ErrDegenerateInput
}

// NewDegenerateInputError creates a new DegenerateInputError.
func NewDegenerateInputError(points, distinct int) *DegenerateInputError {
	return &DegenerateInputError{
		Points:         points,
		DistinctXCount: distinct,
	}
}

// PatternError represents an internal failure while evaluating a pattern.
type PatternError struct {
	Pattern string
	Target  int
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern error [%s] at %d: %v", e.Pattern, e.Target, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// NewPatternError creates a new PatternError.
func NewPatternError(pattern string, target int, err error) *PatternError {
	return &PatternError{
		Pattern: pattern,
		Target:  target,
		Err:     err,
	}
}

// DataError represents a data-related error.
type DataError struct {
	Source  string
	Line    int
	Message string
	Err     error
}

func (e *DataError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Source, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("data error [%s]: %s: %v", loc, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s]: %s", loc, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source string, line int, message string, err error) *DataError {
	return &DataError{
		Source:  source,
		Line:    line,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
