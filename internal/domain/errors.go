// Package domain defines core types, interfaces, and errors for the
// reporting platform.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates insufficient permissions.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// Compiler error codes. Every failure leaving the query compiler carries
// one of these so the API layer can render a precise message instead of a
// generic 500.
const (
	CompileCodeNoMetrics         = "NO_METRICS"
	CompileCodePlanValidation    = "PLAN_VALIDATION_ERROR"
	CompileCodeInvalidDateRange  = "INVALID_DATE_RANGE"
	CompileCodeDateRangeTooLarge = "DATE_RANGE_TOO_LARGE"
	CompileCodeFilterEmptyValues = "FILTER_EMPTY_VALUES"
)

// CompilerError is the single error kind raised by the metrics query
// compiler. Code is machine-readable; Message is human-readable.
type CompilerError struct {
	Code    string
	Message string
}

func (e *CompilerError) Error() string { return e.Message }

// ErrCompile creates a CompilerError with a formatted message.
func ErrCompile(code, format string, args ...interface{}) *CompilerError {
	return &CompilerError{Code: code, Message: fmt.Sprintf(format, args...)}
}
