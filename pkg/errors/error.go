// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, configuration, sizing policies
//   - Data/Resource errors (200-299): Missing or insufficient market data
//   - Indicator errors (300-399): Indicator lookup, calculation, and streaming errors
//   - Expression errors (400-499): Condition expression syntax and variable errors
//   - Signal/Position errors (500-599): Signal conflicts and position lifecycle errors
//   - Backtest errors (600-699): Backtest driver and result store errors
//   - Market data errors (700-799): Market data fetching and parsing errors
//   - Engine errors (800-899): Engine lifecycle errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeDataNotFound, "no data for symbol %s", symbol)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeIndicatorCalculation, "rsi update failed", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeSignalConflict) { ... }
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// InsufficientDataError represents an error when there is not enough data
// for a calculation (e.g., indicator calculations requiring a minimum period).
type InsufficientDataError struct {
	Required int    // Minimum data points required
	Actual   int    // Actual data points available
	Symbol   string // Optional: symbol context
	Message  string // Human-readable message
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(required, actual int, symbol, message string) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Symbol:   symbol,
		Message:  message,
	}
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(required, actual int, symbol, format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Symbol:   symbol,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return e.Message
}

// IsInsufficientDataError checks if an error is an InsufficientDataError.
// It uses errors.As to check the error chain.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}

// UndefinedVariablesError reports every identifier referenced by a condition
// expression that is not present in the set of known variable names.
type UndefinedVariablesError struct {
	Expression string
	Names      []string
}

// NewUndefinedVariablesError creates a new UndefinedVariablesError.
// The names are stored sorted so the error message is deterministic.
func NewUndefinedVariablesError(expression string, names []string) *UndefinedVariablesError {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	return &UndefinedVariablesError{
		Expression: expression,
		Names:      sorted,
	}
}

// Error implements the error interface.
func (e *UndefinedVariablesError) Error() string {
	return fmt.Sprintf("[%d] undefined variables in %q: %s",
		ErrCodeUndefinedVariable, e.Expression, strings.Join(e.Names, ", "))
}

// IsUndefinedVariablesError checks if an error is an UndefinedVariablesError.
func IsUndefinedVariablesError(err error) bool {
	var undefErr *UndefinedVariablesError

	return errors.As(err, &undefErr)
}

// ConflictError is returned when entry and exit (or entry and stop) conditions
// both evaluate true on the same tick. The caller decides whether to treat the
// conflict as fatal or apply an exit-takes-precedence policy.
type ConflictError struct {
	Symbol  string
	Entry   string
	Against string // the conflicting expression kind: "exit" or "stop"
}

// NewConflictError creates a new ConflictError.
func NewConflictError(symbol, entry, against string) *ConflictError {
	return &ConflictError{
		Symbol:  symbol,
		Entry:   entry,
		Against: against,
	}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("[%d] entry and %s conditions both true for %s (entry: %q)",
		ErrCodeSignalConflict, e.Against, e.Symbol, e.Entry)
}

// IsConflictError checks if an error is a ConflictError.
func IsConflictError(err error) bool {
	var conflictErr *ConflictError

	return errors.As(err, &conflictErr)
}

// NotReadyError is returned by value queries made before the first
// successful computation has occurred.
type NotReadyError struct {
	Symbol string
}

// NewNotReadyError creates a new NotReadyError.
func NewNotReadyError(symbol string) *NotReadyError {
	return &NotReadyError{Symbol: symbol}
}

// Error implements the error interface.
func (e *NotReadyError) Error() string {
	return fmt.Sprintf("[%d] no successful computation yet for %s", ErrCodeNotReady, e.Symbol)
}

// IsNotReadyError checks if an error is a NotReadyError.
func IsNotReadyError(err error) bool {
	var notReadyErr *NotReadyError

	return errors.As(err, &notReadyErr)
}
