// Package errors provides the boundary error type for the locator engine.
//
// Internal iteration control never uses these: phase-ID changes and step
// damping are signalled through locator.Status, not errors (spec §7).
// AppError is reserved for the few genuine boundary faults (bad input,
// unreadable auxiliary data, config problems).
package errors

import "fmt"

// AppError represents a structured boundary error.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an error with additional context, preserving the error code
// when the cause is itself an AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{Code: appErr.Code, Message: message, Cause: appErr}
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// Wrapf wraps an error with formatted additional context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError reports whether err is an AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// Code returns the error code if it's an AppError, otherwise "UNKNOWN".
func Code(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes, mirroring the boundary fault kinds in spec §7.
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeBadInput        = "BAD_INPUT"
	CodeCouldNotReadTT  = "COULD_NOT_READ_TT_DATA"
	CodeCouldNotReadAux = "COULD_NOT_READ_AUX_DATA"
	CodeInternal        = "INTERNAL_ERROR"
)

func ConfigInvalid(message string) *AppError { return New(CodeConfigInvalid, message) }

func BadInput(message string) *AppError { return New(CodeBadInput, message) }

// CouldNotReadTT wraps a travel-time provider fault. These are surfaced at
// the boundary only -- never inside the iteration loop (spec §7).
func CouldNotReadTT(cause error) *AppError {
	return &AppError{Code: CodeCouldNotReadTT, Message: "could not read travel-time data", Cause: cause}
}

// CouldNotReadAux wraps an auxiliary-data provider fault (slab, zone
// statistics, craton map).
func CouldNotReadAux(cause error) *AppError {
	return &AppError{Code: CodeCouldNotReadAux, Message: "could not read auxiliary data", Cause: cause}
}

func Internal(message string) *AppError { return New(CodeInternal, message) }
