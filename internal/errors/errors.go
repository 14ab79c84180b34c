// Package errors provides a lightweight structured error type (TweakError)
// for category-based classification of engine failures surfaced to the CLI.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a tweakctl error for classification
type ErrorCategory string

const (
	// User-facing input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Missing knobs, transactions or backup blobs. A missing backup blob
	// means data loss and must reach the caller, never be skipped.
	CategoryNotFound ErrorCategory = "not-found"

	// Root required but absent. Fails closed before any mutation so the
	// caller can re-invoke with elevation.
	CategoryPrivilege ErrorCategory = "privilege"

	// Package manager, systemd or boot-updater failures (non-zero exit,
	// timeout). Never fatal to unrelated knobs in the same batch.
	CategoryExternal ErrorCategory = "external"

	// Persisted transaction state problems (corrupt manifest, missing
	// transaction directory).
	CategoryState ErrorCategory = "state"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// TweakError is a structured error with category, severity, and context
type TweakError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"-"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for TweakError
type ContextFields map[string]any

// Error implements the error interface
func (e *TweakError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *TweakError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *TweakError) WithContext(key string, value any) *TweakError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new TweakError
func New(category ErrorCategory, severity ErrorSeverity, message string) *TweakError {
	return &TweakError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new TweakError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *TweakError {
	return &TweakError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var te *TweakError
	if errors.As(err, &te) {
		return te.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if the error carries no TweakError in its chain
func GetCategory(err error) ErrorCategory {
	var te *TweakError
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryInternal
}

// NotFound creates a not-found error for a named resource
func NotFound(kind, name string) *TweakError {
	return New(CategoryNotFound, SeverityError, fmt.Sprintf("%s not found: %s", kind, name)).
		WithContext("kind", kind).
		WithContext("name", name)
}

// Privilege creates a privilege error; message should name the refused operation
func Privilege(message string) *TweakError {
	return New(CategoryPrivilege, SeverityFatal, message)
}

// External wraps a failed external command invocation
func External(err error, command string, exitCode int, stderr string) *TweakError {
	return Wrap(err, CategoryExternal, SeverityError, fmt.Sprintf("external command failed: %s", command)).
		WithContext("exit_code", exitCode).
		WithContext("stderr", stderr)
}

// ValidationError creates a new validation error
func ValidationError(message string) *TweakError {
	return New(CategoryValidation, SeverityError, message)
}
