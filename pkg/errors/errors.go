// Package errors provides structured error types for pipo.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the compiler, the session and the CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map onto the failure classes of a preview compilation:
//   - GRAPH_ERROR: an import could not be analyzed (logged, never fatal)
//   - COMPILE_ERROR: a backend rejected a file (see [CompileError])
//   - BACKEND_INIT_ERROR: a compiler backend failed to initialize
//   - RUNTIME_ERROR: an error thrown inside the sandbox
//   - PROTOCOL_ERROR: a malformed or unknown sandbox message
//
// # Usage
//
//	err := errors.New(errors.ErrCodeEntryNotFound, "entry %s was not compiled", entry)
//	if errors.Is(err, errors.ErrCodeEntryNotFound) {
//	    // Handle missing entry
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeBackendInit, origErr, "initialize %s", name)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Pipeline errors
	ErrCodeGraph         Code = "GRAPH_ERROR"
	ErrCodeCompile       Code = "COMPILE_ERROR"
	ErrCodeBackendInit   Code = "BACKEND_INIT_ERROR"
	ErrCodeRuntime       Code = "RUNTIME_ERROR"
	ErrCodeProtocol      Code = "PROTOCOL_ERROR"
	ErrCodeEntryNotFound Code = "ENTRY_NOT_FOUND"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeNetwork  Code = "NETWORK_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or *CompileError with a
// matching code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the chain holds no coded error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return ErrCodeCompile
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

// CompileError is a backend diagnostic for a single file.
//
// Line is 1-based and Column is 0-based, matching the convention of the
// compiler backends. Zero values mean the position is unknown.
type CompileError struct {
	File      string // Virtual path of the failing file
	Line      int
	Column    int
	Message   string
	CodeFrame string // Highlighted source excerpt, may be empty
	Backend   string // Strategy that produced the diagnostic
	Cause     error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString(e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error { return e.Cause }

// AsCompileError extracts a *CompileError from the chain.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
