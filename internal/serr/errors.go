// Package serr provides standardized error handling for Pellucid.
// All errors have stable, machine-readable codes, structured context, and proper wrapping.
package serr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number} where category is 1-9 and number is 001-999.
type Code string

// Error codes organized by category.
const (
	// Definition errors (E1xxx) - illegal DDL targets and malformed commands
	ErrDefinition      Code = "E1001" // Generic schema definition error
	ErrReadOnlyModule  Code = "E1002" // Target module is read-only
	ErrInvalidField    Code = "E1003" // Not a valid field for the object kind
	ErrImmutableID     Code = "E1004" // Object id may only be set at creation
	ErrUnqualifiedName Code = "E1005" // Unqualified name with no default module

	// Dependency errors (E2xxx) - referential integrity violations
	ErrDependency     Code = "E2001" // Delete blocked by surviving referrers
	ErrExprDependency Code = "E2002" // Expression dependency has no safe rewrite

	// Schema errors (E3xxx) - snapshot-level problems
	ErrObjectNotFound  Code = "E3001" // Named object does not exist in snapshot
	ErrObjectExists    Code = "E3002" // Object with the same name already exists
	ErrShellUnresolved Code = "E3003" // Object shell could not be resolved

	// Expression errors (E4xxx) - computed expression compilation
	ErrExprCompile Code = "E4001" // Expression failed to compile
	ErrExprRef     Code = "E4002" // Expression references an unknown object

	// Cache errors (E8xxx) - problems with the local snapshot cache
	ErrCacheInit  Code = "E8001" // Cache initialization failed
	ErrCacheRead  Code = "E8002" // Cache read failed
	ErrCacheWrite Code = "E8003" // Cache write failed

	// Internal errors (E9xxx) - planning-order bugs, not user errors
	ErrInternal       Code = "E9001" // Internal error
	ErrUncompiledExpr Code = "E9002" // Uncompiled expression reached application
)

// Error is the standard error type for Pellucid.
// It provides structured error information with codes, context, and wrapping support.
type Error struct {
	code    Code
	message string
	context map[string]any
	cause   error
}

// Error returns the formatted error string.
// Format:
//
//	[E2001] cannot drop type 'default::User'
//	  depends: index on (.email) of type 'default::Audit'
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.code, e.message))

	// Write context in sorted order for deterministic output
	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n  %s: %v", k, e.context[k]))
		}
	}

	if e.cause != nil {
		b.WriteString(fmt.Sprintf("\n  cause: %v", e.cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error for errors.Unwrap compatibility.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether the target error matches this error.
// Two *Errors match if they carry the same code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.code == targetErr.code
	}

	return false
}

// GetCode returns the error code.
func (e *Error) GetCode() Code {
	return e.code
}

// GetMessage returns the error message.
func (e *Error) GetMessage() string {
	return e.message
}

// GetContext returns the error context map.
func (e *Error) GetContext() map[string]any {
	return e.context
}

// With adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

// WithObject adds the verbose name of the offending schema object.
func (e *Error) WithObject(verbose string) *Error {
	return e.With("object", verbose)
}

// WithDetail adds a free-form detail line, typically enumerating every
// blocking referrer or dependent expression.
func (e *Error) WithDetail(detail string) *Error {
	return e.With("detail", detail)
}

// Details returns the detail line, if set.
func (e *Error) Details() string {
	d, _ := e.context["detail"].(string)
	return d
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		code:    code,
		message: fmt.Sprintf(format, args...),
		context: make(map[string]any),
	}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(code Code, err error, msg string) *Error {
	if err == nil {
		return New(code, msg)
	}
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		cause:   err,
	}
}

// Wrapf creates a new Error that wraps an existing error with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// GetErrorCode extracts the error code from an error chain.
// Returns empty string if no code is found.
func GetErrorCode(err error) Code {
	if err == nil {
		return ""
	}

	var serr *Error
	if errors.As(err, &serr) {
		return serr.code
	}

	return ""
}

// Is checks if an error has the specified code.
func Is(err error, code Code) bool {
	return GetErrorCode(err) == code
}

// HasCode checks if an error has any error code.
func HasCode(err error) bool {
	return GetErrorCode(err) != ""
}
