package pellucid

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
var (
	// ErrCacheDisabled is returned when an operation needs the
	// snapshot cache but the client was built with WithoutCache.
	ErrCacheDisabled = errors.New("pellucid: snapshot cache disabled")

	// ErrNoSchemaFiles is returned when the schema directory contains
	// no schema documents.
	ErrNoSchemaFiles = errors.New("pellucid: no schema documents found")

	// ErrSchemaInvalid is returned when a schema document is malformed.
	ErrSchemaInvalid = errors.New("pellucid: schema invalid")

	// ErrPlanFailed is returned when a migration plan fails to apply.
	ErrPlanFailed = errors.New("pellucid: plan failed")
)

// SchemaError provides detailed information about a schema document error.
type SchemaError struct {
	// File is the path to the schema document.
	File string

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error returns a formatted error message.
func (e *SchemaError) Error() string {
	location := ""
	if e.File != "" {
		location = e.File + ": "
	}
	if e.Cause != nil {
		return fmt.Sprintf("pellucid: %s%s: %v", location, e.Message, e.Cause)
	}
	return fmt.Sprintf("pellucid: %s%s", location, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaInvalid
}

// PlanError provides detailed information about a failed plan application.
type PlanError struct {
	// Statement is the rendered form of the command that failed.
	Statement string

	// Cause is the underlying error from the migration engine.
	Cause error
}

// Error returns a formatted error message.
func (e *PlanError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("pellucid: plan failed at %s: %v", e.Statement, e.Cause)
	}
	return fmt.Sprintf("pellucid: plan failed: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *PlanError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
func (e *PlanError) Is(target error) bool {
	return target == ErrPlanFailed
}
