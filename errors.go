package atlasctl

import (
	"errors"
	"fmt"

	"github.com/bijux/atlasctl/exitcodes"
)

// UsageError represents a problem with the invocation or the configuration it names,
// detected before anything runs. It leads to exit code 2.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *UsageError) Unwrap() error {
	return e.Err
}

// NewUsageError creates a new UsageError
func NewUsageError(err error) *UsageError {
	return &UsageError{Err: err}
}

// IsUsageError checks if the error is or wraps a UsageError
func IsUsageError(err error) bool {
	var usageErr *UsageError
	return err != nil && errors.As(err, &usageErr)
}

// RuntimeError represents an operational error after execution started, such as an
// artifact that could not be written. It leads to exit code 3.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// FailureError reports failed tasks, failed lanes or inventory violations (exit code 1).
// The payload has already been printed when it is returned.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string {
	return e.Message
}

// NewFailureError creates a new FailureError
func NewFailureError(format string, args ...any) *FailureError {
	return &FailureError{Message: fmt.Sprintf(format, args...)}
}

// IsFailureError checks if the error is or wraps a FailureError
func IsFailureError(err error) bool {
	var failErr *FailureError
	return err != nil && errors.As(err, &failErr)
}

// ExitCode maps an error returned by a command to the process exit code. Errors that
// are not typed come from flag parsing and count as usage errors.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case IsFailureError(err):
		return exitcodes.Failure
	case IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		return exitcodes.Usage
	}
}
