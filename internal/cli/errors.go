// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error handling and exit codes for the voxrun CLI.
//
// Provides typed errors with structured context, consistent display
// formatting, and deterministic exit codes so scripts wrapping voxrun
// can branch on failure class.
//
// RELIABILITY: One rule overrides all categories. When the XTTS server
// process itself exits non-zero, voxrun exits with the server's exact
// code. Supervisors watching the launcher must see the server's status,
// not a launcher-invented one.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/voxrun/internal/xtts"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitGeneralError indicates an unclassified error.
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments.
	ExitUsageError = 2
	// ExitConfigError indicates a configuration load or validation error.
	ExitConfigError = 3
	// ExitServerError indicates the server could not be started at all
	// (missing interpreter, bad working directory). Distinct from the
	// server starting and then exiting, which forwards the server's code.
	ExitServerError = 4
	// ExitNetworkError indicates the server API was unreachable.
	ExitNetworkError = 5
	// ExitDaemonError indicates a daemon lifecycle error.
	ExitDaemonError = 6
	// ExitNotFoundError indicates a resource (voice, record) was not found.
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out.
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents an error executing a command, with context
// about what was being attempted.
type CommandError struct {
	// Command is the command that failed (e.g. "launch", "bench").
	Command string
	// Action describes what was being attempted.
	Action string
	// Reason is a human-readable explanation.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Command, e.Action, e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a CommandError with context.
func NewCommandError(command, action, reason string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// ValidationError represents an invalid argument or flag value.
type ValidationError struct {
	// Field is the argument or flag name.
	Field string
	// Value is what the user provided.
	Value string
	// Reason explains why it is invalid.
	Reason string
	// Example shows a valid usage, shown as a hint when non-empty.
	Example string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, reason, example string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// PermissionError represents a filesystem permission failure.
type PermissionError struct {
	// Path is the file or directory involved.
	Path string
	// Operation is what was attempted (read, write, create).
	Operation string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: cannot %s %s", e.Operation, e.Path)
}

// Unwrap returns the underlying error.
func (e *PermissionError) Unwrap() error {
	return e.Err
}

// NewPermissionError creates a PermissionError.
func NewPermissionError(path, operation string, err error) *PermissionError {
	return &PermissionError{Path: path, Operation: operation, Err: err}
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	// Type is the resource kind ("voice", "launch record", "config key").
	Type string
	// Name identifies the missing resource.
	Name string
	// Suggestion is an optional hint shown to the user.
	Suggestion string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.Name)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resourceType, name, suggestion string) *NotFoundError {
	return &NotFoundError{Type: resourceType, Name: name, Suggestion: suggestion}
}

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// ErrMissingArgument creates a usage error for a missing required argument.
func ErrMissingArgument(command, argument, example string) error {
	return NewValidationError(
		argument, "",
		fmt.Sprintf("required argument missing for %q", command),
		example,
	)
}

// ErrInvalidFormat creates a usage error for a malformed value.
func ErrInvalidFormat(field, value, expected string) error {
	return NewValidationError(field, value, fmt.Sprintf("expected %s", expected), "")
}

// ErrNotFound creates a not-found error with a suggestion.
func ErrNotFound(resourceType, name, suggestion string) error {
	return NewNotFoundError(resourceType, name, suggestion)
}

// WrapError wraps an error with command context, preserving the chain.
func WrapError(err error, command, action string) error {
	if err == nil {
		return nil
	}
	return NewCommandError(command, action, "operation failed", err)
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError prints an error to stderr with appropriate styling and
// any type-specific hints.
func DisplayError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)

	// Type-specific hints
	var validationErr *ValidationError
	if errors.As(err, &validationErr) && validationErr.Example != "" {
		fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render("  Example: "+validationErr.Example))
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) && notFoundErr.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render("  Hint: "+notFoundErr.Suggestion))
	}

	var permErr *PermissionError
	if errors.As(err, &permErr) {
		fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render("  Check permissions on: "+permErr.Path))
	}
}

// DisplayErrorJSON prints an error as a JSON response to stdout.
// Used when --json is active so scripted callers always get valid JSON.
func DisplayErrorJSON(command string, err error) {
	if err == nil {
		return
	}
	resp := NewJSONErrorResponse(command, err)
	resp.Print()
}

// HandleError displays an error in the appropriate format and returns
// its exit code. Does not exit.
func HandleError(command string, err error, jsonMode bool) int {
	if err == nil {
		return ExitSuccess
	}
	if jsonMode {
		DisplayErrorJSON(command, err)
	} else {
		DisplayError(err)
	}
	return GetExitCode(err)
}

// HandleErrorAndExit displays an error and exits with its code.
func HandleErrorAndExit(command string, err error, jsonMode bool) {
	code := HandleError(command, err, jsonMode)
	if code != ExitSuccess {
		os.Exit(code)
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to a process exit code.
//
// A wrapped xtts.ServerExitError always wins: the launcher's exit status
// mirrors the server's own, whatever it was. Typed errors map next, then
// message-based categorization catches errors from deeper packages.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *xtts.ServerExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return ExitNotFoundError
	}

	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return ExitGeneralError
	}

	// Message-based categorization for untyped errors.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "config"):
		return ExitConfigError
	case strings.Contains(msg, "daemon"):
		return ExitDaemonError
	case strings.Contains(msg, "interpreter") || strings.Contains(msg, "executable"):
		return ExitServerError
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ExitTimeoutError
	case strings.Contains(msg, "connection") || strings.Contains(msg, "not running") ||
		strings.Contains(msg, "unreachable"):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// =============================================================================
// ERROR CHECKERS
// =============================================================================

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFoundError reports whether err is a NotFoundError.
func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsPermissionError reports whether err is a PermissionError.
func IsPermissionError(err error) bool {
	var e *PermissionError
	return errors.As(err, &e)
}
