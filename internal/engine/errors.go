package engine

import (
	"errors"
	"fmt"
)

// ExecError represents a rule that failed while being applied.
//
// An ExecError never aborts apply. The failing rule's effect is dropped
// for the current request and the error is recorded in the trace.
type ExecError struct {
	// Code identifies the error category.
	Code ExecErrorCode

	// RuleID identifies the failing rule.
	RuleID string

	// Message is a human-readable description.
	Message string

	// ExitCode is the process exit status for SHELL_EXIT, else zero.
	ExitCode int

	// Stderr holds diagnostic output of a failed shell command.
	Stderr string

	// Err is the underlying cause.
	Err error
}

// ExecErrorCode categorizes execution errors.
type ExecErrorCode string

const (
	// ErrCodeShellSpawn indicates the shell process could not be started.
	ErrCodeShellSpawn ExecErrorCode = "SHELL_SPAWN"

	// ErrCodeShellTimeout indicates the command outlived timeout_ms and was killed.
	ErrCodeShellTimeout ExecErrorCode = "SHELL_TIMEOUT"

	// ErrCodeShellExit indicates the command exited with a nonzero status.
	ErrCodeShellExit ExecErrorCode = "SHELL_EXIT"

	// ErrCodeShellCancelled indicates the request was cancelled mid-command.
	ErrCodeShellCancelled ExecErrorCode = "SHELL_CANCELLED"

	// ErrCodeRegexTimeout indicates a regex evaluation exceeded its match timeout.
	ErrCodeRegexTimeout ExecErrorCode = "REGEX_TIMEOUT"

	// ErrCodeShellSkipped indicates a shell rule met an engine with shell rules off.
	ErrCodeShellSkipped ExecErrorCode = "SHELL_SKIPPED"
)

// Error implements the error interface.
func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s: rule %q: %s", e.Code, e.RuleID, e.Message)
	if e.Stderr != "" {
		msg += fmt.Sprintf(" (stderr: %s)", e.Stderr)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a shell or regex timeout.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeShellTimeout || ee.Code == ErrCodeRegexTimeout
	}
	return false
}

// IsCancelled reports whether err stems from request cancellation.
func IsCancelled(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeShellCancelled
	}
	return false
}
