package rule

import (
	"errors"
	"fmt"
)

// ValidationError reports why a rule was rejected at load time.
//
// A rejected rule is skipped; it never aborts the rest of its batch.
type ValidationError struct {
	// Code identifies the error category.
	Code ValidationCode

	// RuleID is the offending rule's id, empty when the id itself is missing.
	RuleID string

	// Source is the file the rule came from, if known.
	Source string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (e.g. a regex compile error).
	Err error
}

// ValidationCode categorizes validation errors.
type ValidationCode string

const (
	// ErrCodeMissingField indicates a required field (id, pattern) is empty.
	ErrCodeMissingField ValidationCode = "MISSING_FIELD"

	// ErrCodeInvalidField indicates a field holds an out-of-range value.
	ErrCodeInvalidField ValidationCode = "INVALID_FIELD"

	// ErrCodeUnknownKind indicates the type field names no known kind.
	ErrCodeUnknownKind ValidationCode = "UNKNOWN_KIND"

	// ErrCodeInvalidPattern indicates a regex pattern failed to compile.
	ErrCodeInvalidPattern ValidationCode = "INVALID_PATTERN"

	// ErrCodeUnknownFunction indicates a function rule names no builtin.
	ErrCodeUnknownFunction ValidationCode = "UNKNOWN_FUNCTION"

	// ErrCodeShellDisabled indicates a shell rule while shell rules are off.
	ErrCodeShellDisabled ValidationCode = "SHELL_DISABLED"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	switch {
	case e.RuleID != "" && e.Source != "":
		return fmt.Sprintf("%s: rule %q: %s (source=%s)", e.Code, e.RuleID, msg, e.Source)
	case e.RuleID != "":
		return fmt.Sprintf("%s: rule %q: %s", e.Code, e.RuleID, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsShellDisabled reports whether err is a shell-disabled validation error.
func IsShellDisabled(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == ErrCodeShellDisabled
	}
	return false
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
