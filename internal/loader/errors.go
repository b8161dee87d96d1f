package loader

import (
	"errors"
	"fmt"
)

// SourceError reports a rule source that could not be used at all.
// The offending source is skipped; the remaining sources still load.
type SourceError struct {
	// Code identifies the error category.
	Code SourceErrorCode

	// Path is the source path, glob or file.
	Path string

	// Err is the underlying cause.
	Err error
}

// SourceErrorCode categorizes source errors.
type SourceErrorCode string

const (
	// ErrCodeSourceMissing indicates the path does not exist and is not a glob.
	ErrCodeSourceMissing SourceErrorCode = "SOURCE_MISSING"

	// ErrCodeSourceRead indicates the path exists but could not be read.
	ErrCodeSourceRead SourceErrorCode = "SOURCE_READ"

	// ErrCodeSourceParse indicates the file is not an array of rule objects.
	ErrCodeSourceParse SourceErrorCode = "SOURCE_PARSE"
)

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Path)
}

// Unwrap returns the underlying cause.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsSourceError reports whether err wraps a *SourceError.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}

// WarningKind categorizes load warnings.
type WarningKind string

const (
	// WarningSkipped: a rule failed validation and was left out.
	WarningSkipped WarningKind = "skipped"

	// WarningOverride: a later definition replaced an earlier rule with the same id.
	WarningOverride WarningKind = "override"

	// WarningSource: a whole source could not be read or parsed.
	WarningSource WarningKind = "source"

	// WarningEmpty: the merged set has no rules.
	WarningEmpty WarningKind = "empty"
)

// Warning is one non-fatal finding of a load. Warnings are never dropped;
// callers log or print every one of them.
type Warning struct {
	Kind    WarningKind
	RuleID  string
	Path    string
	Message string
	Err     error
}

// String formats the warning for humans.
func (w Warning) String() string {
	s := string(w.Kind)
	if w.RuleID != "" {
		s += fmt.Sprintf(" rule %q", w.RuleID)
	}
	if w.Path != "" {
		s += fmt.Sprintf(" (%s)", w.Path)
	}
	if w.Message != "" {
		s += ": " + w.Message
	}
	if w.Err != nil {
		s += ": " + w.Err.Error()
	}
	return s
}
