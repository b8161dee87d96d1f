package rule

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout bounds a single regex evaluation. Pathological
// patterns fail the rule instead of stalling the request.
const DefaultMatchTimeout = time.Second

// CompileOptions carries the capability flags and limits that validation
// depends on.
type CompileOptions struct {
	// ShellEnabled permits shell rules. When false, shell rules are
	// rejected with ErrCodeShellDisabled.
	ShellEnabled bool

	// MatchTimeout bounds one regex evaluation. Zero means DefaultMatchTimeout.
	MatchTimeout time.Duration
}

// Compiled is a validated rule plus its resolved executable artifact.
// Compiled values are immutable and safe for concurrent use.
type Compiled struct {
	rule     Rule
	regex    *regexp2.Regexp
	function Function
	timeout  time.Duration
}

// Rule returns a copy of the underlying rule.
func (c *Compiled) Rule() Rule { return c.rule }

// ID returns the rule id.
func (c *Compiled) ID() string { return c.rule.ID }

// Kind returns the rule kind.
func (c *Compiled) Kind() Kind { return c.rule.Kind }

// Enabled reports whether the rule participates in apply.
func (c *Compiled) Enabled() bool { return c.rule.Enabled }

// Regexp returns the compiled pattern of a regex rule, nil otherwise.
func (c *Compiled) Regexp() *regexp2.Regexp { return c.regex }

// Function returns the builtin of a function rule, FuncUnknown otherwise.
func (c *Compiled) Function() Function { return c.function }

// Timeout returns the wall-clock bound of a shell rule, zero otherwise.
func (c *Compiled) Timeout() time.Duration { return c.timeout }

// withEnabled returns a copy sharing the compiled artifact.
func (c *Compiled) withEnabled(enabled bool) *Compiled {
	cp := *c
	cp.rule.Enabled = enabled
	return &cp
}

// Compile validates r and resolves its executable artifact.
//
// Returns a *ValidationError when the rule must be skipped.
func Compile(r Rule, opts CompileOptions) (*Compiled, error) {
	if strings.TrimSpace(r.ID) == "" {
		return nil, &ValidationError{
			Code:    ErrCodeMissingField,
			Source:  r.SourceFile,
			Message: "rule has no id",
		}
	}

	kind, ok := ParseKind(string(r.Kind))
	if !ok {
		return nil, &ValidationError{
			Code:    ErrCodeUnknownKind,
			RuleID:  r.ID,
			Source:  r.SourceFile,
			Message: fmt.Sprintf("unknown rule type %q (want regex, function or shell)", r.Kind),
		}
	}
	r.Kind = kind

	if r.Pattern == "" {
		return nil, &ValidationError{
			Code:    ErrCodeMissingField,
			RuleID:  r.ID,
			Source:  r.SourceFile,
			Message: "rule has no pattern",
		}
	}
	if r.TimeoutMS < 0 {
		return nil, &ValidationError{
			Code:    ErrCodeInvalidField,
			RuleID:  r.ID,
			Source:  r.SourceFile,
			Message: fmt.Sprintf("timeout_ms must not be negative, got %d", r.TimeoutMS),
		}
	}

	c := &Compiled{rule: r}

	switch kind {
	case KindRegex:
		re, err := compileRegex(r, opts)
		if err != nil {
			return nil, &ValidationError{
				Code:    ErrCodeInvalidPattern,
				RuleID:  r.ID,
				Source:  r.SourceFile,
				Message: "pattern does not compile",
				Err:     err,
			}
		}
		c.regex = re

	case KindFunction:
		fn, ok := ParseFunction(r.Pattern)
		if !ok {
			return nil, &ValidationError{
				Code:    ErrCodeUnknownFunction,
				RuleID:  r.ID,
				Source:  r.SourceFile,
				Message: fmt.Sprintf("unknown function %q (want one of %s)", r.Pattern, strings.Join(FunctionNames(), ", ")),
			}
		}
		c.function = fn

	case KindShell:
		if !opts.ShellEnabled {
			return nil, &ValidationError{
				Code:    ErrCodeShellDisabled,
				RuleID:  r.ID,
				Source:  r.SourceFile,
				Message: "shell rules are disabled (set enable_shell_rules to allow them)",
			}
		}
		c.timeout = time.Duration(r.Timeout()) * time.Millisecond
	}

	return c, nil
}

func compileRegex(r Rule, opts CompileOptions) (*regexp2.Regexp, error) {
	options := regexp2.None
	if r.IgnoreCase {
		options |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(r.Pattern, options)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = opts.MatchTimeout
	if re.MatchTimeout <= 0 {
		re.MatchTimeout = DefaultMatchTimeout
	}
	return re, nil
}
