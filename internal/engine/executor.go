package engine

import (
	"context"

	"github.com/roach88/handyrules/internal/rule"
)

// outcome is what one executor reports back to the pipeline.
type outcome struct {
	output  string
	matched bool
	err     error
}

// execute dispatches one rule to its executor. On error the returned
// output is the unchanged input.
func (e *Engine) execute(ctx context.Context, c *rule.Compiled, text string) outcome {
	switch c.Kind() {
	case rule.KindRegex:
		return applyRegex(c, text)

	case rule.KindFunction:
		out := applyFunction(c, text)
		return outcome{output: out, matched: out != text}

	case rule.KindShell:
		out, err := e.shell.Run(ctx, c.ID(), c.Rule().Pattern, text, c.Timeout())
		if err != nil {
			return outcome{output: text, err: err}
		}
		return outcome{output: out, matched: out != text}

	default:
		return outcome{output: text}
	}
}

// applyRegex replaces every non-overlapping match. $1 and ${name} in the
// replacement refer to capture groups. Matching runs over runes, so \b and
// \w follow Unicode word rules.
func applyRegex(c *rule.Compiled, text string) outcome {
	re := c.Regexp()

	found, err := re.MatchString(text)
	if err != nil {
		return outcome{output: text, err: regexError(c.ID(), err)}
	}
	if !found {
		return outcome{output: text}
	}

	out, err := re.Replace(text, c.Rule().Replacement, -1, -1)
	if err != nil {
		return outcome{output: text, err: regexError(c.ID(), err)}
	}
	return outcome{output: out, matched: true}
}

// regexError wraps a regexp2 runtime error. The only runtime error regexp2
// produces is a match timeout.
func regexError(id string, err error) error {
	return &ExecError{
		Code:    ErrCodeRegexTimeout,
		RuleID:  id,
		Message: "regex evaluation exceeded its match timeout",
		Err:     err,
	}
}
