package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/handyrules/internal/rule"
)

// Regex returns an enabled regex rule with default fields.
func Regex(id, pattern, replacement string, priority int) rule.Rule {
	r := rule.Defaults()
	r.ID = id
	r.Pattern = pattern
	r.Replacement = replacement
	r.Priority = priority
	return r
}

// Function returns an enabled function rule.
func Function(id, name string, priority int) rule.Rule {
	r := rule.Defaults()
	r.ID = id
	r.Kind = rule.KindFunction
	r.Pattern = name
	r.Priority = priority
	return r
}

// Shell returns an enabled shell rule with the given timeout.
func Shell(id, command string, priority, timeoutMS int) rule.Rule {
	r := rule.Defaults()
	r.ID = id
	r.Kind = rule.KindShell
	r.Pattern = command
	r.Priority = priority
	r.TimeoutMS = timeoutMS
	return r
}

// RuleSet compiles rules in the given load order with shell rules allowed.
// Fails the test on any validation error.
func RuleSet(t testing.TB, rules ...rule.Rule) *rule.RuleSet {
	t.Helper()
	compiled := make([]*rule.Compiled, 0, len(rules))
	for _, r := range rules {
		c, err := rule.Compile(r, rule.CompileOptions{ShellEnabled: true})
		require.NoError(t, err, "compile rule %q", r.ID)
		compiled = append(compiled, c)
	}
	return rule.NewRuleSet(compiled)
}

// WriteRules writes rules as a JSON array to dir/name and returns the path.
func WriteRules(t testing.TB, dir, name string, rules ...rule.Rule) string {
	t.Helper()
	if rules == nil {
		rules = []rule.Rule{}
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
