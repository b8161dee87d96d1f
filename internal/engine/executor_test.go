package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/handyrules/internal/rule"
	"github.com/roach88/handyrules/internal/testutil"
)

func TestFunctionTable_Complete(t *testing.T) {
	for _, name := range rule.FunctionNames() {
		fn, ok := rule.ParseFunction(name)
		require.True(t, ok, name)
		_, ok = functionTable[fn]
		assert.True(t, ok, "no implementation for %s", name)
	}
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		fn   rule.Function
		in   string
		want string
	}{
		{rule.FuncUppercase, "straße", "STRASSE"},
		{rule.FuncUppercase, "héllo", "HÉLLO"},
		{rule.FuncLowercase, "ÀB C", "àb c"},
		{rule.FuncTrim, " \t a b \n", "a b"},
		{rule.FuncTrimStart, "  a b  ", "a b  "},
		{rule.FuncTrimEnd, "  a b  ", "  a b"},
		{rule.FuncCapitalize, "élan vital", "Élan vital"},
		{rule.FuncCapitalize, "", ""},
		{rule.FuncCapitalize, "already Capital", "Already Capital"},
		{rule.FuncReverse, "abc", "cba"},
		{rule.FuncReverse, "añb", "bña"},
		{rule.FuncNormalizeWhitespace, "  a \t b\n\nc  ", "a b c"},
		{rule.FuncNormalizeWhitespace, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.fn.String()+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, functionTable[tt.fn](tt.in))
		})
	}
}

func TestApplyRegex_MatchedWithoutChange(t *testing.T) {
	set := testutil.RuleSet(t, testutil.Regex("same", "^done$", "done", 0))
	c, _ := set.Lookup("same")

	res := applyRegex(c, "done")

	assert.NoError(t, res.err)
	assert.True(t, res.matched, "a regex that matches counts as matched even if the text is unchanged")
	assert.Equal(t, "done", res.output)
}

func TestFunctionRule_MatchedOnlyWhenChanged(t *testing.T) {
	set := testutil.RuleSet(t, testutil.Function("trim", "trim", 0))
	c, _ := set.Lookup("trim")
	e := newEngine()

	res := e.execute(t.Context(), c, "tidy")
	assert.False(t, res.matched)

	res = e.execute(t.Context(), c, " tidy ")
	assert.True(t, res.matched)
	assert.Equal(t, "tidy", res.output)
}

func TestExecError_Format(t *testing.T) {
	err := &ExecError{Code: ErrCodeShellExit, RuleID: "sh", Message: "command exited with status 3", Stderr: "boom"}
	assert.Equal(t, `SHELL_EXIT: rule "sh": command exited with status 3 (stderr: boom)`, err.Error())
	assert.False(t, IsTimeout(err))

	wrapped := errors.Join(errors.New("ctx"), &ExecError{Code: ErrCodeShellCancelled, RuleID: "sh"})
	assert.True(t, IsCancelled(wrapped))
}
