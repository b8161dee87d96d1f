package rule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRule_UnmarshalJSON_Defaults(t *testing.T) {
	var r Rule
	err := json.Unmarshal([]byte(`{"id":"a","pattern":"foo"}`), &r)
	require.NoError(t, err)

	assert.Equal(t, "a", r.ID)
	assert.Equal(t, KindRegex, r.Kind)
	assert.True(t, r.Enabled, "enabled defaults to true")
	assert.Equal(t, DefaultTimeoutMS, r.TimeoutMS)
	assert.Equal(t, 0, r.Priority)
	assert.Equal(t, "", r.Replacement)
	assert.False(t, r.StopOnMatch)
}

func TestRule_UnmarshalJSON_ExplicitValues(t *testing.T) {
	var r Rule
	err := json.Unmarshal([]byte(`{
		"id": "b",
		"type": "shell",
		"pattern": "tr a-z A-Z",
		"priority": 42,
		"enabled": false,
		"ignore_case": true,
		"stop_on_match": true,
		"timeout_ms": 250,
		"fuzzy_key": true
	}`), &r)
	require.NoError(t, err)

	assert.Equal(t, KindShell, r.Kind)
	assert.Equal(t, 42, r.Priority)
	assert.False(t, r.Enabled)
	assert.True(t, r.IgnoreCase)
	assert.True(t, r.StopOnMatch)
	assert.Equal(t, 250, r.TimeoutMS)
	assert.True(t, r.FuzzyKey)
}

func TestRule_UnmarshalYAML_Defaults(t *testing.T) {
	var rules []Rule
	err := yaml.Unmarshal([]byte("- id: a\n  pattern: foo\n- id: b\n  pattern: bar\n  enabled: false\n"), &rules)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.True(t, rules[0].Enabled)
	assert.Equal(t, KindRegex, rules[0].Kind)
	assert.Equal(t, DefaultTimeoutMS, rules[0].TimeoutMS)
	assert.False(t, rules[1].Enabled)
}

func TestRule_SourceFileNotSerialized(t *testing.T) {
	r := Defaults()
	r.ID = "a"
	r.Pattern = "x"
	r.SourceFile = "/tmp/rules.json"

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "rules.json")
	assert.NotContains(t, string(data), "source_file")
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"", KindRegex, true},
		{"regex", KindRegex, true},
		{"REGEX", KindRegex, true},
		{"Function", KindFunction, true},
		{"shell", KindShell, true},
		{"lua", Kind("lua"), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseKind(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFunction_Aliases(t *testing.T) {
	tests := map[string]Function{
		"uppercase":            FuncUppercase,
		"UPPER":                FuncUppercase,
		"lower":                FuncLowercase,
		" trim ":               FuncTrim,
		"ltrim":                FuncTrimStart,
		"TrimStart":            FuncTrimStart,
		"rtrim":                FuncTrimEnd,
		"trim_end":             FuncTrimEnd,
		"cap":                  FuncCapitalize,
		"reverse":              FuncReverse,
		"normalize":            FuncNormalizeWhitespace,
		"normalize_whitespace": FuncNormalizeWhitespace,
	}
	for name, want := range tests {
		got, ok := ParseFunction(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := ParseFunction("rot13")
	assert.False(t, ok)
}

func TestFunctionNames_Canonical(t *testing.T) {
	assert.Equal(t, []string{
		"uppercase", "lowercase", "trim", "trim_start", "trim_end",
		"capitalize", "reverse", "normalize_whitespace",
	}, FunctionNames())
}
