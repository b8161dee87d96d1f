package rule

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind selects the executor for a rule.
type Kind string

const (
	KindRegex    Kind = "regex"
	KindFunction Kind = "function"
	KindShell    Kind = "shell"
)

// DefaultTimeoutMS bounds a shell rule when timeout_ms is absent or zero.
const DefaultTimeoutMS = 5000

// ParseKind resolves a kind name case-insensitively. An empty name is regex.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "regex":
		return KindRegex, true
	case "function":
		return KindFunction, true
	case "shell":
		return KindShell, true
	default:
		return Kind(s), false
	}
}

// Rule is a single transformation as it appears in a rule source.
//
// Rule is a value type. Once a rule is part of a published RuleSet it is
// never modified; changes produce a new Rule.
type Rule struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        Kind   `json:"type" yaml:"type"`

	// Pattern is a regex source, a builtin function name, or a shell
	// command line depending on Kind.
	Pattern string `json:"pattern" yaml:"pattern"`

	// Replacement is used by regex rules only. $1 and ${name} refer to
	// capture groups.
	Replacement string `json:"replacement" yaml:"replacement"`

	Priority    int  `json:"priority" yaml:"priority"`
	Enabled     bool `json:"enabled" yaml:"enabled"`
	IgnoreCase  bool `json:"ignore_case" yaml:"ignore_case"`
	StopOnMatch bool `json:"stop_on_match" yaml:"stop_on_match"`
	TimeoutMS   int  `json:"timeout_ms" yaml:"timeout_ms"`

	// FuzzyKey is reserved. It is accepted and written back unchanged.
	FuzzyKey bool `json:"fuzzy_key,omitempty" yaml:"fuzzy_key,omitempty"`

	// SourceFile is the file the rule was loaded from. Never serialized.
	SourceFile string `json:"-" yaml:"-"`
}

// Defaults returns a Rule carrying every documented default.
func Defaults() Rule {
	return Rule{
		Kind:      KindRegex,
		Enabled:   true,
		TimeoutMS: DefaultTimeoutMS,
	}
}

// UnmarshalJSON decodes a rule object, filling absent fields with defaults.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	p := plain(Defaults())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// UnmarshalYAML decodes a rule mapping, filling absent fields with defaults.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	type plain Rule
	p := plain(Defaults())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// Timeout returns the effective shell timeout in milliseconds.
func (r Rule) Timeout() int {
	if r.TimeoutMS <= 0 {
		return DefaultTimeoutMS
	}
	return r.TimeoutMS
}
