package engine

import (
	"time"

	"github.com/roach88/handyrules/internal/rule"
)

// Status is the outcome of one rule during apply.
type Status string

const (
	StatusMatched Status = "matched"
	StatusNoMatch Status = "no_match"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// TraceEntry records one evaluated rule.
type TraceEntry struct {
	RuleID string    `json:"rule_id"`
	Kind   rule.Kind `json:"kind"`
	Status Status    `json:"status"`

	// Matched is true when the rule took effect. For regex rules that means
	// the pattern matched; for function and shell rules that the text changed.
	Matched bool `json:"matched"`

	// Input and Output are the text before and after the rule. On failure
	// Output equals Input.
	Input  string `json:"input"`
	Output string `json:"output"`

	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration_ns"`

	// Stopped is set on the entry whose stop_on_match ended the pipeline.
	Stopped bool `json:"stopped,omitempty"`
}

// Trace records one apply call.
type Trace struct {
	// Version is the rule set snapshot version the request ran against.
	Version uint64       `json:"version,omitempty"`
	Input   string       `json:"input"`
	Output  string       `json:"output"`
	Entries []TraceEntry `json:"entries"`

	// StoppedBy is the id of the rule that fired stop_on_match, if any.
	StoppedBy string        `json:"stopped_by,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Failed returns the entries whose rule failed.
func (t Trace) Failed() []TraceEntry {
	var out []TraceEntry
	for _, e := range t.Entries {
		if e.Status == StatusFailed {
			out = append(out, e)
		}
	}
	return out
}

// Matched returns the ids of rules that took effect, in order.
func (t Trace) Matched() []string {
	var out []string
	for _, e := range t.Entries {
		if e.Matched {
			out = append(out, e.RuleID)
		}
	}
	return out
}
