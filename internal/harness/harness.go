package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/handyrules/internal/engine"
	"github.com/roach88/handyrules/internal/loader"
	"github.com/roach88/handyrules/internal/rule"
)

// Result is the outcome of one scenario.
type Result struct {
	Scenario string       `json:"scenario"`
	Pass     bool         `json:"pass"`
	Rules    int          `json:"rules"`
	Warnings []string     `json:"warnings,omitempty"`
	Cases    []CaseResult `json:"cases"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name    string   `json:"name"`
	Input   string   `json:"input"`
	Output  string   `json:"output"`
	Matched []string `json:"matched"`
	Pass    bool     `json:"pass"`
	Errors  []string `json:"errors,omitempty"`
}

// Passed returns the number of passing cases.
func (r *Result) Passed() int {
	n := 0
	for _, c := range r.Cases {
		if c.Pass {
			n++
		}
	}
	return n
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	shell  engine.ShellRunner
}

// WithLogger sets the engine logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithShellRunner replaces the shell executor.
func WithShellRunner(r engine.ShellRunner) Option {
	return func(c *runConfig) { c.shell = r }
}

// Run loads the scenario's rules and evaluates every case.
//
// An error is returned only when the rules cannot be loaded at all.
// Failing cases and load warnings are reported in the Result.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	loaded := loader.Load(s.Rules, loader.Options{
		Compile: rule.CompileOptions{ShellEnabled: s.Shell},
	})
	for _, w := range loaded.Warnings {
		if w.Kind == loader.WarningSource {
			return nil, fmt.Errorf("load rules for %q: %w", s.Name, w.Err)
		}
	}

	res := &Result{Scenario: s.Name, Pass: true, Rules: loaded.Set.Len()}
	for _, w := range loaded.Warnings {
		if w.Kind == loader.WarningEmpty {
			continue
		}
		res.Warnings = append(res.Warnings, w.String())
	}
	if len(res.Warnings) > 0 && !s.AllowWarnings {
		res.Pass = false
	}

	engineOpts := []engine.EngineOption{
		engine.WithShellEnabled(s.Shell),
		engine.WithLogger(cfg.logger),
	}
	if cfg.shell != nil {
		engineOpts = append(engineOpts, engine.WithShellRunner(cfg.shell))
	}
	eng := engine.New(engineOpts...)

	for _, c := range s.Cases {
		out, trace := eng.Apply(ctx, c.Input, loaded.Set)
		cr := check(c, out, trace)
		if !cr.Pass {
			res.Pass = false
		}
		res.Cases = append(res.Cases, cr)
	}
	return res, nil
}

// check compares one case's outcome with its expectations.
func check(c Case, out string, trace engine.Trace) CaseResult {
	cr := CaseResult{
		Name:    c.Name,
		Input:   c.Input,
		Output:  out,
		Matched: trace.Matched(),
	}
	if cr.Matched == nil {
		cr.Matched = []string{}
	}

	if out != *c.Expect {
		cr.Errors = append(cr.Errors, fmt.Sprintf("output %q, want %q", out, *c.Expect))
	}
	if c.Matched != nil && !slices.Equal(cr.Matched, c.Matched) {
		cr.Errors = append(cr.Errors, fmt.Sprintf("matched %v, want %v", cr.Matched, c.Matched))
	}

	failed := make(map[string]bool)
	for _, e := range trace.Failed() {
		failed[e.RuleID] = true
	}
	for _, id := range c.Failed {
		if !failed[id] {
			cr.Errors = append(cr.Errors, fmt.Sprintf("rule %q did not fail", id))
		}
	}
	for _, e := range trace.Failed() {
		if !slices.Contains(c.Failed, e.RuleID) {
			cr.Errors = append(cr.Errors, fmt.Sprintf("rule %q failed: %s", e.RuleID, e.Error))
		}
	}

	cr.Pass = len(cr.Errors) == 0
	return cr
}
