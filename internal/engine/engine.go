package engine

import (
	"context"
	"log/slog"
	"time"


	"github.com/roach88/handyrules/internal/rule"
	"github.com/roach88/handyrules/internal/rulestore"
)

// Recorder receives per-rule and per-apply observations. Implemented by
// the metrics package; the default discards everything.
type Recorder interface {
	ObserveRule(ruleID string, kind rule.Kind, status Status, d time.Duration)
	ObserveApply(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRule(string, rule.Kind, Status, time.Duration) {}
func (nopRecorder) ObserveApply(time.Duration)                           {}

// Engine applies rule sets to text.
//
// Thread-safety model:
//   - Apply(): safe from any goroutine; an Engine holds no per-request state
//   - concurrent Apply calls share nothing but the immutable RuleSet
type Engine struct {
	shellEnabled bool
	shell        ShellRunner
	recorder     Recorder
	logger       *slog.Logger
	now          func() time.Time
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithShellEnabled allows shell rules to run. When false, shell rules that
// made it into a rule set are recorded as skipped.
//
// Default: false
func WithShellEnabled(enabled bool) EngineOption {
	return func(e *Engine) {
		e.shellEnabled = enabled
	}
}

// WithShellRunner replaces the process runner for shell rules.
func WithShellRunner(r ShellRunner) EngineOption {
	return func(e *Engine) {
		e.shell = r
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		shell:    ExecShell{},
		recorder: nopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ShellEnabled reports whether shell rules may run.
func (e *Engine) ShellEnabled() bool {
	return e.shellEnabled
}

// ApplySnapshot is Apply against a store snapshot; the trace carries the
// snapshot version.
func (e *Engine) ApplySnapshot(ctx context.Context, text string, snap *rulestore.Snapshot) (string, Trace) {
	if snap == nil {
		return e.Apply(ctx, text, nil)
	}
	out, trace := e.Apply(ctx, text, snap.RuleSet)
	trace.Version = snap.Version
	return out, trace
}

// Apply runs the enabled rules of set over text in set order. Each rule
// receives the previous rule's output.
//
// Apply never fails. A rule that errors keeps its input unchanged, is
// recorded as failed in the trace, and the pipeline continues. A rule
// with stop_on_match that takes effect ends the pipeline after its own
// effect is applied.
//
// Text that no rule changes comes back byte-for-byte as given.
func (e *Engine) Apply(ctx context.Context, text string, set *rule.RuleSet) (string, Trace) {
	start := e.now()
	cur := text
	trace := Trace{Input: text}

	for _, c := range set.Compiled() {
		if !c.Enabled() {
			continue
		}

		if c.Kind() == rule.KindShell && !e.shellEnabled {
			trace.Entries = append(trace.Entries, TraceEntry{
				RuleID: c.ID(),
				Kind:   c.Kind(),
				Status: StatusSkipped,
				Input:  cur,
				Output: cur,
				Error:  string(ErrCodeShellSkipped),
			})
			e.recorder.ObserveRule(c.ID(), c.Kind(), StatusSkipped, 0)
			e.logger.Debug("shell rule skipped: shell rules disabled", "rule_id", c.ID())
			continue
		}

		ruleStart := e.now()
		res := e.execute(ctx, c, cur)
		entry := TraceEntry{
			RuleID:   c.ID(),
			Kind:     c.Kind(),
			Matched:  res.matched,
			Input:    cur,
			Output:   res.output,
			Duration: e.now().Sub(ruleStart),
		}

		switch {
		case res.err != nil:
			entry.Status = StatusFailed
			entry.Err = res.err
			entry.Error = res.err.Error()
			e.logger.Warn("rule failed",
				"rule_id", c.ID(),
				"kind", string(c.Kind()),
				"error", res.err,
			)
		case res.matched:
			entry.Status = StatusMatched
			e.logger.Debug("rule matched",
				"rule_id", c.ID(),
				"before", cur,
				"after", res.output,
			)
		default:
			entry.Status = StatusNoMatch
		}
		e.recorder.ObserveRule(c.ID(), c.Kind(), entry.Status, entry.Duration)

		cur = res.output

		if res.matched && c.Rule().StopOnMatch {
			entry.Stopped = true
			trace.StoppedBy = c.ID()
			trace.Entries = append(trace.Entries, entry)
			e.logger.Debug("stop_on_match fired", "rule_id", c.ID())
			break
		}
		trace.Entries = append(trace.Entries, entry)
	}

	trace.Output = cur
	trace.Duration = e.now().Sub(start)
	e.recorder.ObserveApply(trace.Duration)
	return cur, trace
}
