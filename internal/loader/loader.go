// Package loader reads rule sources, validates every rule and merges the
// survivors into a candidate rule.RuleSet.
//
// Loading never fails as a whole. Unreadable sources, malformed files and
// invalid rules are skipped and reported as warnings so that a bad edit
// during hot reload cannot take down serving.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/handyrules/internal/rule"
)

// Options configures a load.
type Options struct {
	// Compile carries the shell capability flag and regex limits.
	Compile rule.CompileOptions

	// Exclude lists files never read as rule files even when a source
	// matches them, such as a configuration file next to the rules.
	Exclude []string
}

// Result is the outcome of one load.
type Result struct {
	// Set is the merged, validated rule set. Never nil.
	Set *rule.RuleSet

	// Files lists the rule files that were read, in merge order.
	Files []string

	// Warnings lists every skipped rule, override and failed source.
	Warnings []Warning
}

// Failed reports whether any source could not be read or parsed.
// A hot reload discards a failed result and keeps the active set.
func (r *Result) Failed() bool {
	for _, w := range r.Warnings {
		if w.Kind == WarningSource {
			return true
		}
	}
	return false
}

// Errors returns the underlying errors of all warnings that carry one.
func (r *Result) Errors() []error {
	var errs []error
	for _, w := range r.Warnings {
		if w.Err != nil {
			errs = append(errs, w.Err)
		}
	}
	return errs
}

// Log writes every warning to logger at warn level.
func (r *Result) Log(logger *slog.Logger) {
	for _, w := range r.Warnings {
		attrs := []any{"kind", string(w.Kind)}
		if w.RuleID != "" {
			attrs = append(attrs, "rule_id", w.RuleID)
		}
		if w.Path != "" {
			attrs = append(attrs, "path", w.Path)
		}
		if w.Err != nil {
			attrs = append(attrs, "error", w.Err)
		}
		msg := w.Message
		if msg == "" {
			msg = "rule load warning"
		}
		logger.Warn(msg, attrs...)
	}
}

// Load expands sources, parses each file and merges the rules.
//
// Files are merged in lexical path order, whatever order the sources were
// given in. When two definitions share an id the one from the later path
// wins, keeping the earlier one's load position, and an override warning is
// recorded.
func Load(sources []string, opts Options) *Result {
	res := &Result{}

	files, errs := Expand(sources)
	for _, err := range errs {
		res.Warnings = append(res.Warnings, sourceWarning(err))
	}
	files = exclude(files, opts.Exclude)
	slices.Sort(files)
	res.Files = files

	var (
		merged []*rule.Compiled
		pos    = make(map[string]int)
	)

	for _, file := range files {
		rules, err := readFile(file)
		if err != nil {
			res.Warnings = append(res.Warnings, sourceWarning(err))
			continue
		}

		for _, parsed := range rules {
			if parsed.err != nil {
				res.Warnings = append(res.Warnings, Warning{
					Kind:    WarningSkipped,
					RuleID:  parsed.rule.ID,
					Path:    file,
					Message: "rule skipped",
					Err:     parsed.err,
				})
				continue
			}

			c, err := rule.Compile(parsed.rule, opts.Compile)
			if err != nil {
				res.Warnings = append(res.Warnings, Warning{
					Kind:    WarningSkipped,
					RuleID:  parsed.rule.ID,
					Path:    file,
					Message: "rule skipped",
					Err:     err,
				})
				continue
			}

			if i, ok := pos[c.ID()]; ok {
				prev := merged[i].Rule().SourceFile
				res.Warnings = append(res.Warnings, Warning{
					Kind:    WarningOverride,
					RuleID:  c.ID(),
					Path:    file,
					Message: fmt.Sprintf("overrides definition from %s", prev),
				})
				merged[i] = c
				continue
			}
			pos[c.ID()] = len(merged)
			merged = append(merged, c)
		}
	}

	res.Set = rule.NewRuleSet(merged)
	if res.Set.Len() == 0 {
		res.Warnings = append(res.Warnings, Warning{
			Kind:    WarningEmpty,
			Message: "no rules loaded",
		})
	}
	return res
}

func exclude(files, excluded []string) []string {
	if len(excluded) == 0 {
		return files
	}
	skip := make(map[string]bool, len(excluded))
	for _, p := range excluded {
		skip[absClean(p)] = true
	}
	out := files[:0:0]
	for _, f := range files {
		if !skip[absClean(f)] {
			out = append(out, f)
		}
	}
	return out
}

func sourceWarning(err error) Warning {
	w := Warning{Kind: WarningSource, Message: "rule source skipped", Err: err}
	var se *SourceError
	if errors.As(err, &se) {
		w.Path = se.Path
	}
	return w
}

// parsedRule is one array element: a decoded rule or the reason it could
// not be decoded.
type parsedRule struct {
	rule rule.Rule
	err  error
}

// readFile reads one rule file. The top level must be an array; each
// element is decoded independently so a single bad element only loses
// that rule. Files ending in .yaml or .yml are read as YAML, all others
// as JSON.
func readFile(path string) ([]parsedRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceError{Code: ErrCodeSourceRead, Path: path, Err: err}
	}

	if isYAML(path) {
		return decodeYAML(path, data)
	}
	return decodeJSON(path, data)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decodeJSON(path string, data []byte) ([]parsedRule, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, &SourceError{Code: ErrCodeSourceParse, Path: path, Err: err}
	}

	out := make([]parsedRule, 0, len(elems))
	for i, raw := range elems {
		var r rule.Rule
		if err := json.Unmarshal(raw, &r); err != nil {
			out = append(out, parsedRule{
				rule: rule.Rule{ID: peekID(raw)},
				err:  elementError(path, i, peekID(raw), err),
			})
			continue
		}
		r.SourceFile = path
		out = append(out, parsedRule{rule: r})
	}
	return out, nil
}

func decodeYAML(path string, data []byte) ([]parsedRule, error) {
	var elems []yaml.Node
	if err := yaml.Unmarshal(data, &elems); err != nil {
		return nil, &SourceError{Code: ErrCodeSourceParse, Path: path, Err: err}
	}

	out := make([]parsedRule, 0, len(elems))
	for i := range elems {
		var r rule.Rule
		if err := elems[i].Decode(&r); err != nil {
			var head struct {
				ID string `yaml:"id"`
			}
			_ = elems[i].Decode(&head)
			out = append(out, parsedRule{
				rule: rule.Rule{ID: head.ID},
				err:  elementError(path, i, head.ID, err),
			})
			continue
		}
		r.SourceFile = path
		out = append(out, parsedRule{rule: r})
	}
	return out, nil
}

func elementError(path string, index int, id string, err error) error {
	return &rule.ValidationError{
		Code:    rule.ErrCodeInvalidField,
		RuleID:  id,
		Source:  path,
		Message: fmt.Sprintf("element %d is not a valid rule object", index),
		Err:     err,
	}
}

// peekID extracts the id of a malformed element for reporting, if it has one.
func peekID(raw json.RawMessage) string {
	var head struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &head)
	return head.ID
}
