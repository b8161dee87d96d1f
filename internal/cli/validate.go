package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/handyrules/internal/config"
	"github.com/roach88/handyrules/internal/loader"
)

// ValidationReport is the result of the validate command.
type ValidationReport struct {
	Valid    bool          `json:"valid"`
	Files    []string      `json:"files"`
	Rules    int           `json:"rules"`
	Enabled  int           `json:"enabled"`
	Warnings []WarningInfo `json:"warnings,omitempty"`
	Schema   []string      `json:"schema_errors,omitempty"`
}

// WarningInfo is one loader warning.
type WarningInfo struct {
	Kind    string `json:"kind"`
	RuleID  string `json:"rule_id,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check rule files without serving",
		Long: `Load the configured rule files and report every problem.

Besides the checks every load performs, each file is matched against the
strict rule schema, which also catches misspelled fields and wrongly typed
values that a normal load silently ignores. Exits 1 when anything is found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}

	res := loadRules(cfg)
	report := ValidationReport{
		Files:   res.Files,
		Rules:   res.Set.Len(),
		Enabled: res.Set.EnabledCount(),
	}
	if report.Files == nil {
		report.Files = []string{}
	}
	for _, w := range res.Warnings {
		report.Warnings = append(report.Warnings, newWarningInfo(w))
	}
	for _, file := range res.Files {
		formatter.VerboseLog("Checking schema: %s", file)
		for _, err := range loader.CheckSchema(file) {
			report.Schema = append(report.Schema, err.Error())
		}
	}
	report.Valid = len(report.Warnings) == 0 && len(report.Schema) == 0

	if err := formatter.Success(report, formatValidation(report)); err != nil {
		return err
	}
	if !report.Valid {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d warning(s), %d schema error(s)", len(report.Warnings), len(report.Schema)))
	}
	return nil
}

func newWarningInfo(w loader.Warning) WarningInfo {
	msg := w.Message
	if w.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += w.Err.Error()
	}
	return WarningInfo{
		Kind:    string(w.Kind),
		RuleID:  w.RuleID,
		Path:    w.Path,
		Message: msg,
	}
}

func formatValidation(r ValidationReport) string {
	var b strings.Builder
	for _, w := range r.Warnings {
		b.WriteString("warning: ")
		b.WriteString(w.Kind)
		if w.RuleID != "" {
			fmt.Fprintf(&b, " rule %q", w.RuleID)
		}
		if w.Path != "" {
			fmt.Fprintf(&b, " (%s)", w.Path)
		}
		fmt.Fprintf(&b, ": %s\n", w.Message)
	}
	for _, s := range r.Schema {
		fmt.Fprintf(&b, "schema: %s\n", s)
	}
	if r.Valid {
		fmt.Fprintf(&b, "✓ %d rule(s) in %d file(s) are valid", r.Rules, len(r.Files))
	} else {
		fmt.Fprintf(&b, "✗ %d rule(s) loaded from %d file(s); %d warning(s), %d schema error(s)",
			r.Rules, len(r.Files), len(r.Warnings), len(r.Schema))
	}
	return b.String()
}
