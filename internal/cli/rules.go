package cli

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/roach88/handyrules/internal/config"
	"github.com/roach88/handyrules/internal/loader"
	"github.com/roach88/handyrules/internal/rule"
	"github.com/roach88/handyrules/internal/server"
)

// RuleListing is the JSON result of list-rules.
type RuleListing struct {
	Rules []server.RuleInfo `json:"rules"`
	Count int               `json:"count"`
}

// NewListRulesCommand creates the list-rules command.
func NewListRulesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list-rules",
		Aliases: []string{"rules", "ls"},
		Short:   "List the loaded rules in evaluation order",
		Args:    cobra.NoArgs,

		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListRules(rootOpts, cmd)
		},
	}
}

func runListRules(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}
	res := loadRules(cfg)
	res.Log(opts.logger(cmd.ErrOrStderr(), cfg))

	rules := res.Set.Rules()
	listing := RuleListing{Rules: make([]server.RuleInfo, 0, len(rules)), Count: len(rules)}
	for _, r := range rules {
		listing.Rules = append(listing.Rules, server.NewRuleInfo(r))
	}
	return formatter.Success(listing, renderRules(rules))
}

// renderRules formats rules as a table in evaluation order.
func renderRules(rules []rule.Rule) string {
	if len(rules) == 0 {
		return "No rules loaded."
	}

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"#", "ID", "Kind", "Priority", "Enabled", "Pattern", "Replacement", "Source"})
	for i, r := range rules {
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		repl := r.Replacement
		if r.Kind != rule.KindRegex {
			repl = "-"
		}
		tw.AppendRow(table.Row{i + 1, r.ID, r.Kind, r.Priority, enabled, strconv.Quote(r.Pattern), strconv.Quote(repl), r.SourceFile})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, WidthMax: 40},
		{Number: 7, WidthMax: 24},
	})

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

// ToggleOptions holds flags for the toggle command.
type ToggleOptions struct {
	*RootOptions
	Enable  bool
	Disable bool
}

// ToggleResult is the JSON result of toggle.
type ToggleResult struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ToggleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "toggle <rule-id>",
		Short: "Enable or disable a rule in its rule file",
		Long: `Flip the enabled flag of a rule and write it back to the file the rule
was loaded from. A running server picks the change up through hot reload.

Example:
  handy-rules toggle comma
  handy-rules toggle comma --disable`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Enable, "enable", false, "enable the rule instead of flipping it")
	cmd.Flags().BoolVar(&opts.Disable, "disable", false, "disable the rule instead of flipping it")
	cmd.MarkFlagsMutuallyExclusive("enable", "disable")
	return cmd
}

func runToggle(opts *ToggleOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}
	res := loadRules(cfg)
	res.Log(opts.logger(cmd.ErrOrStderr(), cfg))

	c, ok := res.Set.Lookup(id)
	if !ok {
		msg := fmt.Sprintf("rule %q not found", id)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	enabled := !c.Enabled()
	switch {
	case opts.Enable:
		enabled = true
	case opts.Disable:
		enabled = false
	}

	path := c.Rule().SourceFile
	if err := loader.SaveEnabled(path, id, enabled); err != nil {
		_ = formatter.Error(ErrCodeRules, err.Error(), nil)
		return WrapExitError(ExitCommandError, "write rule file", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return formatter.Success(
		ToggleResult{ID: id, Enabled: enabled, Path: path},
		fmt.Sprintf("Rule '%s' is now %s (%s)", id, state, path),
	)
}
