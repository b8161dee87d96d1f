// Package cli implements the handy-rules command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/handyrules/internal/config"
	"github.com/roach88/handyrules/internal/loader"
	"github.com/roach88/handyrules/internal/rule"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Rules      []string
	LogLevel   string

	// Version is reported by /health and `--version`.
	Version string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the handy-rules root command. Without a
// subcommand it runs serve.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}
	serveOpts := &ServeOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:     "handy-rules",
		Short:   "Local rule-based text post-processing service",
		Long:    "Rewrites dictated text with a prioritized, hot-reloaded set of regex, function and shell rules, served as an OpenAI-compatible completion endpoint.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(serveOpts, cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (forces debug logging)")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (default ./config.json or ~/.handy-local-rules/config.json)")
	pf.StringSliceVarP(&opts.Rules, "rules", "r", nil, "rules file, directory or glob (repeatable)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	addServeFlags(cmd, serveOpts)

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTransformCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewListRulesCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewLogsCommand(opts))
	cmd.AddCommand(NewSetupCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig resolves the configuration file, applies the environment and
// then the command-line overrides.
func (o *RootOptions) loadConfig(ov config.Overrides) (config.Config, error) {
	path, err := config.Find(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "locate config", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}

	ov.Rules = o.Rules
	ov.LogLevel = o.LogLevel
	cfg = cfg.Merge(ov)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// logger builds a text logger on w at the configured level.
func (o *RootOptions) logger(w io.Writer, cfg config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadOptions returns the loader options implied by cfg.
func loadOptions(cfg config.Config) loader.Options {
	return loader.Options{
		Compile: rule.CompileOptions{ShellEnabled: cfg.EnableShellRules},
		Exclude: cfg.NonRuleFiles(),
	}
}

// loadRules loads the configured rule sources once.
func loadRules(cfg config.Config) *loader.Result {
	return loader.Load(cfg.Sources(), loadOptions(cfg))
}

// expandPath resolves a leading "~/" against the user's home directory.
func expandPath(path string) string {
	home, _ := os.UserHomeDir()
	return config.ExpandHome(path, home)
}
