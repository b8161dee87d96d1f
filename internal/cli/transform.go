package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/roach88/handyrules/internal/config"
	"github.com/roach88/handyrules/internal/engine"
)

// TransformOptions holds flags for the transform command.
type TransformOptions struct {
	*RootOptions
	Stdin bool
	Trace bool
}

// TransformResult is the JSON result of one transformed input.
type TransformResult struct {
	Input   string        `json:"input"`
	Output  string        `json:"output"`
	Matched []string      `json:"matched"`
	Trace   *engine.Trace `json:"trace,omitempty"`
}

// NewTransformCommand creates the transform command.
func NewTransformCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransformOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transform [text...]",
		Short: "Apply the rules to text and print the result",
		Long: `Apply the configured rules once, without starting the server.

Arguments are joined with spaces. With --stdin every input line is
transformed on its own.

Example:
  handy-rules transform "foo slash bar"
  cat notes.txt | handy-rules transform --stdin
  handy-rules transform --trace "hello comma world"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Stdin && len(args) == 0 {
				return NewExitError(ExitCommandError, "no input: pass text or --stdin")
			}
			return runTransform(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Stdin, "stdin", false, "read input lines from stdin")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "show every evaluated rule")
	return cmd
}

func runTransform(opts *TransformOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}
	logger := opts.logger(cmd.ErrOrStderr(), cfg)

	res := loadRules(cfg)
	res.Log(logger)
	formatter.VerboseLog("Loaded %d rule(s) from %d file(s)", res.Set.Len(), len(res.Files))

	eng := engine.New(
		engine.WithShellEnabled(cfg.EnableShellRules),
		engine.WithLogger(logger),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	apply := func(input string) error {
		out, trace := eng.Apply(ctx, input, res.Set)
		if formatter.JSON() {
			r := TransformResult{Input: input, Output: out, Matched: trace.Matched()}
			if r.Matched == nil {
				r.Matched = []string{}
			}
			if opts.Trace {
				r.Trace = &trace
			}
			return formatter.Success(r, "")
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), out); err != nil {
			return err
		}
		if opts.Trace {
			fmt.Fprintln(cmd.ErrOrStderr(), renderTrace(trace))
		}
		return nil
	}

	if !opts.Stdin {
		return apply(strings.Join(args, " "))
	}
	return eachLine(cmd.InOrStdin(), apply)
}

func eachLine(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return WrapExitError(ExitCommandError, "read stdin", err)
	}
	return nil
}

// renderTrace formats a trace as a table, one row per evaluated rule.
func renderTrace(trace engine.Trace) string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Rule", "Kind", "Status", "Output", "Took"})
	for _, e := range trace.Entries {
		out := e.Output
		if e.Error != "" {
			out = e.Error
		}
		tw.AppendRow(table.Row{e.RuleID, e.Kind, e.Status, out, took(e.Duration)})
	}
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d rule(s) matched", len(trace.Matched())), took(trace.Duration)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 48},
	})

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

// took formats d with an SI prefix, e.g. "42.5 µs".
func took(d time.Duration) string {
	return humanize.SIWithDigits(d.Seconds(), 1, "s")
}
