package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/roach88/handyrules/internal/config"
	"github.com/roach88/handyrules/internal/history"
)

// LogsOptions holds flags for the logs command.
type LogsOptions struct {
	*RootOptions
	Limit int
	Clear bool
}

// LogsResult is the JSON result of logs.
type LogsResult struct {
	Logs    []history.Entry `json:"logs"`
	Count   int             `json:"count"`
	Cleared int64           `json:"cleared,omitempty"`
}

// NewLogsCommand creates the logs command.
func NewLogsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent transformations",
		Long: `Show the newest entries of the transformation log, oldest first.

The log is read from the SQLite database named by log_db in the
configuration. A server without log_db keeps its log in memory; query it
with GET /v1/logs instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "delete every entry")
	return cmd
}

func runLogs(opts *LogsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}
	if cfg.LogDB == "" {
		msg := "log_db is not configured; the server keeps its log in memory"
		_ = formatter.Error(ErrCodeHistory, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	log, err := openHistory(cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open transformation log", err)
	}
	defer log.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Clear {
		n, err := log.Clear(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "clear transformation log", err)
		}
		return formatter.Success(LogsResult{Logs: []history.Entry{}, Cleared: n},
			fmt.Sprintf("Cleared %s entries", humanize.Comma(n)))
	}

	entries, err := log.Recent(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "read transformation log", err)
	}
	return formatter.Success(LogsResult{Logs: entries, Count: len(entries)}, renderLogs(entries))
}

func renderLogs(entries []history.Entry) string {
	if len(entries) == 0 {
		return "No transformations logged."
	}

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"When", "Request", "Rule", "Status", "Input", "Output"})
	for _, e := range entries {
		status := e.Status
		if e.Error != "" {
			status += ": " + e.Error
		}
		tw.AppendRow(table.Row{humanize.Time(e.CreatedAt), shortID(e.RequestID), e.RuleID, status, e.Input, e.Output})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 32},
		{Number: 5, WidthMax: 32},
		{Number: 6, WidthMax: 32},
	})

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

// shortID trims a UUID request id to its last block.
func shortID(id string) string {
	if len(id) == 36 {
		return id[24:]
	}
	return id
}
