package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/handyrules/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // glob matched against scenario file names
}

// TestResult holds the results of every scenario run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	File   string          `json:"file"`
	Name   string          `json:"name"`
	Pass   bool            `json:"pass"`
	Error  string          `json:"error,omitempty"`
	Result *harness.Result `json:"result,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file-or-dir>...",
		Short: "Run rule scenarios",
		Long: `Run YAML rule scenarios: example inputs with the output the rules must
produce. Directories are searched for *.yaml and *.yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  handy-rules test ./scenarios
  handy-rules test ./scenarios --filter "punct*"
  handy-rules test punctuation.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenario files by glob pattern")
	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "find scenarios", err)
		}
		files = append(files, found...)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		formatter.VerboseLog("Running %s", file)
		sr := runScenario(ctx, file)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if err := formatter.Success(result, formatTestResult(result)); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

func runScenario(ctx context.Context, file string) ScenarioResult {
	sr := ScenarioResult{File: file}

	s, err := harness.LoadScenario(file)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	sr.Name = s.Name

	res, err := harness.Run(ctx, s)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	sr.Result = res
	sr.Pass = res.Pass
	return sr
}

// findScenarioFiles returns path itself when it is a file, or every YAML
// file below it when it is a directory, sorted.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(p); ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, filepath.Base(p)); !ok {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

func formatTestResult(r TestResult) string {
	if r.Total == 0 {
		return "No scenarios found."
	}

	var b strings.Builder
	for _, s := range r.Scenarios {
		name := s.Name
		if name == "" {
			name = s.File
		}
		switch {
		case s.Error != "":
			fmt.Fprintf(&b, "✗ %s\n    %s\n", name, s.Error)
		case s.Pass:
			fmt.Fprintf(&b, "✓ %s (%d/%d cases)\n", name, s.Result.Passed(), len(s.Result.Cases))
		default:
			fmt.Fprintf(&b, "✗ %s (%d/%d cases)\n", name, s.Result.Passed(), len(s.Result.Cases))
			for _, w := range s.Result.Warnings {
				fmt.Fprintf(&b, "    warning: %s\n", w)
			}
			for _, c := range s.Result.Cases {
				for _, e := range c.Errors {
					fmt.Fprintf(&b, "    %s: %s\n", c.Name, e)
				}
			}
		}
	}
	fmt.Fprintf(&b, "\n%d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	return b.String()
}
