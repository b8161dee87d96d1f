package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/handyrules/internal/config"
	"github.com/roach88/handyrules/internal/defaults"
)

// SetupOptions holds flags for the setup command.
type SetupOptions struct {
	*RootOptions
	Force bool
	Dir   string
}

// NewSetupCommand creates the setup command.
func NewSetupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Install the default rules and an example configuration",
		Long: `Write the built-in punctuation rules and an example configuration into
~/.handy-local-rules. Existing files are kept unless --force is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite existing files")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "target directory (default ~/.handy-local-rules)")
	return cmd
}

func runSetup(opts *SetupOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dir := expandPath(opts.Dir)
	if dir == "" {
		var err error
		if dir, err = config.Dir(); err != nil {
			return WrapExitError(ExitCommandError, "locate config directory", err)
		}
	}

	res, err := defaults.Install(dir, opts.Force)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "install defaults", err)
	}

	var b strings.Builder
	for _, p := range res.Written {
		fmt.Fprintf(&b, "wrote   %s\n", p)
	}
	for _, p := range res.Skipped {
		fmt.Fprintf(&b, "kept    %s (use --force to overwrite)\n", p)
	}
	fmt.Fprintf(&b, "✓ Setup complete in %s", res.Dir)
	return formatter.Success(res, b.String())
}
