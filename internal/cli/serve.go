package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/handyrules/internal/config"
	"github.com/roach88/handyrules/internal/engine"
	"github.com/roach88/handyrules/internal/history"
	"github.com/roach88/handyrules/internal/loader"
	"github.com/roach88/handyrules/internal/metrics"
	"github.com/roach88/handyrules/internal/reload"
	"github.com/roach88/handyrules/internal/rulestore"
	"github.com/roach88/handyrules/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Host string
	Port int

	// IDGenerator overrides request ids (for testing).
	IDGenerator server.IDGenerator

	// Ready, when set, receives the listen address once the server is up.
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long: `Run the OpenAI-compatible completion endpoint and the rules API.

Rule files are watched and reloaded when they change. A reload that cannot
read a source keeps the active rules.

Example:
  handy-rules serve --port 61234 --rules ~/.handy-local-rules/rules.json
  HANDY_RULES_ENABLE_SHELL=true handy-rules serve -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}
	addServeFlags(cmd, opts)
	return cmd
}

func addServeFlags(cmd *cobra.Command, opts *ServeOptions) {
	cmd.Flags().StringVar(&opts.Host, "host", "", "listen host (default 127.0.0.1)")
	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "listen port (default 61234)")
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(config.Overrides{Host: opts.Host, Port: opts.Port})
	if err != nil {
		return err
	}
	logger := opts.logger(cmd.ErrOrStderr(), cfg)
	if cfg.Source != "" {
		logger.Info("configuration loaded", "path", cfg.Source)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	sources := cfg.Sources()

	// The first load publishes whatever is valid; only later reloads
	// keep the previous set when a source fails.
	initial := loader.Load(sources, loadOptions(cfg))
	initial.Log(logger)
	m.RecordReload(metrics.ReloadApplied)

	store := rulestore.New(initial.Set,
		rulestore.WithLogger(logger),
		rulestore.WithPersister(loader.FilePersister{}),
		rulestore.WithPublishHook(func(s *rulestore.Snapshot) {
			m.RecordRuleSet(s.RuleSet, s.Version)
		}),
	)
	snap := store.Snapshot()
	m.RecordRuleSet(snap.RuleSet, snap.Version)
	logger.Info("rules loaded",
		"rules", snap.Len(),
		"enabled", snap.EnabledCount(),
		"files", len(initial.Files),
		"shell", cfg.EnableShellRules,
	)

	log, err := openHistory(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "open transformation log", err)
	}
	defer func() {
		if err := log.Close(); err != nil {
			logger.Error("close transformation log", "error", err)
		}
	}()

	eng := engine.New(
		engine.WithShellEnabled(cfg.EnableShellRules),
		engine.WithRecorder(m),
		engine.WithLogger(logger),
	)

	controller := reload.New(sources, store,
		reload.WithDebounce(cfg.ReloadDebounce),
		reload.WithLoadOptions(loadOptions(cfg)),
		reload.WithLogger(logger),
		reload.WithStartupCheck(),
		reload.WithObserver(func(o reload.Outcome) {
			m.RecordReload(string(o.Result))
		}),
	)

	srvOpts := []server.Option{
		server.WithHistory(log),
		server.WithMetrics(m),
		server.WithAPIKey(cfg.APIKey),
		server.WithCORS(cfg.CORSEnabled),
		server.WithVersion(opts.Version),
		server.WithLogger(logger),
	}
	if opts.IDGenerator != nil {
		srvOpts = append(srvOpts, server.WithIDGenerator(opts.IDGenerator))
	}
	srv := server.New(store, eng, srvOpts...)

	ln, err := listen(ctx, cfg.Addr())
	if err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	g.Go(func() error {
		return controller.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("stopped", "version", store.Snapshot().Version)
	return nil
}

func listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// openHistory opens the configured transformation log.
func openHistory(cfg config.Config) (*history.Log, error) {
	return history.Open(expandPath(cfg.LogDB), history.WithMaxEntries(cfg.MaxLogEntries))
}
