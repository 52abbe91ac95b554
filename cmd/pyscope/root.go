package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pyscope/internal/core/app"
	"pyscope/internal/core/config"
	"pyscope/internal/shared/observability"
	"pyscope/internal/shared/version"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pyscope",
		Short:         "Extract classes, functions and comments from Python source",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd.ErrOrStderr(), opts.verbose)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default ./pyscope.toml, then ./pyscope.example.toml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newFilesCmd(opts),
		newTokenCmd(opts),
		newWatchCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pyscope %s\n", version.String())
		},
	}
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// setupFileLogging routes logs to the state log file so stdout stays free
// for a protocol stream.
func setupFileLogging(verbose bool) (io.Closer, error) {
	logPath := resolveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir for %s: %w", logPath, err)
	}
	if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
		return nil, fmt.Errorf("refusing to write logs to symlink path %s", logPath)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}
	setupLogging(f, verbose)
	return f, nil
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "pyscope", "pyscope.log")
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "pyscope", "pyscope.log")
	}
	return "pyscope.log"
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
		}
		return cfg, nil
	}
	cfg, used, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", used, err)
	}
	if used == "" {
		slog.Debug("no config file found, using defaults")
	} else {
		slog.Debug("loaded config", "path", used)
	}
	return cfg, nil
}

func openApp(opts *rootOptions) (*app.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, cwd)
}

// startObservability starts the metrics server and trace exporter when
// enabled. The returned func stops whatever was started.
func startObservability(ctx context.Context, a *app.App) func() {
	cfg := a.Config.Observability
	var stops []func(context.Context) error

	if cfg.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			stops = append(stops, shutdown)
		}
	}
	if cfg.Enabled {
		srv := observability.NewServer(cfg.Address, a.Health)
		if err := srv.Start(ctx); err != nil {
			slog.Error("observability server failed", "error", err)
		} else {
			stops = append(stops, srv.Stop)
		}
	}

	return func() {
		for _, stop := range stops {
			if err := stop(context.Background()); err != nil {
				slog.Warn("observability shutdown", "error", err)
			}
		}
	}
}
