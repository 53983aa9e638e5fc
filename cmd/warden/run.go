package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	storage       string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Warden API server",
	Long: `Start the Warden API server with the specified configuration.

The server accepts classified content events, records moderation decisions,
executes their actions and serves the review, policy, audit and stream APIs.

Examples:
  # Start with built-in defaults
  warden run

  # Start with a config file
  warden run --config /etc/warden/config.yaml

  # Override listen address and storage
  warden run --listen 0.0.0.0:8080 --storage sqlite

  # Validate config without starting the server
  warden run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.storage, "storage", "", "override storage backend (memory, sqlite)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and wiring without serving")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cfg); err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, buildInfo())
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		a.close(shutdownCtx)
	}()

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	slog.Info("warden starting",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"storage", cfg.Storage.Backend,
		"executor", cfg.Executor.Type,
		"policy_file", cfg.Policy.FilePath,
	)

	if err := a.run(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	slog.Info("warden stopped")
	return nil
}

// applyRunFlags applies flag overrides and validates the result.
func applyRunFlags(cfg *config.Config) error {
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.storage != "" {
		cfg.Storage.Backend = runFlags.storage
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("flags", err.Error())
	}
	if runFlags.logLevel != "" {
		return installLogger(cfg)
	}
	return nil
}
