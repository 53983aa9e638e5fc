package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/executor"
	"mercator-hq/warden/pkg/policy"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration the way "warden run" does and report problems.

The file is decoded over the defaults, WARDEN_* environment overrides are
applied and every section is validated. The configured policy file and
executor are checked too. Nothing is opened or started.

Examples:
  warden validate --config /etc/warden/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, err := executor.New(&cfg.Executor); err != nil {
		return cli.NewConfigError("executor", err.Error())
	}

	policies := "seeded defaults"
	if path := cfg.Policy.FilePath; path != "" {
		f, err := policy.LoadFile(path)
		if err != nil {
			return cli.NewConfigError("policy.file_path", err.Error())
		}
		if err := f.Validate(policy.NewSeededStore()); err != nil {
			return cli.NewConfigError("policy.file_path", err.Error())
		}
		policies = fmt.Sprintf("%s (%d entries)", path, len(f.Policies))
	}

	fmt.Fprintln(out, "✓ Configuration valid")
	printSummary(cmd, cfg, policies)
	return nil
}

func printSummary(cmd *cobra.Command, cfg *config.Config, policies string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  listen address: %s\n", cfg.Server.ListenAddress)
	storage := cfg.Storage.Backend
	if storage == "sqlite" {
		storage = fmt.Sprintf("sqlite (%s, driver %s)", cfg.Storage.SQLite.Path, cfg.Storage.SQLite.Driver)
	}
	fmt.Fprintf(out, "  storage:        %s\n", storage)
	fmt.Fprintf(out, "  executor:       %s\n", cfg.Executor.Type)
	fmt.Fprintf(out, "  policies:       %s\n", policies)
	if cfg.Retry.Enabled {
		fmt.Fprintf(out, "  retry sweep:    %s\n", cfg.Retry.Schedule)
	}
	fmt.Fprintf(out, "  metrics:        %t\n", cfg.Telemetry.Metrics.Enabled)
	fmt.Fprintf(out, "  tracing:        %t\n", cfg.Telemetry.Tracing.Enabled)
}
