package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/audit"
	auditstorage "mercator-hq/warden/pkg/audit/storage"
	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/policy"
)

var policyFlags struct {
	file   string
	format string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect moderation policies",
	Long: `Inspect moderation policies and threshold files.

Every category has one policy with warn, mute and flag thresholds. A policy
file overrides the seeded thresholds at startup and, with policy.watch, on
every change.

Subcommands:
  list      - Show the effective policies
  validate  - Check a policy file without applying it`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the effective policies",
	Long: `Show the seeded policies with a policy file applied.

Examples:
  # Seeded defaults plus the configured policy file
  warden policy list --config /etc/warden/config.yaml

  # Preview a policy file
  warden policy list --file policies.yaml --format json`,
	RunE: listPolicies,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a policy file",
	Long: `Parse a policy file and check every entry against the seeded policies.

Unknown fields, unknown policy ids or categories, thresholds outside [0, 1]
and thresholds out of order (warn <= mute <= flag) are reported.

Examples:
  warden policy validate --file policies.yaml`,
	RunE: validatePolicies,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyValidateCmd)

	policyCmd.PersistentFlags().StringVarP(&policyFlags.file, "file", "f", "", "policy file (default: policy.file_path from config)")
	policyListCmd.Flags().StringVar(&policyFlags.format, "format", "text", "output format: text, json, csv")
}

// policyFile returns the file flag, falling back to the configured path.
func policyFile() (string, error) {
	if policyFlags.file != "" {
		return policyFlags.file, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Policy.FilePath, nil
}

// effectivePolicies returns the seeded policies with path applied.
func effectivePolicies(ctx context.Context, path string) ([]policy.Policy, error) {
	store := policy.NewSeededStore()
	if path == "" {
		return store.List(), nil
	}

	log, err := audit.NewLog(ctx, auditstorage.NewMemoryStorage(), audit.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer log.Close()

	svc := policy.NewService(store, log, broadcast.Discard)
	if _, err := svc.ReloadFile(ctx, path); err != nil {
		return nil, err
	}
	return svc.List(), nil
}

func policyTable(policies []policy.Policy) *cli.Table {
	t := &cli.Table{Columns: []string{"ID", "CATEGORY", "WARN", "MUTE", "FLAG", "ENABLED"}}
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	for _, p := range policies {
		t.Data = append(t.Data, []string{
			p.ID,
			string(p.Category),
			format(p.WarnThreshold),
			format(p.MuteThreshold),
			format(p.FlagThreshold),
			strconv.FormatBool(p.Enabled),
		})
	}
	return t
}

func listPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(policyFlags.format)
	if err != nil {
		return err
	}
	path, err := policyFile()
	if err != nil {
		return err
	}

	policies, err := effectivePolicies(cmd.Context(), path)
	if err != nil {
		return cli.NewCommandError("policy list", err)
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), policies)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), policyTable(policies))
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	path, err := policyFile()
	if err != nil {
		return err
	}
	if path == "" {
		return cli.NewConfigError("file", "no policy file given and policy.file_path is not configured")
	}

	f, err := policy.LoadFile(path)
	if err != nil {
		return cli.NewCommandError("policy validate", err)
	}
	if err := f.Validate(policy.NewSeededStore()); err != nil {
		return cli.NewCommandError("policy validate", fmt.Errorf("%s: %w", path, err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d entries)\n", path, len(f.Policies))
	return nil
}
