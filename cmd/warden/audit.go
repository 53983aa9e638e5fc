package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/audit/export"
	"mercator-hq/warden/pkg/audit/query"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
)

var auditFlags struct {
	decision   string
	actionType string
	actor      string
	timeRange  string
	limit      int
	offset     int
	format     string
	statsFmt   string
	exportFmt  string
	output     string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit log",
	Long: `Query, summarize and export the audit log of a SQLite deployment.

Subcommands:
  query   - List audit entries with filters
  stats   - Show counts by action type and actor
  export  - Write matching entries as JSON or CSV

Time Range Format:
  RFC3339 interval "start/end"; either side may be empty.
  Example: "2026-03-01T00:00:00Z/2026-03-02T00:00:00Z"`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List audit entries",
	Long: `List audit entries, newest first.

Examples:
  # Everything recorded for one decision
  warden audit query --decision dec-0123456789ab

  # Admin actions during one day, as JSON
  warden audit query --actor admin --time-range "2026-03-01T00:00:00Z/2026-03-02T00:00:00Z" --format json`,
	RunE: queryAudit,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show audit log statistics",
	RunE:  auditStats,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries",
	Long: `Export audit entries as JSON or CSV.

Examples:
  # Export everything as CSV
  warden audit export --format csv --output audit.csv

  # Export policy changes as JSON to stdout
  warden audit export --action-type policy_updated`,
	RunE: exportAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditStatsCmd, auditExportCmd)

	for _, c := range []*cobra.Command{auditQueryCmd, auditExportCmd} {
		c.Flags().StringVar(&auditFlags.decision, "decision", "", "filter by decision id")
		c.Flags().StringVar(&auditFlags.actionType, "action-type", "", "filter by action type")
		c.Flags().StringVar(&auditFlags.actor, "actor", "", "filter by actor (system, ai, admin)")
		c.Flags().StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	}

	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", query.DefaultLimit, "max results")
	auditQueryCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")

	auditStatsCmd.Flags().StringVar(&auditFlags.statsFmt, "format", "text", "output format: text, json, csv")

	auditExportCmd.Flags().StringVar(&auditFlags.exportFmt, "format", "json", "export format: json, csv")
	auditExportCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")
}

// openAuditLog opens the audit log of the configured SQLite database.
func openAuditLog(ctx context.Context, cfg *config.Config) (*audit.Log, error) {
	decisions, entries, err := openOffline(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	// Only the audit side is needed.
	decisions.Close()

	log, err := audit.NewLog(ctx, entries, audit.DefaultConfig())
	if err != nil {
		entries.Close()
		return nil, err
	}
	return log, nil
}

// auditQuery builds and validates the query from flags.
func auditQuery(limit, offset int) (*audit.Query, error) {
	start, end, err := parseTimeRange(auditFlags.timeRange)
	if err != nil {
		return nil, err
	}
	q := &audit.Query{
		StartTime:  start,
		EndTime:    end,
		DecisionID: auditFlags.decision,
		ActionType: audit.ActionType(auditFlags.actionType),
		Actor:      audit.Actor(auditFlags.actor),
		Limit:      limit,
		Offset:     offset,
	}
	if err := query.Validate(q); err != nil {
		return nil, cli.NewConfigError("query", err.Error())
	}
	return q, nil
}

func queryAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	q, err := auditQuery(auditFlags.limit, auditFlags.offset)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log, err := openAuditLog(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	defer log.Close()

	entries, err := log.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	slog.Debug("audit query completed", "results", len(entries))

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), entries)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), auditTable(entries))
}

func auditStats(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditFlags.statsFmt)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log, err := openAuditLog(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("audit stats", err)
	}
	defer log.Close()

	stats, err := log.Stats(ctx)
	if err != nil {
		return cli.NewCommandError("audit stats", err)
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), stats)
	}
	t := &countsTable{}
	t.add("total", "entries", stats.TotalEntries)
	for _, at := range audit.ActionTypes {
		t.add("action_type", string(at), stats.ByActionType[at])
	}
	for _, a := range audit.Actors {
		t.add("actor", string(a), stats.ByActor[a])
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), t)
}

func exportAudit(cmd *cobra.Command, args []string) error {
	exporter, ok := export.ForFormat(auditFlags.exportFmt)
	if !ok {
		return cli.NewConfigError("format", fmt.Sprintf("unsupported export format %q (want json or csv)", auditFlags.exportFmt))
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if auditFlags.exportFmt == "json" {
		exporter = export.NewJSONExporter(cfg.Audit.ExportPretty)
	}
	q, err := auditQuery(0, 0)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log, err := openAuditLog(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	defer log.Close()

	w, closeOutput, err := createOutput(auditFlags.output, cmd.OutOrStdout())
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	n, err := log.Export(ctx, q, exporter, w)
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	if auditFlags.output != "" && auditFlags.output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d entries to %s\n", n, auditFlags.output)
	}
	return nil
}
