package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/decision"
	"mercator-hq/warden/pkg/moderation"
)

var decisionsFlags struct {
	room           string
	participant    string
	classification string
	action         string
	status         string
	minConfidence  float64
	maxConfidence  float64
	timeRange      string
	limit          int
	offset         int
	format         string
	statsFormat    string
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect recorded moderation decisions",
	Long: `Inspect the moderation decisions of a SQLite deployment.

Subcommands:
  list   - List decisions with filters
  stats  - Show counts by action, classification and status`,
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decisions",
	Long: `List decisions, newest first.

Examples:
  # Pending mutes in one room
  warden decisions list --room room-1 --action mute --status pending

  # High-confidence hate speech as CSV
  warden decisions list --classification hate_speech --min-confidence 0.9 --format csv`,
	RunE: listDecisions,
}

var decisionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show decision statistics",
	RunE:  decisionStats,
}

func init() {
	rootCmd.AddCommand(decisionsCmd)
	decisionsCmd.AddCommand(decisionsListCmd, decisionsStatsCmd)

	f := decisionsListCmd.Flags()
	f.StringVar(&decisionsFlags.room, "room", "", "filter by room id")
	f.StringVar(&decisionsFlags.participant, "participant", "", "filter by participant id")
	f.StringVar(&decisionsFlags.classification, "classification", "", "filter by classification")
	f.StringVar(&decisionsFlags.action, "action", "", "filter by action (none, warn, mute, flag_for_review)")
	f.StringVar(&decisionsFlags.status, "status", "", "filter by status (pending, executed, reviewed, overturned)")
	f.Float64Var(&decisionsFlags.minConfidence, "min-confidence", -1, "minimum confidence (inclusive)")
	f.Float64Var(&decisionsFlags.maxConfidence, "max-confidence", -1, "maximum confidence (inclusive)")
	f.StringVar(&decisionsFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	f.IntVar(&decisionsFlags.limit, "limit", decision.DefaultLimit, "max results")
	f.IntVar(&decisionsFlags.offset, "offset", 0, "pagination offset")
	f.StringVar(&decisionsFlags.format, "format", "text", "output format: text, json, csv")

	decisionsStatsCmd.Flags().StringVar(&decisionsFlags.statsFormat, "format", "text", "output format: text, json, csv")
}

// decisionQuery builds and validates the query from flags.
func decisionQuery() (*decision.Query, error) {
	q := &decision.Query{
		RoomID:         decisionsFlags.room,
		ParticipantID:  decisionsFlags.participant,
		Classification: moderation.Category(decisionsFlags.classification),
		Action:         moderation.Action(decisionsFlags.action),
		Status:         moderation.Status(decisionsFlags.status),
		Limit:          decisionsFlags.limit,
		Offset:         decisionsFlags.offset,
	}

	switch {
	case q.Classification != "" && !q.Classification.Valid():
		return nil, cli.NewConfigError("classification", fmt.Sprintf("invalid classification %q", q.Classification))
	case q.Action != "" && !q.Action.Valid():
		return nil, cli.NewConfigError("action", fmt.Sprintf("invalid action %q", q.Action))
	case q.Status != "" && !q.Status.Valid():
		return nil, cli.NewConfigError("status", fmt.Sprintf("invalid status %q", q.Status))
	case q.Limit < 0 || q.Offset < 0:
		return nil, cli.NewConfigError("limit", "limit and offset must be >= 0")
	}

	// Negative means unset.
	if v := decisionsFlags.minConfidence; v >= 0 {
		q.MinConfidence = &v
	}
	if v := decisionsFlags.maxConfidence; v >= 0 {
		q.MaxConfidence = &v
	}
	for _, c := range []*float64{q.MinConfidence, q.MaxConfidence} {
		if c != nil && *c > 1 {
			return nil, cli.NewConfigError("confidence", "confidence bounds must be within [0, 1]")
		}
	}
	if q.MinConfidence != nil && q.MaxConfidence != nil && *q.MinConfidence > *q.MaxConfidence {
		return nil, cli.NewConfigError("confidence", "min-confidence is greater than max-confidence")
	}

	start, end, err := parseTimeRange(decisionsFlags.timeRange)
	if err != nil {
		return nil, err
	}
	q.StartTime, q.EndTime = start, end
	return q, nil
}

func listDecisions(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(decisionsFlags.format)
	if err != nil {
		return err
	}
	q, err := decisionQuery()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, entries, err := openOffline(&cfg.Storage)
	if err != nil {
		return cli.NewCommandError("decisions list", err)
	}
	entries.Close()
	defer store.Close()

	decisions, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("decisions list", err)
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), decisions)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), decisionTable(decisions))
}

func decisionStats(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(decisionsFlags.statsFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, entries, err := openOffline(&cfg.Storage)
	if err != nil {
		return cli.NewCommandError("decisions stats", err)
	}
	entries.Close()
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return cli.NewCommandError("decisions stats", err)
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), stats)
	}
	t := &countsTable{}
	t.add("total", "decisions", stats.TotalDecisions)
	for _, a := range moderation.Actions {
		t.add("action", string(a), stats.ByAction[a])
	}
	for _, c := range moderation.Categories {
		t.add("classification", string(c), stats.ByClassification[c])
	}
	for _, s := range moderation.Statuses {
		t.add("status", string(s), stats.ByStatus[s])
	}
	t.rows = append(t.rows, []string{"confidence", "average", fmt.Sprintf("%.3f", stats.AverageConfidence)})
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), t)
}
