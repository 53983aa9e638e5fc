package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/moderation"
)

// parseTimeRange parses an RFC3339 interval "start/end". Either side may be
// empty.
func parseTimeRange(s string) (start, end *time.Time, err error) {
	if s == "" {
		return nil, nil, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return nil, nil, cli.NewConfigError("time-range", "expected start/end")
	}
	parse := func(v string) (*time.Time, error) {
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, cli.NewConfigError("time-range", fmt.Sprintf("invalid time %q: %v", v, err))
		}
		return &t, nil
	}
	if start, err = parse(parts[0]); err != nil {
		return nil, nil, err
	}
	if end, err = parse(parts[1]); err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, cli.NewConfigError("time-range", "start is after end")
	}
	return start, end, nil
}

// createOutput returns a writer for path, or w when path is empty or "-".
func createOutput(path string, w io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return w, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

func auditTable(entries []*audit.Entry) *cli.Table {
	t := &cli.Table{Columns: []string{"SEQ", "AUDIT ID", "TIMESTAMP", "ACTION", "ACTOR", "DECISION", "REASON"}}
	for _, e := range entries {
		t.Data = append(t.Data, []string{
			strconv.FormatUint(e.Sequence, 10),
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.ActionType),
			string(e.Actor),
			e.DecisionID,
			e.Reason,
		})
	}
	return t
}

func decisionTable(decisions []*moderation.Decision) *cli.Table {
	t := &cli.Table{Columns: []string{"DECISION ID", "TIMESTAMP", "ROOM", "PARTICIPANT", "CLASSIFICATION", "CONFIDENCE", "ACTION", "STATUS"}}
	for _, d := range decisions {
		t.Data = append(t.Data, []string{
			d.ID,
			d.Timestamp.UTC().Format(time.RFC3339),
			d.RoomID,
			d.ParticipantID,
			string(d.Classification),
			strconv.FormatFloat(d.Confidence, 'f', 3, 64),
			string(d.Action),
			string(d.Status),
		})
	}
	return t
}

// countsTable renders a statistics breakdown as section/key/count rows.
type countsTable struct {
	rows [][]string
}

func (c *countsTable) add(section, key string, n int64) {
	c.rows = append(c.rows, []string{section, key, strconv.FormatInt(n, 10)})
}

func (c *countsTable) Headers() []string { return []string{"SECTION", "KEY", "COUNT"} }
func (c *countsTable) Rows() [][]string  { return c.rows }
