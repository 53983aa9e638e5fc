package export

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"mercator-hq/warden/pkg/audit"
)

// Header is the CSV column order.
var Header = []string{"audit_id", "timestamp", "action_type", "actor", "decision_id", "reason"}

// CSVExporter exports audit entries with one row per entry.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// ContentType implements audit.Exporter.
func (e *CSVExporter) ContentType() string {
	return "text/csv"
}

// Export writes entries to w. Metadata is not part of the CSV output.
func (e *CSVExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return audit.NewExportError("csv", len(entries), err)
		}
	}

	for i, entry := range entries {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writer.Write(entryToRow(entry)); err != nil {
			return audit.NewExportError("csv", len(entries), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(entries), err)
	}
	return nil
}

func entryToRow(entry *audit.Entry) []string {
	return []string{
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(entry.ActionType),
		string(entry.Actor),
		entry.DecisionID,
		entry.Reason,
	}
}
