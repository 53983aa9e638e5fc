// Package export renders audit entries as JSON or CSV.
//
// Both exporters implement audit.Exporter and are deterministic: the same
// entries in the same order produce byte-identical output.
//
//	var buf bytes.Buffer
//	err := log.Export(ctx, query, export.NewCSVExporter(true), &buf)
package export

import "mercator-hq/warden/pkg/audit"

var (
	_ audit.Exporter = (*JSONExporter)(nil)
	_ audit.Exporter = (*CSVExporter)(nil)
)

// ForFormat returns the exporter for "json" or "csv", or false.
func ForFormat(format string) (audit.Exporter, bool) {
	switch format {
	case "json", "":
		return NewJSONExporter(true), true
	case "csv":
		return NewCSVExporter(true), true
	}
	return nil, false
}
