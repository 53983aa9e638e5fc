package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/warden/pkg/audit"
)

// JSONExporter exports audit entries as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// ContentType implements audit.Exporter.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// Export writes entries to w. The output is always an array, including for
// zero or one entries.
func (e *JSONExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return audit.NewExportError("json", len(entries), err)
	}

	if _, err := w.Write(data); err != nil {
		return audit.NewExportError("json", len(entries), err)
	}
	return nil
}
