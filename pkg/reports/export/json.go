package export

import (
	"context"
	"io"

	"github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/reports"
)

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records as a JSON array, "[]" when there are none.
func (e *JSONExporter) Export(ctx context.Context, records []*reports.Record, w io.Writer) error {
	if records == nil {
		records = []*reports.Record{}
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.MarshalContext(ctx, records)
	}
	if err != nil {
		return reports.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return reports.NewExportError("json", len(records), err)
	}
	return nil
}
