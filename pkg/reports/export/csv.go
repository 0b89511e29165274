package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"mercator-hq/fieldguard/pkg/reports"
)

// CSVExporter flattens records to one row per validation error. Passes
// without errors produce a single row with empty error columns.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"record_id", "pass_id", "pass_time", "status", "error_count",
	"field_id", "rule_id", "type", "message", "action",
}

// Export writes records in CSV format.
func (e *CSVExporter) Export(ctx context.Context, records []*reports.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return reports.NewExportError("csv", len(records), err)
		}
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, row := range recordRows(record) {
			if err := writer.Write(row); err != nil {
				return reports.NewExportError("csv", len(records), err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return reports.NewExportError("csv", len(records), err)
	}
	return nil
}

func recordRows(record *reports.Record) [][]string {
	prefix := []string{
		record.ID,
		record.PassID,
		record.PassTime.UTC().Format(time.RFC3339Nano),
		record.Status(),
		strconv.Itoa(record.ErrorCount),
	}

	var rows [][]string
	if record.Report != nil {
		for _, fieldID := range record.FieldIDs {
			for _, e := range record.Report.Details[fieldID] {
				row := append(append([]string(nil), prefix...),
					fieldID, e.RuleID, string(e.Type), e.Message, actionString(e.Action, e.ActionValue))
				rows = append(rows, row)
			}
		}
	}
	if len(rows) == 0 {
		rows = append(rows, append(prefix, "", "", "", "", ""))
	}
	return rows
}

func actionString(action string, value any) string {
	if action == "" {
		return ""
	}
	if value == nil {
		return action
	}
	return fmt.Sprintf("%s=%v", action, value)
}
