package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/export"
	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is human-readable output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output, supported for report records only.
	FormatCSV OutputFormat = "csv"
)

// ParseFormat validates a --format flag value against the formats a command supports.
func ParseFormat(value string, supported ...OutputFormat) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(value)))
	if f == "" {
		f = FormatText
	}
	for _, s := range supported {
		if f == s {
			return f, nil
		}
	}
	names := make([]string, len(supported))
	for i, s := range supported {
		names[i] = string(s)
	}
	return "", fmt.Errorf("unsupported format %q (supported: %s)", value, strings.Join(names, ", "))
}

// Formatter formats command output.
type Formatter interface {
	Format(data any) ([]byte, error)
	FormatTo(w io.Writer, data any) error
}

// TextFormatter renders reports, lint results and report records for a
// terminal. Other values are printed with %v.
type TextFormatter struct{}

// Format converts data to text format.
func (f *TextFormatter) Format(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FormatTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	switch v := data.(type) {
	case *engine.Report:
		return writeReport(w, v)
	case *ruleset.ErrorList:
		return writeErrorList(w, v)
	case []*reports.Record:
		return writeRecords(w, v)
	case *reports.Record:
		return writeRecord(w, v)
	default:
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format converts data to JSON format.
func (f *JSONFormatter) Format(data any) ([]byte, error) {
	if f.Indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter writes report records with one row per validation error.
type CSVFormatter struct{}

// Format converts data to CSV format.
func (f *CSVFormatter) Format(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FormatTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatTo writes data to writer in CSV format.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	exporter := export.NewCSVExporter(true)
	switch v := data.(type) {
	case []*reports.Record:
		return exporter.Export(context.Background(), v, w)
	case *reports.Record:
		return exporter.Export(context.Background(), []*reports.Record{v}, w)
	default:
		return fmt.Errorf("CSV output is not supported for %T", data)
	}
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

func writeReport(w io.Writer, r *engine.Report) error {
	if !r.HasErrors {
		_, err := fmt.Fprintln(w, "✓ All fields valid")
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✗ %d %s in %d %s\n",
		r.ErrorCount, plural(r.ErrorCount, "error", "errors"),
		len(r.Details), plural(len(r.Details), "field", "fields"))

	for _, fieldID := range reportFields(r) {
		fmt.Fprintf(&sb, "\n  %s\n", fieldID)
		for _, e := range r.Details[fieldID] {
			fmt.Fprintf(&sb, "    - [%s] %s", e.Type, e.Message)
			if e.RuleID != "" {
				fmt.Fprintf(&sb, " (rule %s)", e.RuleID)
			}
			sb.WriteByte('\n')
		}
	}

	if len(r.Actions) > 0 {
		sb.WriteString("\nActions:\n")
		for _, fieldID := range sortedKeys(r.Actions) {
			for _, a := range r.Actions[fieldID] {
				fmt.Fprintf(&sb, "  %s: %s", fieldID, a.Action)
				if a.ActionValue != nil {
					fmt.Fprintf(&sb, " = %v", a.ActionValue)
				}
				sb.WriteByte('\n')
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// reportFields lists fields in first-error order. Reports decoded from JSON
// carry no order, so the remaining fields are appended sorted.
func reportFields(r *engine.Report) []string {
	fields := make([]string, 0, len(r.Details))
	seen := make(map[string]bool, len(r.Details))
	for _, f := range r.Fields {
		if _, ok := r.Details[f]; ok && !seen[f] {
			fields = append(fields, f)
			seen[f] = true
		}
	}
	for _, f := range sortedKeys(r.Details) {
		if !seen[f] {
			fields = append(fields, f)
		}
	}
	return fields
}

func writeErrorList(w io.Writer, list *ruleset.ErrorList) error {
	if list.Count() == 0 {
		_, err := fmt.Fprintln(w, "✓ No problems found")
		return err
	}

	var sb strings.Builder
	for _, e := range list.Errors {
		sb.WriteString(e.Error())
		sb.WriteString("\n\n")
	}
	warnings := len(list.Warnings())
	errs := list.Count() - warnings
	fmt.Fprintf(&sb, "%d %s, %d %s\n",
		errs, plural(errs, "error", "errors"),
		warnings, plural(warnings, "warning", "warnings"))

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRecords(w io.Writer, records []*reports.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No reports found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPASS TIME\tSTATUS\tERRORS\tFIELDS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			r.PassTime.UTC().Format(time.RFC3339),
			r.Status(),
			r.ErrorCount,
			strings.Join(r.FieldIDs, ","),
		)
	}
	return tw.Flush()
}

func writeRecord(w io.Writer, r *reports.Record) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Record ID: %s\n", r.ID)
	fmt.Fprintf(&sb, "Pass ID: %s\n", r.PassID)
	fmt.Fprintf(&sb, "Pass Time: %s\n", r.PassTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Status: %s\n", r.Status())
	if r.RuleSource != "" {
		fmt.Fprintf(&sb, "Rules: %s %s\n", r.RuleSource, r.RuleVersion)
	}
	fmt.Fprintf(&sb, "Report Hash: %s\n\n", r.ReportHash)
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	if r.Report == nil {
		return nil
	}
	return writeReport(w, r.Report)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
