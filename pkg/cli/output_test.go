package cli

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

func sampleReport() *engine.Report {
	r := engine.NewResult(true)
	r.AddError("email", engine.ValidationError{Message: "Email is required.", Type: engine.KindRequired, RuleID: "email-required"})
	r.AddError("age", engine.ValidationError{Message: "Age must be at least 18.", Type: engine.KindComparison, RuleID: "age-min"})
	return r.FormatResults()
}

func sampleRecord() *reports.Record {
	report := sampleReport()
	return &reports.Record{
		ID:         "rec-1",
		PassID:     "pass-1",
		PassTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		HasErrors:  true,
		ErrorCount: report.ErrorCount,
		FieldIDs:   []string{"email", "age"},
		RuleIDs:    []string{"age-min", "email-required"},
		ReportHash: "abc",
		Report:     report,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		value   string
		want    OutputFormat
		wantErr bool
	}{
		{value: "", want: FormatText},
		{value: "JSON", want: FormatJSON},
		{value: " text ", want: FormatText},
		{value: "csv", wantErr: true},
		{value: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseFormat(tt.value, FormatText, FormatJSON)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestTextFormatterReport(t *testing.T) {
	tests := []struct {
		name   string
		report *engine.Report
		want   []string
	}{
		{
			name:   "valid",
			report: engine.NewResult(true).FormatResults(),
			want:   []string{"All fields valid"},
		},
		{
			name:   "errors in field order",
			report: sampleReport(),
			want: []string{
				"2 errors in 2 fields",
				"[REQUIRED] Email is required. (rule email-required)",
				"[COMPARISON] Age must be at least 18. (rule age-min)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TextFormatter{}).Format(tt.report)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(string(out), want) {
					t.Errorf("output %q does not contain %q", out, want)
				}
			}
		})
	}

	out, _ := (&TextFormatter{}).Format(sampleReport())
	if strings.Index(string(out), "email") > strings.Index(string(out), "age") {
		t.Errorf("fields out of first-error order:\n%s", out)
	}
}

func TestTextFormatterErrorList(t *testing.T) {
	list := ruleset.NewErrorList()
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, list); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No problems found") {
		t.Errorf("empty list output = %q", buf.String())
	}

	list.Add(&ruleset.Error{Type: ruleset.ErrorTypeSemantic, Message: "unknown operator \"~~\"", RuleID: "r1"})
	list.Add(&ruleset.Error{Type: ruleset.ErrorTypeStructural, Severity: ruleset.SeverityWarning, Message: "rule has no name"})

	buf.Reset()
	if err := (&TextFormatter{}).FormatTo(buf, list); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"unknown operator", "(rule r1)", "1 error, 1 warning"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output %q does not contain %q", buf.String(), want)
		}
	}
}

func TestTextFormatterRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, []*reports.Record{sampleRecord()}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"PASS TIME", "rec-1", "2026-03-01T12:00:00Z", "failed", "email,age"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}

	buf.Reset()
	if err := (&TextFormatter{}).FormatTo(buf, sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Record ID: rec-1") || !strings.Contains(buf.String(), "Email is required.") {
		t.Errorf("record output = %q", buf.String())
	}
}

func TestTextFormatterFallback(t *testing.T) {
	out, err := (&TextFormatter{}).Format("test message")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "test message\n" {
		t.Errorf("Format() = %q", out)
	}
}

func TestJSONFormatter(t *testing.T) {
	for _, indent := range []bool{false, true} {
		t.Run(fmt.Sprintf("indent=%v", indent), func(t *testing.T) {
			out, err := (&JSONFormatter{Indent: indent}).Format(sampleReport())
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			var got engine.Report
			if err := json.Unmarshal(out, &got); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if got.ErrorCount != 2 || len(got.Details["email"]) != 1 {
				t.Errorf("decoded report = %+v", got)
			}
		})
	}
}

func TestCSVFormatter(t *testing.T) {
	out, err := (&CSVFormatter{}).Format([]*reports.Record{sampleRecord()})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus one row per error, got %d rows", len(rows))
	}
	if rows[0][0] != "record_id" {
		t.Errorf("header = %v", rows[0])
	}

	if _, err := (&CSVFormatter{}).Format(sampleReport()); err == nil {
		t.Error("expected an error for a non-record value")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{format: FormatText, want: "*cli.TextFormatter"},
		{format: FormatJSON, want: "*cli.JSONFormatter"},
		{format: FormatCSV, want: "*cli.CSVFormatter"},
		{format: "unknown", want: "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := fmt.Sprintf("%T", NewFormatter(tt.format)); got != tt.want {
				t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}
