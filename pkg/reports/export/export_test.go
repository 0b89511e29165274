package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/validation/engine"
)

func sampleRecords() []*reports.Record {
	result := engine.NewResult(true)
	result.AddError("email", engine.ValidationError{
		Message: "Email is required.", Type: engine.KindRequired, RuleID: "email-required",
		Action: "HIGHLIGHT", ActionValue: "red",
	})
	result.AddError("age", engine.ValidationError{Message: "Too young.", Type: engine.KindComparison, RuleID: "age-min"})
	failed := result.FormatResults()

	passTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []*reports.Record{
		{
			ID: "r1", PassID: "p1", PassTime: passTime,
			HasErrors: true, ErrorCount: 2,
			FieldIDs: []string{"email", "age"}, RuleIDs: []string{"age-min", "email-required"},
			Report: failed,
		},
		{
			ID: "r2", PassID: "p2", PassTime: passTime.Add(time.Second),
			Report: engine.NewResult(true).FormatResults(),
		},
	}
}

func TestJSONExporter(t *testing.T) {
	tests := []struct {
		name    string
		records []*reports.Record
		pretty  bool
		wantLen int
	}{
		{"empty", nil, false, 0},
		{"compact", sampleRecords(), false, 2},
		{"pretty", sampleRecords(), true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewJSONExporter(tt.pretty).Export(context.Background(), tt.records, &buf); err != nil {
				t.Fatalf("Export: %v", err)
			}

			var decoded []map[string]any
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
			}
			if len(decoded) != tt.wantLen {
				t.Errorf("decoded %d records, want %d", len(decoded), tt.wantLen)
			}
			if tt.pretty && !strings.Contains(buf.String(), "\n  ") {
				t.Error("pretty output is not indented")
			}
		})
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sampleRecords(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "record_id" {
		t.Errorf("header = %v", rows[0])
	}

	first := rows[1]
	if first[5] != "email" || first[6] != "email-required" || first[7] != "REQUIRED" || first[9] != "HIGHLIGHT=red" {
		t.Errorf("first error row = %v", first)
	}
	if first[3] != reports.StatusFailed || first[2] != "2026-01-02T03:04:05Z" {
		t.Errorf("first row status/time = %v", first)
	}
	if rows[2][5] != "age" {
		t.Errorf("second row field = %q, want age", rows[2][5])
	}

	passed := rows[3]
	if passed[0] != "r2" || passed[3] != reports.StatusPassed || passed[5] != "" {
		t.Errorf("passed row = %v", passed)
	}
}

func TestNew(t *testing.T) {
	if _, err := New("JSON", false); err != nil {
		t.Errorf("New(JSON): %v", err)
	}
	if _, err := New("csv", false); err != nil {
		t.Errorf("New(csv): %v", err)
	}
	if _, err := New("xml", false); err == nil {
		t.Error("expected error for xml")
	}
}
