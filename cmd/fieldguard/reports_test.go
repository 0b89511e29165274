package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/storage"
	"mercator-hq/fieldguard/pkg/validation/engine"
)

// seedReports stores one passing and one failing record in a fresh archive.
func seedReports(t *testing.T) {
	t.Helper()
	path := useSQLiteReports(t)

	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{Path: path, Driver: storage.DriverPure}, nil)
	if err != nil {
		t.Fatalf("failed to open report store: %v", err)
	}
	defer store.Close()

	failing := engine.NewResult(true)
	failing.AddError("age", engine.ValidationError{Message: "Age must be at least 18.", Type: engine.KindComparison, RuleID: "age-min"})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*reports.Record{
		{
			ID:           "rec-passed",
			PassID:       "pass-1",
			PassTime:     base,
			RecordedTime: base,
			Report:       engine.NewResult(true).FormatResults(),
		},
		{
			ID:           "rec-failed",
			PassID:       "pass-2",
			PassTime:     base.Add(time.Hour),
			RecordedTime: base.Add(time.Hour),
			HasErrors:    true,
			ErrorCount:   1,
			FieldIDs:     []string{"age"},
			RuleIDs:      []string{"age-min"},
			Report:       failing.FormatResults(),
		},
	}
	for _, r := range records {
		if err := store.Store(context.Background(), r); err != nil {
			t.Fatalf("Store(%s) error = %v", r.ID, err)
		}
	}
}

func setReportsFlags() {
	reportsFlags.timeRange = ""
	reportsFlags.field = ""
	reportsFlags.rule = ""
	reportsFlags.pass = ""
	reportsFlags.status = ""
	reportsFlags.sort = "desc"
	reportsFlags.limit = 0
	reportsFlags.offset = 0
	reportsFlags.listFormat = "json"
	reportsFlags.showFormat = "text"
	reportsFlags.exportFormat = "json"
	reportsFlags.output = ""
	reportsFlags.days = -1
	reportsFlags.maxRecords = -1
}

func TestListReports(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		wantIDs []string
	}{
		{name: "all newest first", setup: func() {}, wantIDs: []string{"rec-failed", "rec-passed"}},
		{name: "oldest first", setup: func() { reportsFlags.sort = "asc" }, wantIDs: []string{"rec-passed", "rec-failed"}},
		{name: "failed only", setup: func() { reportsFlags.status = reports.StatusFailed }, wantIDs: []string{"rec-failed"}},
		{name: "by rule", setup: func() { reportsFlags.rule = "age-min" }, wantIDs: []string{"rec-failed"}},
		{name: "by field", setup: func() { reportsFlags.field = "email" }, wantIDs: []string{}},
		{
			name:    "time range",
			setup:   func() { reportsFlags.timeRange = "2026-03-01T12:30:00Z/" },
			wantIDs: []string{"rec-failed"},
		},
		{name: "paged", setup: func() { reportsFlags.limit = 1; reportsFlags.offset = 1 }, wantIDs: []string{"rec-passed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useDefaults(t)
			seedReports(t)
			setReportsFlags()
			tt.setup()

			cmd, out := newOutputCmd()
			if err := listReports(cmd, []string{}); err != nil {
				t.Fatalf("listReports() error = %v", err)
			}

			var records []*reports.Record
			if err := json.Unmarshal(out.Bytes(), &records); err != nil {
				t.Fatalf("invalid JSON output: %v\n%s", err, out.String())
			}
			got := make([]string, 0, len(records))
			for _, r := range records {
				got = append(got, r.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("record IDs = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestListReportsInvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{name: "bad status", setup: func() { reportsFlags.status = "broken" }},
		{name: "bad sort", setup: func() { reportsFlags.sort = "sideways" }},
		{name: "bad time range", setup: func() { reportsFlags.timeRange = "yesterday" }},
		{name: "limit above max", setup: func() { reportsFlags.limit = 100000 }},
		{name: "bad format", setup: func() { reportsFlags.listFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useDefaults(t)
			seedReports(t)
			setReportsFlags()
			tt.setup()

			cmd, _ := newOutputCmd()
			if err := listReports(cmd, []string{}); err == nil {
				t.Error("listReports() should return an error")
			}
		})
	}
}

func TestShowReport(t *testing.T) {
	useDefaults(t)
	seedReports(t)
	setReportsFlags()

	cmd, out := newOutputCmd()
	if err := showReport(cmd, []string{"rec-failed"}); err != nil {
		t.Fatalf("showReport() error = %v", err)
	}
	for _, want := range []string{"rec-failed", "Age must be at least 18."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}

	if err := showReport(cmd, []string{"missing"}); err == nil {
		t.Error("showReport() should fail for an unknown record")
	}
}

func TestExportReportsCSV(t *testing.T) {
	useDefaults(t)
	seedReports(t)
	setReportsFlags()
	reportsFlags.exportFormat = "csv"
	reportsFlags.output = filepath.Join(t.TempDir(), "reports.csv")

	cmd, _ := newOutputCmd()
	if err := exportReports(cmd, []string{}); err != nil {
		t.Fatalf("exportReports() error = %v", err)
	}

	f, err := os.Open(reportsFlags.output)
	if err != nil {
		t.Fatalf("export file not written: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) < 3 {
		t.Errorf("got %d rows, want a header and a row per record", len(rows))
	}
}

func TestExportReportsUnsupportedFormat(t *testing.T) {
	useDefaults(t)
	setReportsFlags()
	reportsFlags.exportFormat = "xml"

	cmd, _ := newOutputCmd()
	if err := exportReports(cmd, []string{}); err == nil {
		t.Error("exportReports() should reject an unsupported format")
	}
}

func TestPruneReports(t *testing.T) {
	useDefaults(t)
	seedReports(t)
	setReportsFlags()
	reportsFlags.days = 0
	reportsFlags.maxRecords = 1

	cmd, out := newOutputCmd()
	if err := pruneReports(cmd, []string{}); err != nil {
		t.Fatalf("pruneReports() error = %v", err)
	}
	if !strings.Contains(out.String(), "Pruned 1 record") {
		t.Errorf("output = %q", out.String())
	}

	reportsFlags.listFormat = "json"
	out.Reset()
	if err := listReports(cmd, []string{}); err != nil {
		t.Fatalf("listReports() error = %v", err)
	}
	var records []*reports.Record
	if err := json.Unmarshal(out.Bytes(), &records); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(records) != 1 || records[0].ID != "rec-failed" {
		t.Errorf("remaining records = %+v, want only rec-failed", records)
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		value     string
		wantStart bool
		wantEnd   bool
		wantErr   bool
	}{
		{value: "2026-03-01T00:00:00Z/2026-03-02T00:00:00Z", wantStart: true, wantEnd: true},
		{value: "2026-03-01T00:00:00Z/", wantStart: true},
		{value: "/2026-03-02T00:00:00Z", wantEnd: true},
		{value: "/", wantErr: true},
		{value: "2026-03-01", wantErr: true},
		{value: "yesterday/today", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			start, end, err := parseTimeRange(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeRange(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if (start != nil) != tt.wantStart || (end != nil) != tt.wantEnd {
				t.Errorf("parseTimeRange(%q) = %v, %v", tt.value, start, end)
			}
		})
	}
}
