package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/fieldguard/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json", config: Config{Level: "info", Format: "json"}},
		{name: "text", config: Config{Level: "debug", Format: "text"}},
		{name: "console maps to text", config: Config{Level: "warn", Format: "console"}},
		{name: "defaults", config: Config{}},
		{name: "redaction", config: Config{RedactValues: true}},
		{name: "invalid level", config: Config{Level: "verbose"}, wantErr: true},
		{name: "invalid format", config: Config{Format: "xml"}, wantErr: true},
		{
			name: "invalid custom pattern",
			config: Config{
				RedactValues:   true,
				RedactPatterns: []config.RedactPattern{{Name: "bad", Pattern: "("}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "warn", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn record missing")
	}
}

func TestNew_RedactsValues(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Format: "json", RedactValues: true, Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.With("field_value", "hunter2").Info("condition failed for jane@example.com",
		"field_id", "email",
		"value", "jane@example.com",
		"detail", "card 4111 1111 1111 1111 rejected",
		slog.Group("condition", slog.String("expected", "secret-answer")),
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}

	if record["field_id"] != "email" {
		t.Errorf("field_id = %v, want email", record["field_id"])
	}
	if record["value"] != "***" || record["field_value"] != "***" {
		t.Errorf("sensitive values not redacted: %v, %v", record["value"], record["field_value"])
	}
	if strings.Contains(buf.String(), "jane@example.com") {
		t.Error("email leaked into output")
	}
	if strings.Contains(buf.String(), "4111") {
		t.Error("card number leaked into output")
	}
	group, _ := record["condition"].(map[string]any)
	if group["expected"] != "***" {
		t.Errorf("grouped value not redacted: %v", group)
	}
}

func TestNew_ContextAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithPassID(WithRequestID(context.Background(), "req-1"), "pass-9")
	logger.InfoContext(ctx, "pass complete")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["request_id"] != "req-1" || record["pass_id"] != "pass-9" {
		t.Errorf("context attributes missing: %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard() logger should not be enabled")
	}
}
