package ruleset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

const applicantYAML = `version: "1"
name: applicant
rules:
  - ruleId: age
    priority: HIGH
    conditions:
      - type: COMPARISON
        fieldId: age
        operator: GREATER_THAN_OR_EQUAL
        value: 18
        errorMessage: You must be at least 18 years old.
  - fieldId: email
    type: REGEX
    value: "@"
  - fieldId: country
    operator: EQUALS
    value: NO
`

func TestParseBytes_YAML(t *testing.T) {
	doc, err := NewParser().ParseBytes([]byte(applicantYAML), "rules.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if doc.Name != "applicant" || doc.Version != "1" {
		t.Errorf("metadata = %q %q", doc.Name, doc.Version)
	}
	if len(doc.Rules) != 3 {
		t.Fatalf("len(Rules) = %d, want 3", len(doc.Rules))
	}

	age := doc.Rules[0]
	if age.Priority != "HIGH" || len(age.Conditions) != 1 || age.Conditions[0].Value != 18 {
		t.Errorf("age rule = %+v", age)
	}

	email := doc.Rules[1]
	if email.RuleID != "rule-2" {
		t.Errorf("generated ruleId = %q, want rule-2", email.RuleID)
	}
	if len(email.Conditions) != 1 || email.Conditions[0].Type != engine.KindRegex || email.Conditions[0].FieldID != "email" {
		t.Errorf("flat rule not normalized: %+v", email.Conditions)
	}

	country := doc.Rules[2]
	if country.Conditions[0].Type != engine.KindComparison {
		t.Errorf("flat rule with operator should be COMPARISON, got %s", country.Conditions[0].Type)
	}

	if loc := doc.Location(1); loc.Line != 12 || loc.File != "rules.yaml" {
		t.Errorf("Location(1) = %+v, want line 12", loc)
	}
}

func TestParseBytes_JSONList(t *testing.T) {
	data := []byte(`[
  {"ruleId": "name", "conditions": [{"type": "REQUIRED", "fieldId": "name"}]},
  {"ruleId": "code", "fieldId": "code", "type": "LENGTH_CHECK", "minLength": 2, "maxLength": 4}
]`)

	doc, err := NewParser().ParseBytes(data, "inline")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	if len(doc.Rules) != 2 {
		t.Fatalf("len(Rules) = %d", len(doc.Rules))
	}
	cond := doc.Rules[1].Conditions[0]
	if cond.MinLength == nil || *cond.MinLength != 2 || cond.MaxLength == nil || *cond.MaxLength != 4 {
		t.Errorf("length bounds = %v %v", cond.MinLength, cond.MaxLength)
	}
}

func TestParseBytes_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		source   string
		wantLine int
	}{
		{name: "json", data: "{\n  \"rules\": [\n    {,}\n  ]\n}", source: "rules.json", wantLine: 3},
		{name: "yaml", data: "rules:\n  - ruleId: a\n   bad: [", source: "rules.yaml"},
		{name: "yaml scalar document", data: "just a string", source: "rules.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().ParseBytes([]byte(tt.data), tt.source)
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if perr.Type != ErrorTypeSyntax {
				t.Errorf("Type = %s, want syntax", perr.Type)
			}
			if tt.wantLine > 0 && perr.Location.Line != tt.wantLine {
				t.Errorf("Location = %+v, want line %d", perr.Location, tt.wantLine)
			}
		})
	}
}

func TestParser_SizeLimit(t *testing.T) {
	_, err := NewParser().WithMaxFileSize(8).ParseBytes([]byte(applicantYAML), "rules.yaml")
	var perr *Error
	if !errors.As(err, &perr) || perr.Type != ErrorTypeIO {
		t.Errorf("error = %v, want io error", err)
	}
}

func TestParser_ParseDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("b.json", `{"rules": [{"ruleId": "b", "fieldId": "b", "type": "REQUIRED"}]}`)
	write("a.yaml", "- ruleId: a\n  fieldId: a\n  type: REQUIRED\n")
	write("notes.txt", "ignored")
	write(".hidden.yaml", "- ruleId: hidden\n")

	doc, err := NewParser().ParsePath(dir)
	if err != nil {
		t.Fatalf("ParsePath() error = %v", err)
	}

	var ids []string
	for _, r := range doc.Rules {
		ids = append(ids, r.RuleID)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("rule IDs = %v, want [a b]", ids)
	}
	if len(doc.Locations) != len(doc.Rules) {
		t.Errorf("locations not parallel to rules: %d vs %d", len(doc.Locations), len(doc.Rules))
	}

	if _, err := NewParser().ParsePath(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing path accepted")
	}
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		source  string
		wantIDs []string
		wantErr bool
	}{
		{name: "json list", data: `[{"fieldId": "age", "value": 16}]`, source: "fields.json", wantIDs: []string{"age"}},
		{name: "yaml mapping of values", data: "name: Ada\nage: 36\n", source: "fields.yaml", wantIDs: []string{"age", "name"}},
		{name: "yaml list of records", data: "- fieldId: email\n  value: a@b.c\n", source: "fields.yml", wantIDs: []string{"email"}},
		{name: "empty", data: "", source: "fields.yaml", wantIDs: nil},
		{name: "scalar", data: "42", source: "fields.yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := ParseFields([]byte(tt.data), tt.source)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFields() error = %v", err)
			}
			ctx, err := engine.NewContext(fields)
			if err != nil {
				t.Fatalf("NewContext() error = %v", err)
			}
			got := ctx.FieldIDs()
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("FieldIDs() = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("FieldIDs() = %v, want %v", got, tt.wantIDs)
				}
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		data string
		want Format
	}{
		{path: "r.json", data: "rules: []", want: FormatJSON},
		{path: "r.YML", data: "{}", want: FormatYAML},
		{path: "", data: ` [ {"a": 1} ]`, want: FormatJSON},
		{path: "", data: "{a: 1}", want: FormatYAML},
		{path: "-", data: "rules: []", want: FormatYAML},
	}

	for _, tt := range tests {
		if got := DetectFormat(tt.path, []byte(tt.data)); got != tt.want {
			t.Errorf("DetectFormat(%q, %q) = %s, want %s", tt.path, tt.data, got, tt.want)
		}
	}
}
