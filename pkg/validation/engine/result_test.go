package engine

import (
	"reflect"
	"testing"
)

func TestResult_DeduplicatesAndPreservesOrder(t *testing.T) {
	r := NewResult(true)

	r.AddError("b", ValidationError{Message: "B failed", Type: KindRequired})
	r.AddError("a", ValidationError{Message: "A failed", Type: KindRegex})
	if r.AddError("b", ValidationError{Message: "B failed", Type: KindComparison}) {
		t.Error("duplicate (fieldId, message) was recorded")
	}
	r.AddError("b", ValidationError{Message: "B also failed", Type: KindLengthCheck})

	report := r.FormatResults()

	if !report.HasErrors || report.ErrorCount != 3 {
		t.Errorf("HasErrors = %v, ErrorCount = %d", report.HasErrors, report.ErrorCount)
	}

	var messages []string
	for _, s := range report.Summary {
		messages = append(messages, s.FieldID+":"+s.Message)
	}
	want := []string{"b:B failed", "a:A failed", "b:B also failed"}
	if !reflect.DeepEqual(messages, want) {
		t.Errorf("summary = %v, want %v", messages, want)
	}

	if got := report.Fields; !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Fields = %v", got)
	}
	if got := len(report.Details["b"]); got != 2 {
		t.Errorf("len(details[b]) = %d, want 2", got)
	}
	if report.Details["a"][0].Details == nil {
		t.Error("details map should never be nil")
	}
}

func TestResult_WithoutDeduplication(t *testing.T) {
	r := NewResult(false)
	r.AddError("a", ValidationError{Message: "x"})
	r.AddError("a", ValidationError{Message: "x"})

	if got := r.FormatResults().ErrorCount; got != 2 {
		t.Errorf("ErrorCount = %d, want 2", got)
	}
}

func TestResult_EmptyAndActions(t *testing.T) {
	r := NewResult(true)
	r.AddAction("a", ActionClearField, nil)

	report := r.FormatResults()
	if report.HasErrors || report.ErrorCount != 0 {
		t.Errorf("empty result reported errors: %+v", report)
	}
	if len(report.Actions["a"]) != 1 || report.Actions["a"][0].Action != ActionClearField {
		t.Errorf("actions = %v", report.Actions)
	}
	if report.Details == nil || report.Summary == nil {
		t.Error("report collections should be non-nil")
	}
}

func TestResult_EmptyFieldGoesToSystem(t *testing.T) {
	r := NewResult(true)
	r.AddError("", ValidationError{Message: "boom", Type: KindSystemError})

	report := r.FormatResults()
	if len(report.Details[SystemFieldID]) != 1 {
		t.Errorf("details = %v", report.Details)
	}
	if report.SystemErrorCount() != 1 {
		t.Errorf("SystemErrorCount() = %d", report.SystemErrorCount())
	}
}

func TestSortRulesByPriority(t *testing.T) {
	rules := []Rule{
		{RuleID: "none-1"},
		{RuleID: "low", Priority: "LOW"},
		{RuleID: "high", Priority: "high"},
		{RuleID: "numeric", Priority: 10},
		{RuleID: "medium", Priority: "MEDIUM"},
		{RuleID: "none-2", Priority: "urgent"},
		{RuleID: "high-2", Priority: "HIGH"},
	}

	SortRulesByPriority(rules)

	var got []string
	for _, r := range rules {
		got = append(got, r.RuleID)
	}
	want := []string{"numeric", "high", "high-2", "medium", "low", "none-1", "none-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}
