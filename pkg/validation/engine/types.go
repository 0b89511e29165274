package engine

import (
	"context"
	"strings"
)

// ConditionKind identifies the evaluation strategy for a condition.
type ConditionKind string

const (
	KindRequired    ConditionKind = "REQUIRED"
	KindComparison  ConditionKind = "COMPARISON"
	KindDependency  ConditionKind = "DEPENDENCY"
	KindTypeCheck   ConditionKind = "TYPE_CHECK"
	KindLengthCheck ConditionKind = "LENGTH_CHECK"
	KindEmptyCheck  ConditionKind = "EMPTY_CHECK"
	KindRegex       ConditionKind = "REGEX"
	KindCustom      ConditionKind = "CUSTOM"

	// KindSuggestion is accepted in rule data but never produces an error.
	KindSuggestion ConditionKind = "SUGGESTION"

	// KindSystemError marks configuration or processing defects in a report.
	// It is never a valid condition type.
	KindSystemError ConditionKind = "SYSTEM_ERROR"
)

// ConditionKinds lists every kind that may appear on a condition.
var ConditionKinds = []ConditionKind{
	KindRequired,
	KindComparison,
	KindDependency,
	KindTypeCheck,
	KindLengthCheck,
	KindEmptyCheck,
	KindRegex,
	KindCustom,
	KindSuggestion,
}

// IsValid reports whether k is a recognized condition kind.
func (k ConditionKind) IsValid() bool {
	for _, known := range ConditionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Built-in operator names.
const (
	OpEquals             = "EQUALS"
	OpNotEquals          = "NOT_EQUALS"
	OpGreaterThan        = "GREATER_THAN"
	OpLessThan           = "LESS_THAN"
	OpGreaterThanOrEqual = "GREATER_THAN_OR_EQUAL"
	OpLessThanOrEqual    = "LESS_THAN_OR_EQUAL"
	OpContains           = "CONTAINS"
	OpStartsWith         = "STARTS_WITH"
	OpEndsWith           = "ENDS_WITH"
	OpBetween            = "BETWEEN"
	OpBefore             = "BEFORE"
	OpAfter              = "AFTER"
	OpEmpty              = "EMPTY"
	OpNotEmpty           = "NOT_EMPTY"
)

// Built-in type names accepted by TYPE_CHECK conditions.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeArray   = "array"
	TypeObject  = "object"
)

// FieldTypes lists the declared field types a condition or field may carry.
var FieldTypes = []string{"text", "checkbox", "radio", "select", "date", "number", "email"}

// SystemFieldID is the pseudo-field that receives errors not attributable to a field.
const SystemFieldID = "SYSTEM"

// GroupOperator controls how the conditions of a rule combine.
type GroupOperator string

const (
	// GroupNone evaluates every condition independently.
	GroupNone GroupOperator = ""

	// GroupAnd stops at the first failing condition and reports it.
	GroupAnd GroupOperator = "AND"

	// GroupOr reports failures only when no condition passes.
	GroupOr GroupOperator = "OR"
)

// Normalize returns the upper-cased group operator.
func (g GroupOperator) Normalize() GroupOperator {
	return GroupOperator(strings.ToUpper(strings.TrimSpace(string(g))))
}

// FieldValue is a single named value submitted for validation.
type FieldValue struct {
	FieldID   string `json:"fieldId" yaml:"fieldId"`
	FieldName string `json:"fieldName,omitempty" yaml:"fieldName,omitempty"`
	FieldType string `json:"fieldType,omitempty" yaml:"fieldType,omitempty"`
	Value     any    `json:"value" yaml:"value"`
}

// DisplayName returns the label used in generated messages.
func (f FieldValue) DisplayName() string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return f.FieldID
}

// CustomFunc validates a value with access to every field value of the pass.
// A non-empty message is reported as a CUSTOM validation error; a non-nil
// error is reported as a SYSTEM_ERROR. ctx is cancelled when the engine's
// CustomTimeout expires; a function that ignores it keeps its goroutine alive
// after the pass has reported the timeout.
type CustomFunc func(ctx context.Context, value any, fields map[string]any) (string, error)

// Condition is one atomic check applied to a field.
type Condition struct {
	Type     ConditionKind `json:"type" yaml:"type"`
	FieldID  string        `json:"fieldId,omitempty" yaml:"fieldId,omitempty"`
	Operator string        `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any           `json:"value,omitempty" yaml:"value,omitempty"`

	ExpectedType string `json:"expectedType,omitempty" yaml:"expectedType,omitempty"`
	MinLength    *int   `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength    *int   `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`

	DependentFieldID  string `json:"dependentFieldId,omitempty" yaml:"dependentFieldId,omitempty"`
	DependentOperator string `json:"dependentOperator,omitempty" yaml:"dependentOperator,omitempty"`
	DependentValue    any    `json:"dependentValue,omitempty" yaml:"dependentValue,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	Action       string `json:"action,omitempty" yaml:"action,omitempty"`
	ActionValue  any    `json:"actionValue,omitempty" yaml:"actionValue,omitempty"`

	// Function names a validator registered with Registry.AddCustomValidator.
	Function string `json:"function,omitempty" yaml:"function,omitempty"`

	// Expression is a CEL expression evaluated by the engine's ExpressionCompiler.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	FieldType string `json:"fieldType,omitempty" yaml:"fieldType,omitempty"`

	// Func is an injected validator and takes precedence over Function and Expression.
	Func CustomFunc `json:"-" yaml:"-"`
}

// Rule groups one or more conditions, optionally prioritized.
type Rule struct {
	RuleID        string        `json:"ruleId" yaml:"ruleId"`
	RuleName      string        `json:"ruleName,omitempty" yaml:"ruleName,omitempty"`
	FieldID       string        `json:"fieldId,omitempty" yaml:"fieldId,omitempty"`
	Priority      any           `json:"priority,omitempty" yaml:"priority,omitempty"`
	GroupOperator GroupOperator `json:"groupOperator,omitempty" yaml:"groupOperator,omitempty"`
	Conditions    []Condition   `json:"conditions" yaml:"conditions"`
}

// EffectiveConditions returns the rule's conditions with the rule-level
// field ID filled in where a condition omits one.
func (r *Rule) EffectiveConditions() []Condition {
	out := make([]Condition, len(r.Conditions))
	for i, c := range r.Conditions {
		if c.FieldID == "" {
			c.FieldID = r.FieldID
		}
		out[i] = c
	}
	return out
}

// ValidationError describes one failed condition.
type ValidationError struct {
	FieldID     string         `json:"fieldId"`
	Message     string         `json:"message"`
	Type        ConditionKind  `json:"type"`
	RuleID      string         `json:"ruleId,omitempty"`
	FieldType   string         `json:"fieldType,omitempty"`
	Details     map[string]any `json:"details"`
	Action      string         `json:"action,omitempty"`
	ActionValue any            `json:"actionValue,omitempty"`
}

// IsSystem reports whether the error is a configuration or processing defect.
func (e *ValidationError) IsSystem() bool {
	return e.Type == KindSystemError
}

// ActionRecord is a side effect triggered by a failed condition.
type ActionRecord struct {
	Action      string `json:"action"`
	ActionValue any    `json:"actionValue,omitempty"`
}

// SummaryEntry is the flat form of a ValidationError.
type SummaryEntry struct {
	FieldID string        `json:"fieldId"`
	Message string        `json:"message"`
	Type    ConditionKind `json:"type"`
}

// Report is the formatted outcome of one validation pass.
type Report struct {
	HasErrors  bool                         `json:"hasErrors"`
	ErrorCount int                          `json:"errorCount"`
	Details    map[string][]ValidationError `json:"details"`
	Summary    []SummaryEntry               `json:"summary"`
	Actions    map[string][]ActionRecord    `json:"actions"`

	// Fields lists the field IDs of Details in the order their first error was recorded.
	Fields []string `json:"-"`
}

// ErrorsFor returns the errors recorded for a field.
func (r *Report) ErrorsFor(fieldID string) []ValidationError {
	if r == nil {
		return nil
	}
	return r.Details[fieldID]
}

// SystemErrorCount returns the number of SYSTEM_ERROR entries in the report.
func (r *Report) SystemErrorCount() int {
	n := 0
	for _, s := range r.Summary {
		if s.Type == KindSystemError {
			n++
		}
	}
	return n
}
