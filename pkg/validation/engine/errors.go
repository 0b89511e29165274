package engine

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrInvalidCondition indicates a condition is missing keys required by its kind
	// or carries values that can never be evaluated.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrMalformedInput indicates field values that are not a sequence or mapping
	// of {fieldId, value} records.
	ErrMalformedInput = errors.New("malformed field values")

	// ErrNoRules indicates a pass was started without any rules.
	ErrNoRules = errors.New("no validation rules supplied")

	// ErrNoRulesLoaded indicates the engine has no rule source or an empty one.
	ErrNoRulesLoaded = errors.New("no rules loaded")

	// ErrUnsupportedOperator matches UnsupportedOperatorError.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnsupportedType matches UnsupportedTypeError.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidBetween indicates a BETWEEN comparison value that is not a two-element sequence.
	ErrInvalidBetween = errors.New("BETWEEN operator requires an array of exactly two values")

	// ErrDuplicateRegistration indicates a custom operator, type or validator name is taken.
	ErrDuplicateRegistration = errors.New("already registered")

	// ErrMissingFunction indicates a CUSTOM condition without a resolvable function.
	ErrMissingFunction = errors.New("custom validation function not found")

	// ErrContextCancelled indicates the validation context was cancelled mid-pass.
	ErrContextCancelled = errors.New("validation context cancelled")
)

// UnsupportedOperatorError is returned when an operator is neither built in nor registered.
type UnsupportedOperatorError struct {
	Operator string
}

// Error returns the error message.
func (e *UnsupportedOperatorError) Error() string {
	return "Unsupported operator: " + e.Operator
}

// Is matches ErrUnsupportedOperator.
func (e *UnsupportedOperatorError) Is(target error) bool {
	return target == ErrUnsupportedOperator
}

// UnsupportedTypeError is returned when a TYPE_CHECK names an unknown type.
type UnsupportedTypeError struct {
	Type string
}

// Error returns the error message.
func (e *UnsupportedTypeError) Error() string {
	return "Unsupported type: " + e.Type
}

// Is matches ErrUnsupportedType.
func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// ConditionError wraps a failure to evaluate a single condition.
type ConditionError struct {
	RuleID  string
	FieldID string
	Kind    ConditionKind
	Cause   error
}

// Error returns the error message.
func (e *ConditionError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("%s condition on field %q: %v", e.Kind, e.FieldID, e.Cause)
	}
	return fmt.Sprintf("rule %s: %s condition on field %q: %v", e.RuleID, e.Kind, e.FieldID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ConditionError) Unwrap() error {
	return e.Cause
}

// ActionError indicates an action could not be applied to the field context.
type ActionError struct {
	FieldID string
	Action  string
	Cause   error
}

// Error returns the error message.
func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s on field %q failed: %v", e.Action, e.FieldID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ActionError) Unwrap() error {
	return e.Cause
}

// CustomFuncError wraps an error returned by a CUSTOM validator.
type CustomFuncError struct {
	Name  string
	Cause error
}

// Error returns the error message.
func (e *CustomFuncError) Error() string {
	return fmt.Sprintf("Custom validation error: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CustomFuncError) Unwrap() error {
	return e.Cause
}

// ReloadError indicates a rule reload failure.
type ReloadError struct {
	Source string
	Cause  error
}

// Error returns the error message.
func (e *ReloadError) Error() string {
	return fmt.Sprintf("rule reload failed for %q: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ReloadError) Unwrap() error {
	return e.Cause
}
