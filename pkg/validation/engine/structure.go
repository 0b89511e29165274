package engine

import (
	"fmt"
	"strings"
)

// Validate checks that a condition carries the keys its kind requires.
// It does not consult a registry, so unknown operators and types are only
// detected when the condition is evaluated.
func (c *Condition) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidCondition)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: unrecognized type %q", ErrInvalidCondition, c.Type)
	}
	if c.FieldID == "" {
		return fmt.Errorf("%w: %s condition has no fieldId", ErrInvalidCondition, c.Type)
	}
	if c.FieldType != "" && !isFieldType(c.FieldType) {
		return fmt.Errorf("%w: unrecognized fieldType %q", ErrInvalidCondition, c.FieldType)
	}

	switch c.Type {
	case KindComparison:
		if c.Operator == "" {
			return fmt.Errorf("%w: COMPARISON requires operator", ErrInvalidCondition)
		}
		if c.Value == nil && !isEmptinessOperator(c.Operator) {
			return fmt.Errorf("%w: COMPARISON requires value", ErrInvalidCondition)
		}

	case KindDependency:
		if c.DependentFieldID == "" {
			return fmt.Errorf("%w: DEPENDENCY requires dependentFieldId", ErrInvalidCondition)
		}
		if c.DependentOperator == "" {
			return fmt.Errorf("%w: DEPENDENCY requires dependentOperator", ErrInvalidCondition)
		}

	case KindTypeCheck:
		if c.ExpectedType == "" {
			return fmt.Errorf("%w: TYPE_CHECK requires expectedType", ErrInvalidCondition)
		}

	case KindLengthCheck:
		if c.MinLength == nil && c.MaxLength == nil {
			return fmt.Errorf("%w: LENGTH_CHECK requires minLength or maxLength", ErrInvalidCondition)
		}
		if c.MinLength != nil && *c.MinLength < 0 {
			return fmt.Errorf("%w: minLength cannot be negative", ErrInvalidCondition)
		}
		if c.MaxLength != nil && *c.MaxLength < 0 {
			return fmt.Errorf("%w: maxLength cannot be negative", ErrInvalidCondition)
		}
		if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
			return fmt.Errorf("%w: minLength %d exceeds maxLength %d", ErrInvalidCondition, *c.MinLength, *c.MaxLength)
		}

	case KindEmptyCheck:
		if !isEmptinessOperator(c.Operator) {
			return fmt.Errorf("%w: EMPTY_CHECK operator must be EMPTY or NOT_EMPTY, got %q", ErrInvalidCondition, c.Operator)
		}

	case KindRegex:
		pattern, ok := c.Value.(string)
		if !ok || pattern == "" {
			return fmt.Errorf("%w: REGEX requires a string pattern in value", ErrInvalidCondition)
		}

	case KindCustom:
		if c.Func == nil && c.Function == "" && c.Expression == "" {
			return fmt.Errorf("%w: CUSTOM condition on %q", ErrMissingFunction, c.FieldID)
		}
	}

	if c.Action != "" && !IsKnownAction(c.Action) {
		return fmt.Errorf("%w: unrecognized action %q", ErrInvalidCondition, c.Action)
	}

	return nil
}

// Validate checks rule-level structure. Condition structure is checked per
// condition during a pass so that one bad condition does not hide the rest.
func (r *Rule) Validate() error {
	if len(r.Conditions) == 0 {
		return fmt.Errorf("%w: rule %q has no conditions", ErrInvalidCondition, r.RuleID)
	}
	switch r.GroupOperator.Normalize() {
	case GroupNone, GroupAnd, GroupOr:
	default:
		return fmt.Errorf("%w: rule %q has unrecognized groupOperator %q", ErrInvalidCondition, r.RuleID, r.GroupOperator)
	}
	return nil
}

func isEmptinessOperator(op string) bool {
	switch operatorKey(op) {
	case OpEmpty, OpNotEmpty:
		return true
	}
	return false
}

func isFieldType(t string) bool {
	for _, known := range FieldTypes {
		if strings.EqualFold(t, known) {
			return true
		}
	}
	return false
}
