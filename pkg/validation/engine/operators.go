package engine

import (
	"strings"
	"time"
)

// OperatorFunc compares a field value against a condition's comparison value.
// Returning an error marks the condition as misconfigured, not failed.
type OperatorFunc func(value, comparisonValue any) (bool, error)

// builtinOperators returns the operator table every registry starts with.
func builtinOperators() map[string]OperatorFunc {
	return map[string]OperatorFunc{
		OpEquals: func(value, expected any) (bool, error) {
			return strictEqual(value, expected), nil
		},
		OpNotEquals: func(value, expected any) (bool, error) {
			return !strictEqual(value, expected), nil
		},
		OpGreaterThan:        orderedOperator(func(a, b float64) bool { return a > b }),
		OpLessThan:           orderedOperator(func(a, b float64) bool { return a < b }),
		OpGreaterThanOrEqual: orderedOperator(func(a, b float64) bool { return a >= b }),
		OpLessThanOrEqual:    orderedOperator(func(a, b float64) bool { return a <= b }),
		OpContains:           stringOperator(strings.Contains),
		OpStartsWith:         stringOperator(strings.HasPrefix),
		OpEndsWith:           stringOperator(strings.HasSuffix),
		OpBetween:            evaluateBetween,
		OpBefore:             dateOperator(time.Time.Before),
		OpAfter:              dateOperator(time.Time.After),
		OpEmpty: func(value, _ any) (bool, error) {
			return IsEmpty(value), nil
		},
		OpNotEmpty: func(value, _ any) (bool, error) {
			return !IsEmpty(value), nil
		},
	}
}

// orderedOperator coerces both operands to numbers. A nil or unparsable
// operand makes the comparison false.
func orderedOperator(cmp func(a, b float64) bool) OperatorFunc {
	return func(value, expected any) (bool, error) {
		a, ok := toNumber(value)
		if !ok {
			return false, nil
		}
		b, ok := toNumber(expected)
		if !ok {
			return false, nil
		}
		return cmp(a, b), nil
	}
}

// stringOperator coerces both operands to strings.
func stringOperator(match func(s, substr string) bool) OperatorFunc {
	return func(value, expected any) (bool, error) {
		if value == nil || expected == nil {
			return false, nil
		}
		return match(toString(value), toString(expected)), nil
	}
}

// dateOperator compares parsed instants.
func dateOperator(cmp func(a, b time.Time) bool) OperatorFunc {
	return func(value, expected any) (bool, error) {
		a, ok := parseDate(value)
		if !ok {
			return false, nil
		}
		b, ok := parseDate(expected)
		if !ok {
			return false, nil
		}
		return cmp(a, b), nil
	}
}

// evaluateBetween checks low <= value <= high.
func evaluateBetween(value, bounds any) (bool, error) {
	items, ok := toSlice(bounds)
	if !ok || len(items) != 2 {
		return false, ErrInvalidBetween
	}
	v, ok := toNumber(value)
	if value == nil || !ok {
		return false, nil
	}
	low, ok := toNumber(items[0])
	if !ok {
		return false, nil
	}
	high, ok := toNumber(items[1])
	if !ok {
		return false, nil
	}
	return v >= low && v <= high, nil
}

// IsEmpty reports whether a value counts as absent: nil, the empty string,
// an empty sequence or an empty mapping. Zero and false are values.
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	if items, ok := toSlice(value); ok {
		return len(items) == 0
	}
	if isMap(value) {
		return mapLen(value) == 0
	}
	return isNilPointer(value)
}
