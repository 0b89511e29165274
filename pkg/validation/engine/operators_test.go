package engine

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestIsEmpty(t *testing.T) {
	var nilMap map[string]any
	var nilSlice []string

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "nil", value: nil, want: true},
		{name: "empty string", value: "", want: true},
		{name: "empty slice", value: []any{}, want: true},
		{name: "nil typed slice", value: nilSlice, want: true},
		{name: "empty map", value: map[string]any{}, want: true},
		{name: "nil typed map", value: nilMap, want: true},
		{name: "zero is a value", value: 0, want: false},
		{name: "zero float is a value", value: 0.0, want: false},
		{name: "false is a value", value: false, want: false},
		{name: "whitespace", value: " ", want: false},
		{name: "non-empty slice", value: []string{"a"}, want: false},
		{name: "non-empty map", value: map[string]any{"k": 1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmpty(tt.value); got != tt.want {
				t.Errorf("IsEmpty(%#v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestRegistryCompare(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name     string
		value    any
		operator string
		expected any
		want     bool
	}{
		{name: "equals same number", value: 5, operator: OpEquals, expected: 5.0, want: true},
		{name: "equals is strict across kinds", value: "5", operator: OpEquals, expected: 5, want: false},
		{name: "equals strings", value: "trigger", operator: OpEquals, expected: "trigger", want: true},
		{name: "equals nil nil", value: nil, operator: OpEquals, expected: nil, want: true},
		{name: "not equals", value: "a", operator: OpNotEquals, expected: "b", want: true},
		{name: "not equals strict", value: true, operator: OpNotEquals, expected: "true", want: true},
		{name: "greater than", value: 20, operator: OpGreaterThan, expected: 18, want: true},
		{name: "greater than numeric string", value: "17", operator: OpGreaterThanOrEqual, expected: 18, want: false},
		{name: "greater than with nil value", value: nil, operator: OpGreaterThan, expected: 0, want: false},
		{name: "less than with nil expected", value: 1, operator: OpLessThan, expected: nil, want: false},
		{name: "less than unparsable", value: "abc", operator: OpLessThan, expected: 5, want: false},
		{name: "empty string is zero", value: "", operator: OpLessThan, expected: 1, want: true},
		{name: "less than or equal", value: 5, operator: OpLessThanOrEqual, expected: "5", want: true},
		{name: "contains", value: "hello world", operator: OpContains, expected: "world", want: true},
		{name: "contains number coerced", value: 12345, operator: OpContains, expected: 234, want: true},
		{name: "contains nil", value: nil, operator: OpContains, expected: "x", want: false},
		{name: "starts with", value: "prefix-body", operator: OpStartsWith, expected: "prefix", want: true},
		{name: "ends with", value: "file.pdf", operator: OpEndsWith, expected: ".pdf", want: true},
		{name: "ends with mismatch", value: "file.pdf", operator: OpEndsWith, expected: ".doc", want: false},
		{name: "between inside", value: 5, operator: OpBetween, expected: []any{3, 7}, want: true},
		{name: "between below", value: 2, operator: OpBetween, expected: []any{3, 7}, want: false},
		{name: "between inclusive", value: 7, operator: OpBetween, expected: []int{3, 7}, want: true},
		{name: "between nil", value: nil, operator: OpBetween, expected: []any{0, 7}, want: false},
		{name: "before", value: "2024-01-01", operator: OpBefore, expected: "2024-06-01", want: true},
		{name: "after", value: "2024-06-01T10:00:00Z", operator: OpAfter, expected: "2024-06-01", want: true},
		{name: "after with time value", value: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), operator: OpAfter, expected: "2024-12-31", want: true},
		{name: "before unparsable", value: "not a date", operator: OpBefore, expected: "2024-06-01", want: false},
		{name: "before far past", value: "1500-01-01", operator: OpBefore, expected: "2000-01-01", want: true},
		{name: "after far future", value: "2300-01-01", operator: OpAfter, expected: "2000-01-01", want: true},
		{name: "far future not before", value: "2300-01-01", operator: OpBefore, expected: "1500-01-01", want: false},
		{name: "empty", value: "", operator: OpEmpty, want: true},
		{name: "not empty zero", value: 0, operator: OpNotEmpty, want: true},
		{name: "lower case operator name", value: 3, operator: "greater_than", expected: 2, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Compare(tt.value, tt.operator, tt.expected)
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare(%#v, %s, %#v) = %v, want %v", tt.value, tt.operator, tt.expected, got, tt.want)
			}
		})
	}
}

func TestRegistryCompare_Errors(t *testing.T) {
	r := NewRegistry()

	t.Run("between requires two values", func(t *testing.T) {
		for _, bounds := range []any{7, []any{1}, []any{1, 2, 3}, nil} {
			_, err := r.Compare(5, OpBetween, bounds)
			if !errors.Is(err, ErrInvalidBetween) {
				t.Errorf("Compare(5, BETWEEN, %#v) error = %v, want ErrInvalidBetween", bounds, err)
			}
		}
		_, err := r.Compare(5, OpBetween, 7)
		if err == nil || err.Error() != "BETWEEN operator requires an array of exactly two values" {
			t.Errorf("unexpected error message: %v", err)
		}
	})

	t.Run("unsupported operator", func(t *testing.T) {
		_, err := r.Compare(1, "ROUGHLY", 2)
		if !errors.Is(err, ErrUnsupportedOperator) {
			t.Fatalf("error = %v, want ErrUnsupportedOperator", err)
		}
		if err.Error() != "Unsupported operator: ROUGHLY" {
			t.Errorf("error message = %q", err.Error())
		}
	})
}

func TestRegistryCustomOperator(t *testing.T) {
	r := NewRegistry()

	includes := func(value, list any) (bool, error) {
		items, ok := list.([]any)
		if !ok {
			return false, nil
		}
		for _, item := range items {
			if item == value {
				return true, nil
			}
		}
		return false, nil
	}

	if err := r.AddCustomOperator("INCLUDES", includes); err != nil {
		t.Fatalf("AddCustomOperator() error = %v", err)
	}

	fruits := []any{"apple", "banana"}
	if ok, err := r.Compare("apple", "INCLUDES", fruits); err != nil || !ok {
		t.Errorf("Compare(apple, INCLUDES) = %v, %v; want true", ok, err)
	}
	if ok, err := r.Compare("grape", "INCLUDES", fruits); err != nil || ok {
		t.Errorf("Compare(grape, INCLUDES) = %v, %v; want false", ok, err)
	}

	err := r.AddCustomOperator("INCLUDES", includes)
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("duplicate registration error = %v, want ErrDuplicateRegistration", err)
	}

	if !r.HasOperator("includes") {
		t.Error("HasOperator(includes) = false, want true")
	}
}

func TestRegistryCustomOperator_ShadowsBuiltin(t *testing.T) {
	r := NewRegistry()

	err := r.AddCustomOperator(OpEquals, func(value, expected any) (bool, error) {
		return toString(value) == toString(expected), nil
	})
	if err != nil {
		t.Fatalf("AddCustomOperator() error = %v", err)
	}

	ok, err := r.Compare("5", OpEquals, 5)
	if err != nil || !ok {
		t.Errorf("custom EQUALS = %v, %v; want true", ok, err)
	}
}

func TestRegistryValidateType(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name         string
		value        any
		expectedType string
		want         bool
	}{
		{name: "string", value: "x", expectedType: TypeString, want: true},
		{name: "number int", value: 17, expectedType: TypeNumber, want: true},
		{name: "number float", value: 1.5, expectedType: TypeNumber, want: true},
		{name: "numeric string is not a number", value: "17", expectedType: TypeNumber, want: false},
		{name: "NaN is not a number", value: math.NaN(), expectedType: TypeNumber, want: false},
		{name: "infinity is not a number", value: math.Inf(1), expectedType: TypeNumber, want: false},
		{name: "boolean", value: false, expectedType: TypeBoolean, want: true},
		{name: "date string", value: "2024-02-29", expectedType: TypeDate, want: true},
		{name: "invalid date", value: "2024-02-30", expectedType: TypeDate, want: false},
		{name: "date number", value: 17, expectedType: TypeDate, want: false},
		{name: "array", value: []any{1}, expectedType: TypeArray, want: true},
		{name: "object", value: map[string]any{}, expectedType: TypeObject, want: true},
		{name: "object rejects array", value: []any{}, expectedType: TypeObject, want: false},
		{name: "object rejects nil", value: nil, expectedType: TypeObject, want: false},
		{name: "case insensitive", value: "x", expectedType: "String", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ValidateType(tt.value, tt.expectedType)
			if err != nil {
				t.Fatalf("ValidateType() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateType(%#v, %s) = %v, want %v", tt.value, tt.expectedType, got, tt.want)
			}
		})
	}
}

func TestRegistryValidateType_Unsupported(t *testing.T) {
	r := NewRegistry()

	_, err := r.ValidateType("x", "uuid")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
	if err.Error() != "Unsupported type: uuid" {
		t.Errorf("error message = %q", err.Error())
	}

	if err := r.AddCustomType("uuid", func(v any) bool {
		s, ok := v.(string)
		return ok && len(s) == 36
	}); err != nil {
		t.Fatalf("AddCustomType() error = %v", err)
	}

	ok, err := r.ValidateType("123e4567-e89b-12d3-a456-426614174000", "uuid")
	if err != nil || !ok {
		t.Errorf("ValidateType(uuid) = %v, %v; want true", ok, err)
	}

	if err := r.AddCustomType("UUID", func(any) bool { return true }); !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("duplicate type error = %v, want ErrDuplicateRegistration", err)
	}
}

func TestRegistryAddCustom_InvalidArguments(t *testing.T) {
	r := NewRegistry()

	if err := r.AddCustomOperator("", func(any, any) (bool, error) { return true, nil }); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("empty operator name error = %v", err)
	}
	if err := r.AddCustomOperator("X", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil operator error = %v", err)
	}
	if err := r.AddCustomType("t", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil type error = %v", err)
	}
	if err := r.AddCustomValidator("", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("empty validator error = %v", err)
	}
}

func TestRegistryOperatorsListing(t *testing.T) {
	r := NewRegistry()
	before := len(r.Operators())

	if err := r.AddCustomOperator("INCLUDES", func(any, any) (bool, error) { return false, nil }); err != nil {
		t.Fatal(err)
	}
	if err := r.AddCustomOperator(OpEquals, func(any, any) (bool, error) { return false, nil }); err != nil {
		t.Fatal(err)
	}

	if got := len(r.Operators()); got != before+1 {
		t.Errorf("len(Operators()) = %d, want %d", got, before+1)
	}
}
