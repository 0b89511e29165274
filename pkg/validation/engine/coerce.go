package engine

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing date-like strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
}

// floatValuer matches json.Number from both encoding/json and goccy/go-json.
type floatValuer interface {
	Float64() (float64, error)
}

// numberValue returns v as float64 when v is a Go numeric kind.
// Strings and booleans are not numbers here.
func numberValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case floatValuer:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toNumber coerces v for ordered comparisons. Numeric strings parse, the
// empty string is zero and booleans are one or zero. NaN is never a number.
func toNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if f, ok := numberValue(v); ok {
		return f, !math.IsNaN(f)
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// toString renders v the way a form would display it. Sequences are joined
// with commas and nil is the empty string.
func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	}
	if items, ok := toSlice(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = toString(item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

// toSlice returns the elements of a slice or array value. Strings are not sequences.
func toSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// isMap reports whether v is a non-nil mapping.
func isMap(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && !rv.IsNil()
}

// parseDate interprets v as an instant.
func parseDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// strictEqual compares without cross-kind coercion: numbers equal numbers,
// strings equal strings and booleans equal booleans.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := numberValue(a); ok {
		bf, ok := numberValue(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return reflect.DeepEqual(a, b)
}

// typeName returns a short description of v's type for error details.
func typeName(v any) string {
	switch {
	case v == nil:
		return "null"
	case isMap(v):
		return TypeObject
	}
	if _, ok := numberValue(v); ok {
		return TypeNumber
	}
	switch v.(type) {
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeDate
	}
	if _, ok := toSlice(v); ok {
		return TypeArray
	}
	return fmt.Sprintf("%T", v)
}

// mapLen returns the number of entries in a mapping value.
func mapLen(v any) int {
	return reflect.ValueOf(v).Len()
}

// isNilPointer reports whether v is a typed nil pointer or mapping.
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
