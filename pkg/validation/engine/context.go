package engine

import (
	"fmt"
	"sort"
)

// Context wraps the field values of one validation pass. Lookups are cached
// for the lifetime of the Context; actions write to the Context only and
// never back to the caller's input.
type Context struct {
	fields map[string]*FieldValue
	order  []string
	cache  map[string]any
}

// NewContext normalizes field input into a Context.
//
// Accepted shapes are []FieldValue, []*FieldValue, map[string]FieldValue,
// map[string]*FieldValue, and the decoded-document forms []any and
// map[string]any. In a map[string]any, a value that is itself a mapping with
// a "value" or "fieldId" key is read as a record; any other value is the raw
// value of the field named by the key.
func NewContext(input any) (*Context, error) {
	c := &Context{
		fields: make(map[string]*FieldValue),
		cache:  make(map[string]any),
	}

	switch in := input.(type) {
	case nil:
		return nil, fmt.Errorf("%w: field values are nil", ErrMalformedInput)
	case *Context:
		return in.Clone(), nil
	case []FieldValue:
		for i := range in {
			if err := c.add(in[i], i); err != nil {
				return nil, err
			}
		}
	case []*FieldValue:
		for i, f := range in {
			if f == nil {
				return nil, fmt.Errorf("%w: entry %d is nil", ErrMalformedInput, i)
			}
			if err := c.add(*f, i); err != nil {
				return nil, err
			}
		}
	case map[string]FieldValue:
		for _, key := range sortedKeys(in) {
			f := in[key]
			if f.FieldID == "" {
				f.FieldID = key
			}
			if err := c.add(f, -1); err != nil {
				return nil, err
			}
		}
	case map[string]*FieldValue:
		for _, key := range sortedKeys(in) {
			if in[key] == nil {
				return nil, fmt.Errorf("%w: field %q is nil", ErrMalformedInput, key)
			}
			f := *in[key]
			if f.FieldID == "" {
				f.FieldID = key
			}
			if err := c.add(f, -1); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		for _, key := range sortedKeys(in) {
			f, err := fieldFromAny(in[key], key)
			if err != nil {
				return nil, err
			}
			if err := c.add(f, -1); err != nil {
				return nil, err
			}
		}
	case []any:
		for i, item := range in {
			f, err := fieldFromAny(item, "")
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			if err := c.add(f, i); err != nil {
				return nil, err
			}
		}
	case []map[string]any:
		for i, item := range in {
			f, err := fieldFromAny(item, "")
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			if err := c.add(f, i); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported input type %T", ErrMalformedInput, input)
	}

	return c, nil
}

// fieldFromAny reads one decoded record. key is the enclosing map key, if any.
func fieldFromAny(item any, key string) (FieldValue, error) {
	switch v := item.(type) {
	case FieldValue:
		if v.FieldID == "" {
			v.FieldID = key
		}
		return v, nil
	case *FieldValue:
		if v == nil {
			return FieldValue{}, fmt.Errorf("%w: field %q is nil", ErrMalformedInput, key)
		}
		f := *v
		if f.FieldID == "" {
			f.FieldID = key
		}
		return f, nil
	case map[string]any:
		_, hasValue := v["value"]
		_, hasID := v["fieldId"]
		if hasValue || hasID {
			return recordFromMap(v, key)
		}
	}

	if key == "" {
		return FieldValue{}, fmt.Errorf("%w: expected a {fieldId, value} record, got %T", ErrMalformedInput, item)
	}
	return FieldValue{FieldID: key, Value: item}, nil
}

func recordFromMap(m map[string]any, key string) (FieldValue, error) {
	f := FieldValue{FieldID: key, Value: m["value"]}
	if raw, ok := m["fieldId"]; ok {
		id, ok := raw.(string)
		if !ok {
			return FieldValue{}, fmt.Errorf("%w: fieldId must be a string, got %T", ErrMalformedInput, raw)
		}
		f.FieldID = id
	}
	if name, ok := m["fieldName"].(string); ok {
		f.FieldName = name
	}
	if typ, ok := m["fieldType"].(string); ok {
		f.FieldType = typ
	}
	return f, nil
}

// add stores a field. index is the position in sequence input, or -1.
func (c *Context) add(f FieldValue, index int) error {
	if f.FieldID == "" {
		if index >= 0 {
			return fmt.Errorf("%w: entry %d has no fieldId", ErrMalformedInput, index)
		}
		return fmt.Errorf("%w: field has no fieldId", ErrMalformedInput)
	}
	if _, exists := c.fields[f.FieldID]; !exists {
		c.order = append(c.order, f.FieldID)
	}
	field := f
	c.fields[f.FieldID] = &field
	return nil
}

// GetFieldValue returns the current value of a field, or nil when absent.
func (c *Context) GetFieldValue(fieldID string) any {
	if v, ok := c.cache[fieldID]; ok {
		return v
	}
	f, ok := c.fields[fieldID]
	if !ok {
		return nil
	}
	c.cache[fieldID] = f.Value
	return f.Value
}

// GetField returns a copy of a field with its current value.
func (c *Context) GetField(fieldID string) (FieldValue, bool) {
	f, ok := c.fields[fieldID]
	if !ok {
		return FieldValue{}, false
	}
	out := *f
	out.Value = c.GetFieldValue(fieldID)
	return out, true
}

// HasField reports whether a field was supplied.
func (c *Context) HasField(fieldID string) bool {
	_, ok := c.fields[fieldID]
	return ok
}

// SetValue overwrites a field's value, adding the field if it is absent.
func (c *Context) SetValue(fieldID string, value any) {
	f, ok := c.fields[fieldID]
	if !ok {
		f = &FieldValue{FieldID: fieldID}
		c.fields[fieldID] = f
		c.order = append(c.order, fieldID)
	}
	f.Value = value
	c.cache[fieldID] = value
}

// ClearValue blanks a field's value.
func (c *Context) ClearValue(fieldID string) {
	c.SetValue(fieldID, "")
}

// FieldIDs returns the field IDs in input order. Map input is ordered by key.
func (c *Context) FieldIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of fields.
func (c *Context) Len() int {
	return len(c.order)
}

// Data returns a snapshot of every current value keyed by field ID.
func (c *Context) Data() map[string]any {
	data := make(map[string]any, len(c.order))
	for _, id := range c.order {
		data[id] = c.GetFieldValue(id)
	}
	return data
}

// ClearCache drops cached lookups.
func (c *Context) ClearCache() {
	c.cache = make(map[string]any)
}

// Clone returns an independent copy with an empty cache.
func (c *Context) Clone() *Context {
	out := &Context{
		fields: make(map[string]*FieldValue, len(c.fields)),
		order:  make([]string, len(c.order)),
		cache:  make(map[string]any),
	}
	copy(out.order, c.order)
	for id, f := range c.fields {
		field := *f
		if v, ok := c.cache[id]; ok {
			field.Value = v
		}
		out.fields[id] = &field
	}
	return out
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
