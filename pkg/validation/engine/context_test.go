package engine

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewContext_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		wantID []string
		check  string
		want   any
	}{
		{
			name:   "slice of records",
			input:  []FieldValue{{FieldID: "b", Value: 2}, {FieldID: "a", Value: 1}},
			wantID: []string{"b", "a"},
			check:  "a",
			want:   1,
		},
		{
			name:   "slice of pointers",
			input:  []*FieldValue{{FieldID: "name", Value: "Ada"}},
			wantID: []string{"name"},
			check:  "name",
			want:   "Ada",
		},
		{
			name: "map keyed by field id",
			input: map[string]FieldValue{
				"age":  {FieldID: "age", Value: 16},
				"name": {Value: "Ada"},
			},
			wantID: []string{"age", "name"},
			check:  "name",
			want:   "Ada",
		},
		{
			name: "decoded map of records",
			input: map[string]any{
				"age": map[string]any{"fieldId": "age", "value": 16},
			},
			wantID: []string{"age"},
			check:  "age",
			want:   16,
		},
		{
			name: "decoded map of raw values",
			input: map[string]any{
				"tags":    []any{"a", "b"},
				"address": map[string]any{"city": "Oslo"},
			},
			wantID: []string{"address", "tags"},
			check:  "address",
			want:   map[string]any{"city": "Oslo"},
		},
		{
			name: "decoded sequence",
			input: []any{
				map[string]any{"fieldId": "email", "value": "a@b.c"},
			},
			wantID: []string{"email"},
			check:  "email",
			want:   "a@b.c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContext(tt.input)
			if err != nil {
				t.Fatalf("NewContext() error = %v", err)
			}
			if got := c.FieldIDs(); !reflect.DeepEqual(got, tt.wantID) {
				t.Errorf("FieldIDs() = %v, want %v", got, tt.wantID)
			}
			if got := c.GetFieldValue(tt.check); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetFieldValue(%q) = %#v, want %#v", tt.check, got, tt.want)
			}
		})
	}
}

func TestNewContext_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{name: "nil", input: nil},
		{name: "string", input: "age=16"},
		{name: "number", input: 42},
		{name: "sequence of scalars", input: []any{1, 2}},
		{name: "record without id", input: []FieldValue{{Value: 1}}},
		{name: "nil pointer entry", input: []*FieldValue{nil}},
		{name: "non-string field id", input: []any{map[string]any{"fieldId": 7, "value": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewContext(tt.input)
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("NewContext() error = %v, want ErrMalformedInput", err)
			}
		})
	}
}

func TestContext_Lookups(t *testing.T) {
	c, err := NewContext([]FieldValue{{FieldID: "name", FieldName: "Full name", Value: "Ada"}})
	if err != nil {
		t.Fatal(err)
	}

	if v := c.GetFieldValue("missing"); v != nil {
		t.Errorf("GetFieldValue(missing) = %v, want nil", v)
	}
	if _, ok := c.GetField("missing"); ok {
		t.Error("GetField(missing) ok = true")
	}

	f, ok := c.GetField("name")
	if !ok || f.DisplayName() != "Full name" {
		t.Errorf("GetField(name) = %+v, %v", f, ok)
	}

	c.ClearValue("name")
	if v := c.GetFieldValue("name"); v != "" {
		t.Errorf("after ClearValue, value = %#v", v)
	}

	c.SetValue("created", 1)
	if !c.HasField("created") || c.Len() != 2 {
		t.Errorf("SetValue did not add field: %v", c.FieldIDs())
	}

	data := c.Data()
	if data["created"] != 1 || data["name"] != "" {
		t.Errorf("Data() = %v", data)
	}
}

func TestContext_DoesNotWriteBackToInput(t *testing.T) {
	input := []FieldValue{{FieldID: "name", Value: "Ada"}}
	c, err := NewContext(input)
	if err != nil {
		t.Fatal(err)
	}

	c.SetValue("name", "Grace")
	if input[0].Value != "Ada" {
		t.Errorf("input mutated: %v", input[0].Value)
	}

	clone := c.Clone()
	clone.SetValue("name", "Linus")
	if c.GetFieldValue("name") != "Grace" {
		t.Errorf("clone shares state with original")
	}
}
