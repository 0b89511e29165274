package ruleset

import (
	"bytes"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ParseFields decodes a field document: a list of {fieldId, value} records
// or a mapping keyed by field ID. The result is accepted by engine.NewContext.
func ParseFields(data []byte, source string) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}

	var fields any
	switch DetectFormat(source, trimmed) {
	case FormatJSON:
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, &Error{
				Type:     ErrorTypeSyntax,
				Severity: SeverityError,
				Message:  fmt.Sprintf("JSON parsing failed: %v", err),
				Location: jsonErrorLocation(trimmed, err, source),
			}
		}
	default:
		if err := yaml.Unmarshal(trimmed, &fields); err != nil {
			return nil, &Error{
				Type:     ErrorTypeSyntax,
				Severity: SeverityError,
				Message:  fmt.Sprintf("YAML parsing failed: %v", err),
				Location: Location{File: source},
			}
		}
	}

	switch fields.(type) {
	case map[string]any, []any:
		return fields, nil
	default:
		return nil, &Error{
			Type:       ErrorTypeStructural,
			Severity:   SeverityError,
			Message:    fmt.Sprintf("field document must be a list or a mapping, got %T", fields),
			Location:   Location{File: source},
			Suggestion: "Use a list of {fieldId, value} records or a mapping keyed by field ID",
		}
	}
}

// ParseFieldsFile reads and decodes the field document at path.
func ParseFieldsFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Failed to read file: %v", err),
			Location: Location{File: path},
		}
	}
	return ParseFields(data, path)
}
