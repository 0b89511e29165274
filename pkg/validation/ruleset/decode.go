package ruleset

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

// Format is the encoding of a rule or field document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DetectFormat picks the document format from the file extension, falling
// back to sniffing the first non-blank byte.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return FormatJSON
	}
	return FormatYAML
}

// documentSpec is the on-disk shape of a rule document.
type documentSpec struct {
	Version     string     `json:"version" yaml:"version"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Rules       []ruleSpec `json:"rules" yaml:"rules"`
}

// ruleSpec is a rule as written. Besides the regular keys it accepts
// condition keys inline, which makes it a flat single-condition rule.
type ruleSpec struct {
	RuleID        string               `json:"ruleId" yaml:"ruleId"`
	RuleName      string               `json:"ruleName" yaml:"ruleName"`
	FieldID       string               `json:"fieldId" yaml:"fieldId"`
	Priority      any                  `json:"priority" yaml:"priority"`
	GroupOperator engine.GroupOperator `json:"groupOperator" yaml:"groupOperator"`
	Conditions    []engine.Condition   `json:"conditions" yaml:"conditions"`

	Type              engine.ConditionKind `json:"type" yaml:"type"`
	Operator          string               `json:"operator" yaml:"operator"`
	Value             any                  `json:"value" yaml:"value"`
	ExpectedType      string               `json:"expectedType" yaml:"expectedType"`
	MinLength         *int                 `json:"minLength" yaml:"minLength"`
	MaxLength         *int                 `json:"maxLength" yaml:"maxLength"`
	DependentFieldID  string               `json:"dependentFieldId" yaml:"dependentFieldId"`
	DependentOperator string               `json:"dependentOperator" yaml:"dependentOperator"`
	DependentValue    any                  `json:"dependentValue" yaml:"dependentValue"`
	ErrorMessage      string               `json:"errorMessage" yaml:"errorMessage"`
	Action            string               `json:"action" yaml:"action"`
	ActionValue       any                  `json:"actionValue" yaml:"actionValue"`
	Function          string               `json:"function" yaml:"function"`
	Expression        string               `json:"expression" yaml:"expression"`
	FieldType         string               `json:"fieldType" yaml:"fieldType"`
}

// inline reports whether the rule carries condition keys of its own.
func (s *ruleSpec) inline() bool {
	return s.Type != "" || s.Operator != "" || s.ExpectedType != "" ||
		s.MinLength != nil || s.MaxLength != nil || s.DependentFieldID != "" ||
		s.Function != "" || s.Expression != ""
}

// toRule converts a rule as written into an engine rule. index is used to
// name rules that carry no ruleId.
func (s *ruleSpec) toRule(index int) engine.Rule {
	id := s.RuleID
	if id == "" {
		id = fmt.Sprintf("rule-%d", index+1)
	}

	rule := engine.Rule{
		RuleID:        id,
		RuleName:      s.RuleName,
		FieldID:       s.FieldID,
		Priority:      s.Priority,
		GroupOperator: s.GroupOperator,
		Conditions:    s.Conditions,
	}

	if len(rule.Conditions) == 0 && s.inline() {
		kind := s.Type
		if kind == "" && s.Operator != "" {
			kind = engine.KindComparison
		}
		rule.Conditions = []engine.Condition{{
			Type:              kind,
			FieldID:           s.FieldID,
			Operator:          s.Operator,
			Value:             s.Value,
			ExpectedType:      s.ExpectedType,
			MinLength:         s.MinLength,
			MaxLength:         s.MaxLength,
			DependentFieldID:  s.DependentFieldID,
			DependentOperator: s.DependentOperator,
			DependentValue:    s.DependentValue,
			ErrorMessage:      s.ErrorMessage,
			Action:            s.Action,
			ActionValue:       s.ActionValue,
			Function:          s.Function,
			Expression:        s.Expression,
			FieldType:         s.FieldType,
		}}
	}

	return rule
}

// decodeYAML decodes a YAML rule document and records the position of each rule.
func decodeYAML(data []byte, source string) (*documentSpec, []Location, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return &documentSpec{}, nil, nil
	}

	node := root.Content[0]
	var doc documentSpec
	var rulesNode *yaml.Node

	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&doc.Rules); err != nil {
			return nil, nil, err
		}
		rulesNode = node
	case yaml.MappingNode:
		if err := node.Decode(&doc); err != nil {
			return nil, nil, err
		}
		rulesNode = mappingValue(node, "rules")
	default:
		return nil, nil, fmt.Errorf("expected a mapping with rules or a list of rules, got %s", nodeKind(node))
	}

	var locations []Location
	if rulesNode != nil && rulesNode.Kind == yaml.SequenceNode {
		for _, item := range rulesNode.Content {
			locations = append(locations, Location{File: source, Line: item.Line, Column: item.Column})
		}
	}
	return &doc, locations, nil
}

// decodeJSON decodes a JSON rule document. JSON documents carry no rule positions.
func decodeJSON(data []byte) (*documentSpec, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &documentSpec{}, nil
	}

	var doc documentSpec
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Rules); err != nil {
			return nil, err
		}
		return &doc, nil
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// jsonErrorLocation converts the byte offset of a JSON syntax error into a line and column.
func jsonErrorLocation(data []byte, err error, source string) Location {
	loc := Location{File: source}
	syntaxErr, ok := err.(*json.SyntaxError)
	if !ok || syntaxErr.Offset <= 0 {
		return loc
	}

	offset := int(syntaxErr.Offset)
	if offset > len(data) {
		offset = len(data)
	}
	loc.Line = 1 + bytes.Count(data[:offset], []byte("\n"))
	loc.Column = offset - bytes.LastIndexByte(data[:offset], '\n')
	return loc
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.AliasNode:
		return "an alias"
	default:
		return "an unknown node"
	}
}
