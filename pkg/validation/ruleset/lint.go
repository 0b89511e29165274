package ruleset

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

var (
	priorityNames = []string{"HIGH", "MEDIUM", "LOW"}
	groupNames    = []string{string(engine.GroupAnd), string(engine.GroupOr)}
	actionNames   = []string{engine.ActionClearField, engine.ActionUpdateValue}
)

// Linter checks parsed rules against a registry without evaluating them.
// It reports the problems a pass would turn into SYSTEM_ERROR entries, plus
// dependency cycles that tie several fields to each other.
type Linter struct {
	registry *engine.Registry
	compiler engine.ExpressionCompiler
}

// NewLinter creates a linter. A nil registry uses engine.DefaultRegistry().
func NewLinter(registry *engine.Registry) *Linter {
	if registry == nil {
		registry = engine.DefaultRegistry()
	}
	return &Linter{registry: registry}
}

// WithCompiler enables compile checks for CUSTOM expressions.
func (l *Linter) WithCompiler(compiler engine.ExpressionCompiler) *Linter {
	l.compiler = compiler
	return l
}

// Lint checks every rule of the document.
func (l *Linter) Lint(doc *Document) *ErrorList {
	list := NewErrorList()

	if len(doc.Rules) == 0 {
		list.Add(&Error{
			Type:     ErrorTypeStructural,
			Severity: SeverityWarning,
			Message:  "document declares no rules",
			Location: Location{File: doc.Source},
		})
		return list
	}

	seen := make(map[string]int, len(doc.Rules))
	for i := range doc.Rules {
		rule := &doc.Rules[i]
		loc := doc.Location(i)

		if first, dup := seen[rule.RuleID]; dup {
			list.Add(&Error{
				Type:     ErrorTypeReference,
				Message:  fmt.Sprintf("duplicate ruleId %q (first declared as rule %d)", rule.RuleID, first+1),
				RuleID:   rule.RuleID,
				Location: loc,
			})
		} else {
			seen[rule.RuleID] = i
		}

		l.lintRule(list, rule, loc)
	}

	l.lintCycles(list, doc)
	return list
}

// LintRules checks rules that did not come from a document.
func (l *Linter) LintRules(rules []engine.Rule) *ErrorList {
	return l.Lint(&Document{Rules: rules})
}

func (l *Linter) lintRule(list *ErrorList, rule *engine.Rule, loc Location) {
	if err := rule.Validate(); err != nil {
		e := &Error{
			Type:     ErrorTypeStructural,
			Message:  err.Error(),
			RuleID:   rule.RuleID,
			Location: loc,
		}
		if len(rule.Conditions) > 0 {
			e.Suggestion = suggest(string(rule.GroupOperator), groupNames)
		} else {
			e.Suggestion = "Add a conditions list, or put type and fieldId on the rule itself"
		}
		list.Add(e)
		if len(rule.Conditions) == 0 {
			return
		}
	}

	if s, ok := rule.Priority.(string); ok && engine.GetRulePriority(rule) == engine.PriorityNone {
		if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			list.Add(&Error{
				Type:       ErrorTypeSemantic,
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("unrecognized priority %q is treated as no priority", s),
				RuleID:     rule.RuleID,
				Location:   loc,
				Suggestion: suggest(s, priorityNames),
			})
		}
	}

	for i, cond := range rule.EffectiveConditions() {
		for _, e := range l.lintCondition(&cond) {
			e.RuleID = rule.RuleID
			e.Location = loc
			e.Message = fmt.Sprintf("condition %d: %s", i+1, e.Message)
			list.Add(e)
		}
	}
}

func (l *Linter) lintCondition(cond *engine.Condition) []*Error {
	if err := cond.Validate(); err != nil {
		e := &Error{Type: ErrorTypeStructural, Message: err.Error()}
		switch {
		case !cond.Type.IsValid():
			kinds := make([]string, 0, len(engine.ConditionKinds))
			for _, k := range engine.ConditionKinds {
				kinds = append(kinds, string(k))
			}
			e.Suggestion = suggest(string(cond.Type), kinds)
		case cond.Action != "" && !engine.IsKnownAction(cond.Action):
			e.Type = ErrorTypeSemantic
			e.Suggestion = suggest(cond.Action, actionNames)
		case errors.Is(err, engine.ErrMissingFunction):
			e.Suggestion = "Set function to a registered validator name or expression to a CEL expression"
		}
		return []*Error{e}
	}

	var out []*Error

	switch cond.Type {
	case engine.KindComparison, engine.KindEmptyCheck:
		if e := l.checkOperator(cond.Operator); e != nil {
			out = append(out, e)
		} else if strings.EqualFold(cond.Operator, engine.OpBetween) && !isPair(cond.Value) {
			out = append(out, &Error{
				Type:       ErrorTypeSemantic,
				Message:    engine.ErrInvalidBetween.Error(),
				Suggestion: "Use value: [min, max]",
			})
		}

	case engine.KindDependency:
		if e := l.checkOperator(cond.DependentOperator); e != nil {
			out = append(out, e)
		}
		if cond.DependentFieldID == cond.FieldID {
			out = append(out, &Error{
				Type:     ErrorTypeReference,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("field %q depends on itself and will never report an error", cond.FieldID),
			})
		}

	case engine.KindTypeCheck:
		if !l.registry.HasType(cond.ExpectedType) {
			out = append(out, &Error{
				Type:       ErrorTypeSemantic,
				Message:    (&engine.UnsupportedTypeError{Type: cond.ExpectedType}).Error(),
				Suggestion: suggest(cond.ExpectedType, l.registry.Types()),
			})
		}

	case engine.KindRegex:
		pattern, _ := cond.Value.(string)
		if _, err := regexp.Compile(pattern); err != nil {
			out = append(out, &Error{
				Type:    ErrorTypeSemantic,
				Message: fmt.Sprintf("invalid pattern %q: %v", pattern, err),
			})
		}

	case engine.KindCustom:
		switch {
		case cond.Func != nil:
		case cond.Function != "":
			if _, ok := l.registry.Validator(cond.Function); !ok {
				out = append(out, &Error{
					Type:    ErrorTypeSemantic,
					Message: fmt.Sprintf("custom validation function %q is not registered", cond.Function),
				})
			}
		case l.compiler != nil:
			if _, err := l.compiler.Compile(cond.Expression); err != nil {
				out = append(out, &Error{
					Type:    ErrorTypeSemantic,
					Message: fmt.Sprintf("expression does not compile: %v", err),
				})
			}
		}
	}

	return out
}

func (l *Linter) checkOperator(op string) *Error {
	if l.registry.HasOperator(op) {
		return nil
	}
	return &Error{
		Type:       ErrorTypeSemantic,
		Message:    (&engine.UnsupportedOperatorError{Operator: op}).Error(),
		Suggestion: suggest(op, l.registry.Operators()),
	}
}

// lintCycles warns about dependency chains that return to their start.
// Every condition on such a chain is still evaluated, so filling one field
// can make all the others required.
func (l *Linter) lintCycles(list *ErrorList, doc *Document) {
	graph := make(map[string][]string)
	owner := make(map[string]int)
	for i := range doc.Rules {
		for _, cond := range doc.Rules[i].EffectiveConditions() {
			if cond.Type != engine.KindDependency || cond.FieldID == "" || cond.DependentFieldID == "" ||
				cond.FieldID == cond.DependentFieldID {
				continue
			}
			graph[cond.FieldID] = append(graph[cond.FieldID], cond.DependentFieldID)
			if _, ok := owner[cond.FieldID]; !ok {
				owner[cond.FieldID] = i
			}
		}
	}

	reported := make(map[string]bool)
	for _, start := range sortedFields(graph) {
		cycle := findCycle(graph, start, []string{start})
		if cycle == nil {
			continue
		}
		key := canonicalCycle(cycle)
		if reported[key] {
			continue
		}
		reported[key] = true

		idx := owner[start]
		list.Add(&Error{
			Type:       ErrorTypeReference,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("dependency cycle %s; fields on this chain require each other", strings.Join(cycle, " -> ")),
			RuleID:     doc.Rules[idx].RuleID,
			Location:   doc.Location(idx),
			Suggestion: "Remove one of the DEPENDENCY conditions unless the fields must be filled together",
		})
	}
}

// findCycle returns the path from path[0] back to itself, or nil.
func findCycle(graph map[string][]string, current string, path []string) []string {
	for _, next := range graph[current] {
		if next == path[0] {
			return append(append([]string(nil), path...), next)
		}
		if contains(path, next) {
			continue
		}
		if cycle := findCycle(graph, next, append(path, next)); cycle != nil {
			return cycle
		}
	}
	return nil
}

// canonicalCycle names a cycle independently of where it was entered.
func canonicalCycle(cycle []string) string {
	nodes := append([]string(nil), cycle[:len(cycle)-1]...)
	minIdx := 0
	for i, n := range nodes {
		if n < nodes[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]string, 0, len(nodes))
	rotated = append(rotated, nodes[minIdx:]...)
	rotated = append(rotated, nodes[:minIdx]...)
	return strings.Join(rotated, "\x00")
}

func sortedFields(graph map[string][]string) []string {
	keys := make([]string, 0, len(graph))
	for k := range graph {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isPair(v any) bool {
	switch b := v.(type) {
	case []any:
		return len(b) == 2
	case []int:
		return len(b) == 2
	case []float64:
		return len(b) == 2
	case []string:
		return len(b) == 2
	}
	return false
}
