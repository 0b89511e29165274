package engine

import (
	"fmt"
)

// resolutionStack holds the fields currently being resolved, innermost last.
// It is passed by value; push returns a new stack so callers never observe
// each other's entries, and leaving a call pops implicitly.
type resolutionStack []string

func (s resolutionStack) contains(fieldID string) bool {
	for _, id := range s {
		if id == fieldID {
			return true
		}
	}
	return false
}

func (s resolutionStack) push(fieldID string) resolutionStack {
	out := make(resolutionStack, len(s), len(s)+1)
	copy(out, s)
	return append(out, fieldID)
}

// dependencyGraph maps a field to the reference fields of its DEPENDENCY conditions.
func dependencyGraph(rules []Rule) map[string][]string {
	graph := make(map[string][]string)
	for i := range rules {
		for _, cond := range rules[i].EffectiveConditions() {
			if cond.Type != KindDependency || cond.FieldID == "" || cond.DependentFieldID == "" {
				continue
			}
			graph[cond.FieldID] = append(graph[cond.FieldID], cond.DependentFieldID)
		}
	}
	return graph
}

// resolve walks the dependency chain below fieldID and returns its length.
// ok is false when fieldID is already on the stack. Nested fields that
// re-enter the stack are skipped, not propagated, so only the field being
// re-entered is short-circuited. Resolved heights are kept for the rest of
// the pass, which keeps the walk linear in the size of the graph.
func (p *pass) resolve(fieldID string, stack resolutionStack) (height int, ok bool) {
	if stack.contains(fieldID) {
		return 0, false
	}
	if h, done := p.resolved[fieldID]; done {
		return h, true
	}

	stack = stack.push(fieldID)
	height = 1
	for _, ref := range p.deps[fieldID] {
		if h, ok := p.resolve(ref, stack); ok && h+1 > height {
			height = h + 1
		}
	}
	p.resolved[fieldID] = height
	return height, true
}

// evaluateDependency reports an error when the reference field satisfies the
// dependent comparison and the target field is empty. The condition is
// inapplicable when resolving the reference re-enters the target field, when
// the reference chain is deeper than the configured limit, or when the
// reference field is absent.
func (p *pass) evaluateDependency(field FieldValue, cond *Condition) (*ValidationError, error) {
	ref := cond.DependentFieldID
	stack := resolutionStack{field.FieldID}

	height, ok := p.resolve(ref, stack)
	if !ok || len(stack)+height > p.config.MaxDependencyDepth {
		p.logger.Debug("dependency cannot be resolved, skipping condition",
			"pass_id", p.id,
			"field_id", field.FieldID,
			"dependent_field_id", ref,
			"cycle", !ok,
		)
		return nil, nil
	}

	if !p.fields.HasField(ref) {
		return nil, nil
	}

	active, err := p.registry.Compare(p.fields.GetFieldValue(ref), cond.DependentOperator, cond.DependentValue)
	if err != nil {
		return nil, err
	}
	if !active || !IsEmpty(field.Value) {
		return nil, nil
	}

	message := fmt.Sprintf("%s is required when %s %s %s.",
		field.DisplayName(), ref, cond.DependentOperator, toString(cond.DependentValue))
	return p.newError(field, cond, KindDependency, message, map[string]any{
		"dependentFieldId":  ref,
		"dependentOperator": cond.DependentOperator,
		"dependentValue":    cond.DependentValue,
	}), nil
}
