package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// pass holds the state of one validation call. Nothing in a pass outlives it.
type pass struct {
	ctx      context.Context
	id       string
	registry *Registry
	config   *EngineConfig
	executor ActionExecutor
	compiler ExpressionCompiler
	tracer   SpanStarter
	logger   *slog.Logger

	fields   *Context
	result   *Result
	deps     map[string][]string
	resolved map[string]int
	patterns map[string]*regexp.Regexp

	// scope restricts the pass to conditions on one field when non-empty.
	scope string
}

// inScope reports whether cond takes part in this pass. A DEPENDENCY
// condition also applies when the scoped field is the one it looks up.
func (p *pass) inScope(cond *Condition) bool {
	if p.scope == "" || cond.FieldID == p.scope {
		return true
	}
	return cond.Type == KindDependency && cond.DependentFieldID == p.scope
}

// ruleInScope reports whether any condition of the rule applies to the scoped field.
func (p *pass) ruleInScope(rule *Rule) bool {
	if p.scope == "" || rule.FieldID == p.scope {
		return true
	}
	conditions := rule.EffectiveConditions()
	for i := range conditions {
		if p.inScope(&conditions[i]) {
			return true
		}
	}
	return false
}

// processRule evaluates one rule and records its errors and actions.
func (p *pass) processRule(rule *Rule) {
	if !p.ruleInScope(rule) {
		return
	}

	_, span := p.tracer.Start(p.ctx, "validation.rule", trace.WithAttributes(
		attribute.String("rule.id", rule.RuleID),
		attribute.Int("rule.conditions", len(rule.Conditions)),
	))
	defer span.End()

	if err := rule.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		p.record(rule, nil, p.systemError(rule, nil, rule.FieldID, err))
		return
	}
	if len(rule.Conditions) > p.config.MaxConditionsPerRule {
		err := fmt.Errorf("%w: rule %q has %d conditions (max: %d)",
			ErrInvalidCondition, rule.RuleID, len(rule.Conditions), p.config.MaxConditionsPerRule)
		span.SetStatus(codes.Error, err.Error())
		p.record(rule, nil, p.systemError(rule, nil, rule.FieldID, err))
		return
	}

	conditions := rule.EffectiveConditions()
	applicable := make([]*Condition, 0, len(conditions))
	for i := range conditions {
		if p.inScope(&conditions[i]) {
			applicable = append(applicable, &conditions[i])
		}
	}

	// SYSTEM_ERROR entries are recorded whatever the group decides; only
	// real validation failures take part in AND and OR.
	switch rule.GroupOperator.Normalize() {
	case GroupAnd:
		for _, cond := range applicable {
			verr := p.evaluate(rule, cond)
			if verr == nil {
				continue
			}
			p.record(rule, cond, verr)
			if !verr.IsSystem() {
				return
			}
		}

	case GroupOr:
		type failure struct {
			cond *Condition
			verr *ValidationError
		}
		var failures []failure
		passed := false
		for _, cond := range applicable {
			verr := p.evaluate(rule, cond)
			switch {
			case verr == nil:
				passed = true
			case verr.IsSystem():
				p.record(rule, cond, verr)
			default:
				failures = append(failures, failure{cond: cond, verr: verr})
			}
		}
		if passed {
			return
		}
		for _, f := range failures {
			p.record(rule, f.cond, f.verr)
		}

	default:
		for _, cond := range applicable {
			if verr := p.evaluate(rule, cond); verr != nil {
				p.record(rule, cond, verr)
			}
		}
	}
}

// evaluate runs one condition. Structural problems, evaluator errors and
// evaluator panics all come back as SYSTEM_ERROR entries.
func (p *pass) evaluate(rule *Rule, cond *Condition) (verr *ValidationError) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("condition evaluation panicked",
				"pass_id", p.id,
				"rule_id", rule.RuleID,
				"field_id", cond.FieldID,
				"panic", r,
			)
			verr = p.systemError(rule, cond, cond.FieldID, fmt.Errorf("panic: %v", r))
			verr.Message = fmt.Sprintf("Validation failed: %v", r)
		}
	}()

	if err := cond.Validate(); err != nil {
		return p.systemError(rule, cond, cond.FieldID, err)
	}

	field, ok := p.fields.GetField(cond.FieldID)
	if !ok {
		field = FieldValue{FieldID: cond.FieldID}
	}

	verr, err := evaluators[cond.Type](p, field, cond)
	if err != nil {
		return p.systemError(rule, cond, cond.FieldID, err)
	}
	return verr
}

// record adds an error to the result and then runs the condition's action.
// Actions run only for newly recorded validation failures.
func (p *pass) record(rule *Rule, cond *Condition, verr *ValidationError) {
	verr.RuleID = rule.RuleID
	if !p.result.AddError(verr.FieldID, *verr) {
		return
	}
	if verr.IsSystem() || cond == nil || cond.Action == "" {
		return
	}

	result, err := p.executor.Execute(p.ctx, verr.FieldID, cond.Action, cond.ActionValue, p.fields)
	if err == nil && result != nil && !result.Success {
		err = result.Error
	}
	if err != nil {
		p.result.AddError(verr.FieldID, *p.systemError(rule, cond, verr.FieldID, err))
		return
	}
	p.result.AddAction(verr.FieldID, result.ActionType, cond.ActionValue)
}

// systemError converts a processing failure into a SYSTEM_ERROR entry.
func (p *pass) systemError(rule *Rule, cond *Condition, fieldID string, err error) *ValidationError {
	if fieldID == "" {
		fieldID = SystemFieldID
	}

	details := map[string]any{
		"error": err.Error(),
	}
	if rule != nil {
		details["ruleId"] = rule.RuleID
	}
	if cond != nil {
		details["conditionType"] = string(cond.Type)
	}

	p.logger.Warn("condition could not be evaluated",
		"pass_id", p.id,
		"field_id", fieldID,
		"details", details,
	)

	return &ValidationError{
		FieldID: fieldID,
		Message: err.Error(),
		Type:    KindSystemError,
		Details: details,
	}
}
