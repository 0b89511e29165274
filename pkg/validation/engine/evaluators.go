package engine

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// evaluatorFunc checks one condition against one field. A nil error with a
// nil ValidationError means the condition passed; a non-nil error means the
// condition could not be evaluated and is reported as a SYSTEM_ERROR.
type evaluatorFunc func(p *pass, field FieldValue, cond *Condition) (*ValidationError, error)

var evaluators = map[ConditionKind]evaluatorFunc{
	KindRequired:    (*pass).evaluateRequired,
	KindComparison:  (*pass).evaluateComparison,
	KindDependency:  (*pass).evaluateDependency,
	KindTypeCheck:   (*pass).evaluateTypeCheck,
	KindLengthCheck: (*pass).evaluateLength,
	KindEmptyCheck:  (*pass).evaluateEmptyCheck,
	KindRegex:       (*pass).evaluateRegex,
	KindCustom:      (*pass).evaluateCustom,
	KindSuggestion:  (*pass).evaluateSuggestion,
}

// newError builds a validation error, preferring the condition's own message.
func (p *pass) newError(field FieldValue, cond *Condition, kind ConditionKind, fallback string, details map[string]any) *ValidationError {
	message := cond.ErrorMessage
	if message == "" {
		message = fallback
	}
	fieldType := cond.FieldType
	if fieldType == "" {
		fieldType = field.FieldType
	}
	return &ValidationError{
		FieldID:     field.FieldID,
		Message:     message,
		Type:        kind,
		FieldType:   fieldType,
		Details:     details,
		Action:      cond.Action,
		ActionValue: cond.ActionValue,
	}
}

func (p *pass) evaluateRequired(field FieldValue, cond *Condition) (*ValidationError, error) {
	if !IsEmpty(field.Value) {
		return nil, nil
	}
	return p.newError(field, cond, KindRequired, fmt.Sprintf("%s is required.", field.DisplayName()), nil), nil
}

func (p *pass) evaluateComparison(field FieldValue, cond *Condition) (*ValidationError, error) {
	ok, err := p.compareAny(field.Value, cond.Operator, cond.Value)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	return p.newError(field, cond, KindComparison, fmt.Sprintf("%s comparison failed.", field.DisplayName()), map[string]any{
		"operator":      cond.Operator,
		"expectedValue": cond.Value,
	}), nil
}

// compareAny compares a multi-valued field element by element and passes when
// any element passes. Emptiness operators always see the whole value.
func (p *pass) compareAny(value any, operator string, expected any) (bool, error) {
	items, isSeq := toSlice(value)
	if !isSeq || isEmptinessOperator(operator) {
		return p.registry.Compare(value, operator, expected)
	}
	if len(items) == 0 {
		return p.registry.Compare(nil, operator, expected)
	}
	for _, item := range items {
		ok, err := p.registry.Compare(item, operator, expected)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p *pass) evaluateTypeCheck(field FieldValue, cond *Condition) (*ValidationError, error) {
	ok, err := p.checkType(field.Value, cond.ExpectedType)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	return p.newError(field, cond, KindTypeCheck, fmt.Sprintf("%s must be a %s.", field.DisplayName(), cond.ExpectedType), map[string]any{
		"expectedType": cond.ExpectedType,
		"actualType":   typeName(field.Value),
	}), nil
}

// checkType requires every element of a multi-valued field to satisfy the
// type, unless the type itself describes a container.
func (p *pass) checkType(value any, expectedType string) (bool, error) {
	items, isSeq := toSlice(value)
	switch typeKey(expectedType) {
	case TypeArray, TypeObject:
		isSeq = false
	}
	if !isSeq {
		return p.registry.ValidateType(value, expectedType)
	}
	if !p.registry.HasType(expectedType) {
		return false, &UnsupportedTypeError{Type: expectedType}
	}
	for _, item := range items {
		ok, err := p.registry.ValidateType(item, expectedType)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (p *pass) evaluateLength(field FieldValue, cond *Condition) (*ValidationError, error) {
	length := utf8.RuneCountInString(toString(field.Value))

	minLen := 0
	if cond.MinLength != nil {
		minLen = *cond.MinLength
	}
	if length >= minLen && (cond.MaxLength == nil || length <= *cond.MaxLength) {
		return nil, nil
	}

	var maxLen any
	var message string
	switch {
	case cond.MaxLength == nil:
		message = fmt.Sprintf("%s length must be at least %d.", field.DisplayName(), minLen)
	case cond.MinLength == nil:
		maxLen = *cond.MaxLength
		message = fmt.Sprintf("%s length must be at most %d.", field.DisplayName(), *cond.MaxLength)
	default:
		maxLen = *cond.MaxLength
		message = fmt.Sprintf("%s length must be between %d and %d.", field.DisplayName(), minLen, *cond.MaxLength)
	}

	return p.newError(field, cond, KindLengthCheck, message, map[string]any{
		"currentLength": length,
		"minLength":     minLen,
		"maxLength":     maxLen,
	}), nil
}

func (p *pass) evaluateEmptyCheck(field FieldValue, cond *Condition) (*ValidationError, error) {
	empty := IsEmpty(field.Value)

	switch operatorKey(cond.Operator) {
	case OpEmpty:
		if empty {
			return nil, nil
		}
		return p.newError(field, cond, KindEmptyCheck, fmt.Sprintf("%s must be empty.", field.DisplayName()), nil), nil
	case OpNotEmpty:
		if !empty {
			return nil, nil
		}
		return p.newError(field, cond, KindEmptyCheck, fmt.Sprintf("%s cannot be empty.", field.DisplayName()), nil), nil
	default:
		return nil, fmt.Errorf("%w: EMPTY_CHECK operator must be EMPTY or NOT_EMPTY, got %q", ErrInvalidCondition, cond.Operator)
	}
}

func (p *pass) evaluateRegex(field FieldValue, cond *Condition) (*ValidationError, error) {
	pattern, _ := cond.Value.(string)
	re, err := p.pattern(pattern)
	if err != nil {
		return nil, err
	}
	if re.MatchString(toString(field.Value)) {
		return nil, nil
	}
	return p.newError(field, cond, KindRegex, fmt.Sprintf("%s format is invalid.", field.DisplayName()), map[string]any{
		"pattern": pattern,
	}), nil
}

// pattern compiles a regular expression once per pass.
func (p *pass) pattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := p.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %v", ErrInvalidCondition, pattern, err)
	}
	p.patterns[pattern] = re
	return re, nil
}

func (p *pass) evaluateCustom(field FieldValue, cond *Condition) (*ValidationError, error) {
	fn, name, err := p.customFunc(cond)
	if err != nil {
		return nil, err
	}
	message, err := p.callCustom(fn, name, field.Value)
	if err != nil {
		return nil, err
	}
	if message == "" {
		return nil, nil
	}
	return p.newError(field, cond, KindCustom, message, map[string]any{
		"function": name,
		"message":  message,
	}), nil
}

// customFunc resolves the function of a CUSTOM condition: an injected
// function first, then a registered validator, then an expression.
func (p *pass) customFunc(cond *Condition) (CustomFunc, string, error) {
	switch {
	case cond.Func != nil:
		return cond.Func, "func", nil

	case cond.Function != "":
		fn, ok := p.registry.Validator(cond.Function)
		if !ok {
			return nil, cond.Function, fmt.Errorf("%w: %q", ErrMissingFunction, cond.Function)
		}
		return fn, cond.Function, nil

	case cond.Expression != "":
		if p.compiler == nil {
			return nil, "expression", fmt.Errorf("%w: no expression compiler configured", ErrMissingFunction)
		}
		fn, err := p.compiler.Compile(cond.Expression)
		if err != nil {
			return nil, "expression", fmt.Errorf("%w: %v", ErrInvalidCondition, err)
		}
		return fn, "expression", nil

	default:
		return nil, "", ErrMissingFunction
	}
}

// callCustom runs a custom function under the configured timeout. Panics and
// returned errors become CustomFuncError. On timeout the pass moves on but the
// function's goroutine keeps running until the function returns, so functions
// must stop when ctx is done.
func (p *pass) callCustom(fn CustomFunc, name string, value any) (string, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.config.CustomTimeout)
	defer cancel()

	type outcome struct {
		message string
		err     error
	}
	done := make(chan outcome, 1)
	data := p.fields.Data()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		message, err := fn(ctx, value, data)
		done <- outcome{message: message, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", &CustomFuncError{Name: name, Cause: out.err}
		}
		return out.message, nil
	case <-ctx.Done():
		return "", &CustomFuncError{
			Name:  name,
			Cause: fmt.Errorf("timed out after %v: %w", p.config.CustomTimeout, ctx.Err()),
		}
	}
}

func (p *pass) evaluateSuggestion(FieldValue, *Condition) (*ValidationError, error) {
	return nil, nil
}
