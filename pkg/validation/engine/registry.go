package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// TypePredicate reports whether a value belongs to a named type.
type TypePredicate func(value any) bool

// Registry holds the operator and type tables used by a validation engine.
// Custom entries are consulted before built-ins, so a custom operator may
// shadow a built-in of the same name.
//
// A Registry is safe for concurrent use; registration normally happens at
// startup before any pass runs.
type Registry struct {
	mu sync.RWMutex

	operators       map[string]OperatorFunc
	types           map[string]TypePredicate
	customOperators map[string]OperatorFunc
	customTypes     map[string]TypePredicate
	validators      map[string]CustomFunc
}

// NewRegistry creates a registry seeded with the built-in operators and types.
func NewRegistry() *Registry {
	return &Registry{
		operators:       builtinOperators(),
		types:           builtinTypes(),
		customOperators: make(map[string]OperatorFunc),
		customTypes:     make(map[string]TypePredicate),
		validators:      make(map[string]CustomFunc),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns a process-wide registry for callers that do not
// manage their own. Engines never use it implicitly.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// operatorKey normalizes an operator name.
func operatorKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// typeKey normalizes a type name.
func typeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddCustomOperator registers an operator. Registering the same name twice is an error.
func (r *Registry) AddCustomOperator(name string, fn OperatorFunc) error {
	key := operatorKey(name)
	if key == "" {
		return fmt.Errorf("%w: operator name cannot be empty", ErrInvalidConfig)
	}
	if fn == nil {
		return fmt.Errorf("%w: operator %q has no function", ErrInvalidConfig, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.customOperators[key]; exists {
		return fmt.Errorf("custom operator %q: %w", key, ErrDuplicateRegistration)
	}
	r.customOperators[key] = fn
	return nil
}

// AddCustomType registers a type predicate. Registering the same name twice is an error.
func (r *Registry) AddCustomType(name string, predicate TypePredicate) error {
	key := typeKey(name)
	if key == "" {
		return fmt.Errorf("%w: type name cannot be empty", ErrInvalidConfig)
	}
	if predicate == nil {
		return fmt.Errorf("%w: type %q has no predicate", ErrInvalidConfig, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.customTypes[key]; exists {
		return fmt.Errorf("custom type %q: %w", key, ErrDuplicateRegistration)
	}
	r.customTypes[key] = predicate
	return nil
}

// AddCustomValidator registers a named function for CUSTOM conditions.
func (r *Registry) AddCustomValidator(name string, fn CustomFunc) error {
	key := strings.TrimSpace(name)
	if key == "" {
		return fmt.Errorf("%w: validator name cannot be empty", ErrInvalidConfig)
	}
	if fn == nil {
		return fmt.Errorf("%w: validator %q has no function", ErrInvalidConfig, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.validators[key]; exists {
		return fmt.Errorf("custom validator %q: %w", key, ErrDuplicateRegistration)
	}
	r.validators[key] = fn
	return nil
}

// Validator returns the custom validator registered under name.
func (r *Registry) Validator(name string) (CustomFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[strings.TrimSpace(name)]
	return fn, ok
}

// operator resolves an operator, custom entries first.
func (r *Registry) operator(name string) (OperatorFunc, bool) {
	key := operatorKey(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.customOperators[key]; ok {
		return fn, true
	}
	fn, ok := r.operators[key]
	return fn, ok
}

// typePredicate resolves a type, custom entries first.
func (r *Registry) typePredicate(name string) (TypePredicate, bool) {
	key := typeKey(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.customTypes[key]; ok {
		return fn, true
	}
	fn, ok := r.types[key]
	return fn, ok
}

// HasOperator reports whether an operator is known.
func (r *Registry) HasOperator(name string) bool {
	_, ok := r.operator(name)
	return ok
}

// HasType reports whether a type is known.
func (r *Registry) HasType(name string) bool {
	_, ok := r.typePredicate(name)
	return ok
}

// Operators returns the sorted names of all known operators.
func (r *Registry) Operators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return mergedKeys(r.operators, r.customOperators)
}

// Types returns the sorted names of all known types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return mergedKeys(r.types, r.customTypes)
}

// Compare applies operator to value and comparisonValue.
// Unknown operators return an UnsupportedOperatorError.
func (r *Registry) Compare(value any, operator string, comparisonValue any) (bool, error) {
	fn, ok := r.operator(operator)
	if !ok {
		return false, &UnsupportedOperatorError{Operator: operator}
	}
	return fn(value, comparisonValue)
}

// ValidateType reports whether value satisfies expectedType.
// Unknown types return an UnsupportedTypeError.
func (r *Registry) ValidateType(value any, expectedType string) (bool, error) {
	fn, ok := r.typePredicate(expectedType)
	if !ok {
		return false, &UnsupportedTypeError{Type: expectedType}
	}
	return fn(value), nil
}

// builtinTypes returns the type table every registry starts with.
func builtinTypes() map[string]TypePredicate {
	return map[string]TypePredicate{
		TypeString: func(v any) bool {
			_, ok := v.(string)
			return ok
		},
		TypeNumber: func(v any) bool {
			f, ok := numberValue(v)
			return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
		},
		TypeBoolean: func(v any) bool {
			_, ok := v.(bool)
			return ok
		},
		TypeDate: func(v any) bool {
			switch v.(type) {
			case string, time.Time, *time.Time:
				_, ok := parseDate(v)
				return ok
			}
			return false
		},
		TypeArray: func(v any) bool {
			_, ok := toSlice(v)
			return ok
		},
		TypeObject: isMap,
	}
}

func mergedKeys[T any](builtin, custom map[string]T) []string {
	seen := make(map[string]struct{}, len(builtin)+len(custom))
	names := make([]string, 0, len(builtin)+len(custom))
	for _, m := range []map[string]T{builtin, custom} {
		for name := range m {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
