// Package expr compiles CEL expressions into CUSTOM condition functions.
//
// An expression sees two variables: value, the value of the field under
// validation, and fields, every field value of the pass keyed by field ID.
// A true result passes, false fails with the condition's error message, and
// a string result is used as the error message unless it is empty.
//
//	- ruleId: password-confirm
//	  fieldId: confirm
//	  type: CUSTOM
//	  expression: value == fields.password
//	  errorMessage: Passwords do not match.
package expr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

// DefaultCostLimit bounds the evaluation cost of a single expression.
const DefaultCostLimit uint64 = 1_000_000

// DefaultFailureMessage is reported when a false result has no error message to fall back on.
const DefaultFailureMessage = "Custom validation failed."

// ErrCompile indicates an expression that does not compile.
var ErrCompile = errors.New("expression compile error")

// Compiler compiles and caches CEL programs. It is safe for concurrent use
// and satisfies engine.ExpressionCompiler.
type Compiler struct {
	env       *cel.Env
	costLimit uint64
	logger    *slog.Logger

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCostLimit sets the evaluation cost limit.
func WithCostLimit(limit uint64) Option {
	return func(c *Compiler) { c.costLimit = limit }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// NewCompiler creates a compiler with the value and fields variables declared.
func NewCompiler(opts ...Option) (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("fields", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	c := &Compiler{
		env:       env,
		costLimit: DefaultCostLimit,
		logger:    slog.Default(),
		programs:  make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "validation.expr")
	return c, nil
}

// Compile returns a function evaluating the expression. Programs are cached
// by expression source.
func (c *Compiler) Compile(expression string) (engine.CustomFunc, error) {
	prog, err := c.program(expression)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, value any, fields map[string]any) (string, error) {
		if fields == nil {
			fields = map[string]any{}
		}
		out, _, err := prog.ContextEval(ctx, map[string]any{
			"value":  value,
			"fields": fields,
		})
		if err != nil {
			return "", fmt.Errorf("evaluation error: %w", err)
		}

		switch v := out.Value().(type) {
		case bool:
			if v {
				return "", nil
			}
			return DefaultFailureMessage, nil
		case string:
			return v, nil
		default:
			return "", fmt.Errorf("expression must evaluate to bool or string, got %T", v)
		}
	}, nil
}

func (c *Compiler) program(expression string) (cel.Program, error) {
	c.mu.RLock()
	prog, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, issues.Err())
	}

	prog, err := c.env.Program(ast,
		cel.CostLimit(c.costLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: program creation: %v", ErrCompile, err)
	}

	c.mu.Lock()
	c.programs[expression] = prog
	c.mu.Unlock()

	c.logger.Debug("compiled expression", "expression", expression)
	return prog, nil
}

// Len returns the number of cached programs.
func (c *Compiler) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}
