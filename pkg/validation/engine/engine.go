package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Validator is the main interface for field validation.
type Validator interface {
	// Validate runs every rule against the field values.
	Validate(ctx context.Context, fields any, rules []Rule) (*Report, error)

	// ValidateField runs only the conditions targeting fieldID and the
	// DEPENDENCY conditions that reference it, with value replacing that
	// field's value for the pass.
	ValidateField(ctx context.Context, fields any, rules []Rule, fieldID string, value any) (*Report, error)
}

// RuleSource provides rules to a long-lived engine.
type RuleSource interface {
	// LoadRules loads all rules from the source.
	LoadRules(ctx context.Context) ([]Rule, error)

	// Watch sends an event whenever the rules may have changed.
	// The channel is closed when the context is cancelled.
	Watch(ctx context.Context) (<-chan RuleEvent, error)
}

// RuleEvent represents a change in a rule source.
type RuleEvent struct {
	// Type is the event type.
	Type RuleEventType

	// Path is the file or revision that changed.
	Path string

	// Error is any error that occurred while detecting the change.
	Error error
}

// RuleEventType represents the type of rule source event.
type RuleEventType string

const (
	RuleEventCreated  RuleEventType = "created"
	RuleEventModified RuleEventType = "modified"
	RuleEventDeleted  RuleEventType = "deleted"
)

// ExpressionCompiler turns the expression of a CUSTOM condition into a function.
type ExpressionCompiler interface {
	Compile(expression string) (CustomFunc, error)
}

// SpanStarter starts tracing spans. Both trace.Tracer and the telemetry
// tracing wrapper satisfy it.
type SpanStarter interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// MetricsRecorder receives pass and reload measurements.
type MetricsRecorder interface {
	RecordPass(scope string, duration time.Duration, report *Report)
	RecordReload(success bool, ruleCount int)
}

// Engine evaluates rules against field values. Rules are either supplied per
// call or loaded from a RuleSource and hot-reloaded.
type Engine struct {
	// rules contains the rules loaded from the source
	rules []Rule

	// rulesMu protects rules for concurrent access
	rulesMu sync.RWMutex

	config   *EngineConfig
	registry *Registry
	executor ActionExecutor
	compiler ExpressionCompiler
	tracer   SpanStarter
	metrics  MetricsRecorder
	notifier Notifier
	source   RuleSource
	logger   *slog.Logger

	stopWatch context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithRuleSource loads rules from source at construction and on every source event.
func WithRuleSource(source RuleSource) Option {
	return func(e *Engine) { e.source = source }
}

// WithExecutor replaces the default action executor.
func WithExecutor(executor ActionExecutor) Option {
	return func(e *Engine) { e.executor = executor }
}

// WithExpressionCompiler enables CUSTOM conditions that carry an expression.
func WithExpressionCompiler(compiler ExpressionCompiler) Option {
	return func(e *Engine) { e.compiler = compiler }
}

// WithTracer sets the tracer for pass and rule spans.
func WithTracer(tracer SpanStarter) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithNotifier sets the receiver of events emitted after each full pass.
func WithNotifier(notifier Notifier) Option {
	return func(e *Engine) { e.notifier = notifier }
}

// NewEngine creates a validation engine. A nil config or registry is
// replaced by the defaults; a nil logger uses slog.Default().
func NewEngine(config *EngineConfig, registry *Registry, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:   config,
		registry: registry,
		logger:   logger.With("component", "validation.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.executor == nil {
		e.executor = NewDefaultExecutor(e.logger)
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("fieldguard")
	}

	if e.source != nil {
		if err := e.ReloadRules(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to load initial rules: %w", err)
		}
		e.startWatching()
	}

	return e, nil
}

// Registry returns the engine's operator registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Validate runs a full pass. Malformed field values or an empty rule list
// produce a report with a SYSTEM error rather than an error return; the
// error return is reserved for cancellation, in which case the partial
// report is returned alongside it.
func (e *Engine) Validate(ctx context.Context, fields any, rules []Rule) (*Report, error) {
	return e.run(ctx, fields, rules, "", nil)
}

// ValidateField runs a partial pass over the conditions targeting fieldID and
// the DEPENDENCY conditions that reference it. No event is emitted for
// partial passes.
func (e *Engine) ValidateField(ctx context.Context, fields any, rules []Rule, fieldID string, value any) (*Report, error) {
	if fieldID == "" {
		result := NewResult(false)
		result.AddError(SystemFieldID, systemEntry(fmt.Errorf("%w: field ID is required", ErrMalformedInput)))
		return result.FormatResults(), nil
	}
	return e.run(ctx, fields, rules, fieldID, value)
}

// ValidateLoaded runs a full pass with the rules loaded from the source.
func (e *Engine) ValidateLoaded(ctx context.Context, fields any) (*Report, error) {
	return e.Validate(ctx, fields, e.Rules())
}

// ValidateFieldLoaded runs a partial pass with the rules loaded from the source.
func (e *Engine) ValidateFieldLoaded(ctx context.Context, fields any, fieldID string, value any) (*Report, error) {
	return e.ValidateField(ctx, fields, e.Rules(), fieldID, value)
}

// run executes one pass.
func (e *Engine) run(ctx context.Context, fields any, rules []Rule, scope string, value any) (*Report, error) {
	start := time.Now()
	passID := uuid.NewString()

	ctx, span := e.tracer.Start(ctx, "validation.pass", trace.WithAttributes(
		attribute.String("pass.id", passID),
		attribute.String("pass.scope", scope),
		attribute.Int("pass.rules", len(rules)),
	))
	defer span.End()

	result := NewResult(e.config.Deduplicate)
	var runErr error

	fieldCtx, err := NewContext(fields)
	switch {
	case err != nil:
		result.AddError(SystemFieldID, systemEntry(err))
	case len(rules) == 0:
		result.AddError(SystemFieldID, systemEntry(ErrNoRules))
	case len(rules) > e.config.MaxRules:
		result.AddError(SystemFieldID, systemEntry(fmt.Errorf("%w: %d rules exceed the limit of %d",
			ErrInvalidConfig, len(rules), e.config.MaxRules)))
	default:
		if scope != "" {
			fieldCtx.SetValue(scope, value)
		}

		ordered := make([]Rule, len(rules))
		copy(ordered, rules)
		if e.config.SortByPriority {
			SortRulesByPriority(ordered)
		}

		p := e.newPass(ctx, passID, fieldCtx, ordered, result, scope)
		for i := range ordered {
			if cerr := ctx.Err(); cerr != nil {
				runErr = fmt.Errorf("%w: %v", ErrContextCancelled, cerr)
				break
			}
			p.processRule(&ordered[i])
		}
	}

	report := result.FormatResults()
	duration := time.Since(start)

	span.SetAttributes(
		attribute.Int("report.errors", report.ErrorCount),
		attribute.Bool("report.has_errors", report.HasErrors),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	e.logger.Debug("validation pass completed",
		"pass_id", passID,
		"scope", scope,
		"rule_count", len(rules),
		"error_count", report.ErrorCount,
		"duration", duration,
	)

	if e.metrics != nil {
		label := "full"
		if scope != "" {
			label = "field"
		}
		e.metrics.RecordPass(label, duration, report)
	}

	if scope == "" && runErr == nil {
		e.emit(ctx, passID, report)
	}

	return report, runErr
}

func (e *Engine) newPass(ctx context.Context, passID string, fields *Context, rules []Rule, result *Result, scope string) *pass {
	return &pass{
		ctx:      ctx,
		id:       passID,
		registry: e.registry,
		config:   e.config,
		executor: e.executor,
		compiler: e.compiler,
		tracer:   e.tracer,
		logger:   e.logger,
		fields:   fields,
		result:   result,
		deps:     dependencyGraph(rules),
		resolved: make(map[string]int),
		patterns: make(map[string]*regexp.Regexp),
		scope:    scope,
	}
}

// emit delivers the pass event. Delivery failures are logged only.
func (e *Engine) emit(ctx context.Context, passID string, report *Report) {
	if e.notifier == nil {
		return
	}
	event := NewEvent(passID, report)
	if err := e.notifier.Notify(ctx, event); err != nil {
		e.logger.Warn("failed to deliver validation event",
			"event_id", event.ID,
			"event", event.Event,
			"error", err,
		)
	}
}

// Compare applies an operator directly. Configuration problems are returned as errors.
func (e *Engine) Compare(value any, operator string, comparisonValue any) (bool, error) {
	return e.registry.Compare(value, operator, comparisonValue)
}

// ValidateType checks a value against a type directly. Unknown types are returned as errors.
func (e *Engine) ValidateType(value any, expectedType string) (bool, error) {
	return e.registry.ValidateType(value, expectedType)
}

// EvaluateCondition evaluates a single condition. Unlike Validate, structural
// and evaluation problems are returned as a *ConditionError.
func (e *Engine) EvaluateCondition(ctx context.Context, cond Condition, fields any) (verr *ValidationError, err error) {
	if fields == nil {
		fields = map[string]any{}
	}
	fieldCtx, err := NewContext(fields)
	if err != nil {
		return nil, err
	}
	if err := cond.Validate(); err != nil {
		return nil, &ConditionError{FieldID: cond.FieldID, Kind: cond.Type, Cause: err}
	}

	defer func() {
		if r := recover(); r != nil {
			verr = nil
			err = &ConditionError{FieldID: cond.FieldID, Kind: cond.Type, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	rules := []Rule{{Conditions: []Condition{cond}}}
	p := e.newPass(ctx, uuid.NewString(), fieldCtx, rules, NewResult(false), "")

	field, ok := fieldCtx.GetField(cond.FieldID)
	if !ok {
		field = FieldValue{FieldID: cond.FieldID}
	}
	verr, err = evaluators[cond.Type](p, field, &cond)
	if err != nil {
		return nil, &ConditionError{FieldID: cond.FieldID, Kind: cond.Type, Cause: err}
	}
	return verr, nil
}

// Rules returns a copy of the loaded rules.
func (e *Engine) Rules() []Rule {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()

	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	return rules
}

// ReloadRules reloads rules from the source and swaps them in atomically.
func (e *Engine) ReloadRules(ctx context.Context) error {
	if e.source == nil {
		return ErrNoRulesLoaded
	}

	e.logger.Info("reloading rules")

	rules, err := e.source.LoadRules(ctx)
	if err != nil {
		e.recordReload(false, 0)
		return &ReloadError{Source: "source", Cause: err}
	}
	if len(rules) > e.config.MaxRules {
		e.recordReload(false, len(rules))
		return &ReloadError{
			Source: "source",
			Cause:  fmt.Errorf("%w: %d rules exceed the limit of %d", ErrInvalidConfig, len(rules), e.config.MaxRules),
		}
	}

	invalid := 0
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			invalid++
			e.logger.Warn("loaded rule is invalid and will report a SYSTEM_ERROR",
				"rule_id", rules[i].RuleID,
				"error", err,
			)
		}
	}

	e.rulesMu.Lock()
	e.rules = rules
	e.rulesMu.Unlock()

	e.recordReload(true, len(rules))
	e.logger.Info("rules reloaded successfully",
		"rule_count", len(rules),
		"invalid_rule_count", invalid,
	)
	return nil
}

func (e *Engine) recordReload(success bool, count int) {
	if e.metrics != nil {
		e.metrics.RecordReload(success, count)
	}
}

// startWatching reloads rules whenever the source reports a change.
func (e *Engine) startWatching() {
	ctx, cancel := context.WithCancel(context.Background())
	e.stopWatch = cancel

	eventCh, err := e.source.Watch(ctx)
	if err != nil {
		e.logger.Error("failed to start rule watcher", "error", err)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-eventCh:
				if !ok {
					return
				}
				e.handleRuleEvent(ctx, event)
			}
		}
	}()
}

// handleRuleEvent handles a rule source change event.
func (e *Engine) handleRuleEvent(ctx context.Context, event RuleEvent) {
	if event.Error != nil {
		e.logger.Error("rule watcher error", "error", event.Error, "path", event.Path)
		return
	}

	e.logger.Info("rule source changed",
		"type", event.Type,
		"path", event.Path,
	)

	if err := e.ReloadRules(ctx); err != nil {
		e.logger.Error("failed to reload rules after source change",
			"error", err,
			"path", event.Path,
		)
	}
}

// Close stops watching the rule source.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.stopWatch != nil {
			e.stopWatch()
		}
		e.wg.Wait()
	})
	return nil
}

// systemEntry builds a SYSTEM_ERROR for problems outside any rule.
func systemEntry(err error) ValidationError {
	return ValidationError{
		FieldID: SystemFieldID,
		Message: err.Error(),
		Type:    KindSystemError,
		Details: map[string]any{
			"error": err.Error(),
		},
	}
}
