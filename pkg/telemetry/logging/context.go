package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RequestIDKey is the context key for HTTP request IDs.
	RequestIDKey contextKey = "request_id"

	// PassIDKey is the context key for validation pass IDs.
	PassIDKey contextKey = "pass_id"

	// RuleSourceKey is the context key for the rule source a pass ran against.
	RuleSourceKey contextKey = "rule_source"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithPassID adds a validation pass ID to the context.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, PassIDKey, passID)
}

// GetPassID retrieves the validation pass ID from the context.
func GetPassID(ctx context.Context) string {
	if v, ok := ctx.Value(PassIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRuleSource adds a rule source name to the context.
func WithRuleSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, RuleSourceKey, source)
}

// GetRuleSource retrieves the rule source name from the context.
func GetRuleSource(ctx context.Context) string {
	if v, ok := ctx.Value(RuleSourceKey).(string); ok {
		return v
	}
	return ""
}

// contextAttrs extracts the known context values as log attributes.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if v := GetRequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), v))
	}
	if v := GetPassID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(PassIDKey), v))
	}
	if v := GetRuleSource(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RuleSourceKey), v))
	}
	return attrs
}

// contextHandler adds context values to records logged with a *Context method.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs := contextAttrs(ctx); len(attrs) > 0 {
		record = record.Clone()
		record.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
