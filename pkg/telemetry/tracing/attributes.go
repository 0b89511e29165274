package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

// Attribute keys for spans created outside the engine.
const (
	AttrRuleSource  = "rules.source"
	AttrRuleCount   = "rules.count"
	AttrFieldCount  = "fields.count"
	AttrReportID    = "report.id"
	AttrErrorCount  = "report.errors"
	AttrHasErrors   = "report.has_errors"
	AttrErrorFields = "report.error_fields"
)

// SetReportAttributes records the outcome of a pass on span.
func SetReportAttributes(span trace.Span, report *engine.Report) {
	if report == nil {
		return
	}
	span.SetAttributes(
		attribute.Int(AttrErrorCount, report.ErrorCount),
		attribute.Bool(AttrHasErrors, report.HasErrors),
		attribute.StringSlice(AttrErrorFields, report.Fields),
	)
}

// SetInputAttributes records the size of a pass request on span.
func SetInputAttributes(span trace.Span, source string, ruleCount, fieldCount int) {
	span.SetAttributes(
		attribute.String(AttrRuleSource, source),
		attribute.Int(AttrRuleCount, ruleCount),
		attribute.Int(AttrFieldCount, fieldCount),
	)
}
