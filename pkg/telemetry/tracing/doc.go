// Package tracing provides OpenTelemetry tracing for fieldguard.
//
// A Tracer satisfies engine.SpanStarter. With tracing enabled the engine
// opens a "validation.pass" span per pass and a "validation.rule" child
// span per rule; the HTTP API adds a server span per request and continues
// traces from a W3C traceparent header.
//
// Spans are exported over OTLP gRPC. When tracing is disabled the tracer
// is a noop.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
package tracing
