// Package telemetry wires fieldguard's observability stack from the
// telemetry section of the configuration.
//
//   - logging: slog logger with value redaction
//   - metrics: Prometheus collector, also the engine's MetricsRecorder
//   - tracing: OpenTelemetry tracer, also the engine's SpanStarter
//   - health: liveness and readiness probes
//
// # Usage
//
//	tel, err := telemetry.Setup(&cfg.Telemetry, version)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	eng, err := engine.NewEngine(engCfg, registry, tel.Logger,
//	    engine.WithMetrics(tel.Metrics),
//	    engine.WithTracer(tel.Tracer),
//	)
package telemetry
