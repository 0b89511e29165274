package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/telemetry/logging"
	"mercator-hq/fieldguard/pkg/telemetry/metrics"
	"mercator-hq/fieldguard/pkg/telemetry/tracing"
)

// Telemetry bundles the process logger, metrics collector and tracer.
type Telemetry struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// Setup builds the telemetry stack. Log output goes to w, or stderr when w is nil.
func Setup(cfg *config.TelemetryConfig, version string, w io.Writer) (*Telemetry, error) {
	logCfg := logging.FromConfig(cfg.Logging)
	logCfg.Writer = w
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		Logger:  logger,
		Metrics: metrics.NewCollector(&cfg.Metrics, prometheus.NewRegistry()),
		Tracer:  tracer,
	}, nil
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.Tracer == nil {
		return nil
	}
	return t.Tracer.Shutdown(ctx)
}
