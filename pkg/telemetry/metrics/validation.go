package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/fieldguard/pkg/config"
)

// ValidationMetrics tracks validation passes.
//
// Metrics:
//   - fieldguard_validation_passes_total: passes by scope (full, field) and outcome
//   - fieldguard_validation_pass_duration_seconds: pass duration by scope
//   - fieldguard_validation_errors_total: reported errors by field and condition type
//   - fieldguard_validation_actions_total: recorded actions by action name
type ValidationMetrics struct {
	passesTotal  *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	errorsTotal  *prometheus.CounterVec
	actionsTotal *prometheus.CounterVec
}

// NewValidationMetrics creates and registers validation metrics.
func NewValidationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ValidationMetrics {
	vm := &ValidationMetrics{
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validation_passes_total",
				Help:      "Total number of validation passes",
			},
			[]string{"scope", "outcome"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validation_pass_duration_seconds",
				Help:      "Duration of validation passes in seconds",
				Buckets:   cfg.PassDurationBuckets,
			},
			[]string{"scope"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validation_errors_total",
				Help:      "Total number of validation errors reported",
			},
			[]string{"field_id", "type"},
		),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validation_actions_total",
				Help:      "Total number of condition actions recorded",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(vm.passesTotal, vm.passDuration, vm.errorsTotal, vm.actionsTotal)
	return vm
}

// RecordPass records one pass.
func (vm *ValidationMetrics) RecordPass(scope, outcome string, duration time.Duration) {
	vm.passesTotal.WithLabelValues(scope, outcome).Inc()
	vm.passDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// RecordError records one reported error.
func (vm *ValidationMetrics) RecordError(fieldID, errType string) {
	vm.errorsTotal.WithLabelValues(fieldID, errType).Inc()
}

// RecordAction records one action.
func (vm *ValidationMetrics) RecordAction(action string) {
	vm.actionsTotal.WithLabelValues(action).Inc()
}
