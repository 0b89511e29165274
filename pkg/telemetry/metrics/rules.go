package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/fieldguard/pkg/config"
)

// RuleMetrics tracks rule source reloads.
//
// Metrics:
//   - fieldguard_rule_reloads_total: reloads by status (success, failure)
//   - fieldguard_rules_loaded: rules currently loaded
//   - fieldguard_rule_last_reload_timestamp_seconds: time of the last successful reload
type RuleMetrics struct {
	reloadsTotal *prometheus.CounterVec
	rulesLoaded  prometheus.Gauge
	lastReload   prometheus.Gauge
}

// NewRuleMetrics creates and registers rule metrics.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_reloads_total",
				Help:      "Total number of rule source reloads",
			},
			[]string{"status"},
		),
		rulesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rules_loaded",
			Help:      "Number of rules currently loaded",
		}),
		lastReload: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rule_last_reload_timestamp_seconds",
			Help:      "Unix time of the last successful rule reload",
		}),
	}

	registry.MustRegister(rm.reloadsTotal, rm.rulesLoaded, rm.lastReload)
	return rm
}

// RecordReload records one reload. The loaded gauge only moves on success,
// since a failed reload keeps the previous rules.
func (rm *RuleMetrics) RecordReload(success bool, ruleCount int) {
	if !success {
		rm.reloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	rm.reloadsTotal.WithLabelValues("success").Inc()
	rm.rulesLoaded.Set(float64(ruleCount))
	rm.lastReload.SetToCurrentTime()
}
