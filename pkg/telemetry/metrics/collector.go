package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/validation/engine"
)

// otherLabel replaces label values past the cardinality limit.
const otherLabel = "other"

// Collector owns the Prometheus registry and every fieldguard metric.
// It implements engine.MetricsRecorder, so it can be handed to the engine
// directly with engine.WithMetrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	validation *ValidationMetrics
	rules      *RuleMetrics
	http       *HTTPMetrics
	reports    *ReportMetrics

	// fields bounds the distinct field_id label values.
	fields *CardinalityLimiter
}

var _ engine.MetricsRecorder = (*Collector)(nil)

// NewCollector creates a collector with the given configuration. A nil
// registry creates a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := *cfg
	if c.Namespace == "" {
		c.Namespace = "fieldguard"
	}
	if len(c.PassDurationBuckets) == 0 {
		// Passes are in-memory; most finish well under a millisecond.
		c.PassDurationBuckets = prometheus.ExponentialBuckets(0.00005, 2, 14)
	}
	if c.MaxFieldCardinality <= 0 {
		c.MaxFieldCardinality = 500
	}

	return &Collector{
		config:     &c,
		registry:   registry,
		validation: NewValidationMetrics(&c, registry),
		rules:      NewRuleMetrics(&c, registry),
		http:       NewHTTPMetrics(&c, registry),
		reports:    NewReportMetrics(&c, registry),
		fields:     NewCardinalityLimiter(c.MaxFieldCardinality),
	}
}

// RecordPass records a completed validation pass.
func (c *Collector) RecordPass(scope string, duration time.Duration, report *engine.Report) {
	if !c.config.Enabled || report == nil {
		return
	}

	outcome := "valid"
	if report.HasErrors {
		outcome = "invalid"
	}
	c.validation.RecordPass(scope, outcome, duration)

	for _, fieldID := range report.Fields {
		label := fieldID
		if !c.fields.Allow(fieldID) {
			label = otherLabel
		}
		for _, verr := range report.Details[fieldID] {
			c.validation.RecordError(label, string(verr.Type))
		}
	}
	for _, actions := range report.Actions {
		for _, a := range actions {
			c.validation.RecordAction(a.Action)
		}
	}
}

// RecordReload records a rule source reload.
func (c *Collector) RecordReload(success bool, ruleCount int) {
	if !c.config.Enabled {
		return
	}
	c.rules.RecordReload(success, ruleCount)
}

// RecordHTTPRequest records a served API request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.http.RecordRequest(method, route, status, duration)
}

// RecordReportStored records the outcome of archiving a pass report.
func (c *Collector) RecordReportStored(success bool) {
	if !c.config.Enabled {
		return
	}
	c.reports.RecordStored(success)
}

// RecordReportsPruned records reports removed by retention.
func (c *Collector) RecordReportsPruned(count int64) {
	if !c.config.Enabled {
		return
	}
	c.reports.RecordPruned(count)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label values.
type CardinalityLimiter struct {
	max     int
	mu      sync.RWMutex
	current map[string]struct{}
}

// NewCardinalityLimiter creates a limiter admitting up to max values.
func NewCardinalityLimiter(max int) *CardinalityLimiter {
	return &CardinalityLimiter{
		max:     max,
		current: make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or fits under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, ok := cl.current[value]
	cl.mu.RUnlock()
	if ok {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if _, ok := cl.current[value]; ok {
		return true
	}
	if len(cl.current) >= cl.max {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
