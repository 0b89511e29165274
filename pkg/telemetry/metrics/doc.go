// Package metrics provides Prometheus metrics for fieldguard.
//
// The Collector owns a registry and groups metrics by concern:
//
//   - validation: passes, pass duration, errors by field and type, actions
//   - rules: rule source reloads and the loaded rule count
//   - http: API requests by route and status
//   - reports: archive writes and retention pruning
//
// Field IDs are label values, so the collector caps their cardinality
// (max_field_cardinality, default 500); later fields are counted as "other".
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng, err := engine.NewEngine(engCfg, registry, logger, engine.WithMetrics(collector))
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
