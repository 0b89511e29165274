package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/fieldguard/pkg/config"
)

// ReportMetrics tracks the report archive.
//
// Metrics:
//   - fieldguard_reports_stored_total: archive writes by status
//   - fieldguard_reports_pruned_total: reports removed by retention
type ReportMetrics struct {
	storedTotal *prometheus.CounterVec
	prunedTotal prometheus.Counter
}

// NewReportMetrics creates and registers report archive metrics.
func NewReportMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ReportMetrics {
	rm := &ReportMetrics{
		storedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reports_stored_total",
				Help:      "Total number of pass reports written to the archive",
			},
			[]string{"status"},
		),
		prunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reports_pruned_total",
			Help:      "Total number of reports removed by retention",
		}),
	}

	registry.MustRegister(rm.storedTotal, rm.prunedTotal)
	return rm
}

// RecordStored records one archive write.
func (rm *ReportMetrics) RecordStored(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	rm.storedTotal.WithLabelValues(status).Inc()
}

// RecordPruned records reports removed in one retention run.
func (rm *ReportMetrics) RecordPruned(count int64) {
	if count > 0 {
		rm.prunedTotal.Add(float64(count))
	}
}
