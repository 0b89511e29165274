package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/validation/engine"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:             true,
		Namespace:           "test",
		MaxFieldCardinality: 2,
	}
}

func failingReport() *engine.Report {
	return &engine.Report{
		HasErrors:  true,
		ErrorCount: 3,
		Details: map[string][]engine.ValidationError{
			"age":   {{FieldID: "age", Type: engine.KindComparison}},
			"email": {{FieldID: "email", Type: engine.KindRequired}, {FieldID: "email", Type: engine.KindRegex}},
		},
		Actions: map[string][]engine.ActionRecord{
			"email": {{Action: "CLEAR_FORMFIELD"}},
		},
		Fields: []string{"age", "email"},
	}
}

func TestCollector_RecordPass(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordPass("full", 2*time.Millisecond, failingReport())
	c.RecordPass("full", time.Millisecond, &engine.Report{})
	c.RecordPass("field", time.Millisecond, &engine.Report{})

	if got := testutil.ToFloat64(c.validation.passesTotal.WithLabelValues("full", "invalid")); got != 1 {
		t.Errorf("invalid full passes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.validation.passesTotal.WithLabelValues("full", "valid")); got != 1 {
		t.Errorf("valid full passes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.validation.passesTotal.WithLabelValues("field", "valid")); got != 1 {
		t.Errorf("field passes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.validation.errorsTotal.WithLabelValues("email", "REGEX")); got != 1 {
		t.Errorf("email REGEX errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.validation.actionsTotal.WithLabelValues("CLEAR_FORMFIELD")); got != 1 {
		t.Errorf("actions = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.validation.passDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCollector_FieldCardinality(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordPass("full", time.Millisecond, failingReport())
	c.RecordPass("full", time.Millisecond, &engine.Report{
		HasErrors: true,
		Details: map[string][]engine.ValidationError{
			"phone": {{FieldID: "phone", Type: engine.KindRequired}},
		},
		Fields: []string{"phone"},
	})

	if got := testutil.ToFloat64(c.validation.errorsTotal.WithLabelValues(otherLabel, "REQUIRED")); got != 1 {
		t.Errorf("overflow field counted as %v under %q, want 1", got, otherLabel)
	}
	if c.fields.Count() != 2 {
		t.Errorf("tracked fields = %d, want 2", c.fields.Count())
	}
}

func TestCollector_RecordReload(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordReload(true, 12)
	c.RecordReload(false, 0)

	if got := testutil.ToFloat64(c.rules.rulesLoaded); got != 12 {
		t.Errorf("rules loaded = %v, want 12 after failed reload", got)
	}
	if got := testutil.ToFloat64(c.rules.reloadsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.rules.lastReload); got <= 0 {
		t.Error("last reload timestamp not set")
	}
}

func TestCollector_HTTPAndReports(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordHTTPRequest("POST", "/api/v1/validate", 200, 3*time.Millisecond)
	c.RecordReportStored(true)
	c.RecordReportStored(false)
	c.RecordReportsPruned(5)
	c.RecordReportsPruned(0)

	if got := testutil.ToFloat64(c.http.requestsTotal.WithLabelValues("POST", "/api/v1/validate", "200")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.reports.storedTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed stores = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.reports.prunedTotal); got != 5 {
		t.Errorf("pruned = %v, want 5", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.RecordPass("full", time.Millisecond, failingReport())
	c.RecordReload(true, 3)

	if got := testutil.ToFloat64(c.validation.passesTotal.WithLabelValues("full", "invalid")); got != 0 {
		t.Errorf("disabled collector recorded %v passes", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.RecordPass("full", time.Millisecond, failingReport())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_validation_passes_total") {
		t.Error("scrape output missing validation_passes_total")
	}
}

func TestNewCollector_Defaults(t *testing.T) {
	c := NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	if c.config.Namespace != "fieldguard" {
		t.Errorf("namespace = %q", c.config.Namespace)
	}
	if len(c.config.PassDurationBuckets) == 0 {
		t.Error("default buckets not set")
	}
	if c.Registry() == nil {
		t.Error("nil registry")
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)
	if !cl.Allow("a") || !cl.Allow("b") || !cl.Allow("a") {
		t.Fatal("values under the limit rejected")
	}
	if cl.Allow("c") {
		t.Error("value past the limit allowed")
	}
}
