package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/query"
	"mercator-hq/fieldguard/pkg/reports/storage"
	"mercator-hq/fieldguard/pkg/server/auth"
	"mercator-hq/fieldguard/pkg/server/ratelimit"
	"mercator-hq/fieldguard/pkg/telemetry/health"
	"mercator-hq/fieldguard/pkg/telemetry/logging"
	"mercator-hq/fieldguard/pkg/telemetry/metrics"
	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/engine/source"
)

func testRules() []engine.Rule {
	return []engine.Rule{
		{
			RuleID:  "email-required",
			FieldID: "email",
			Conditions: []engine.Condition{
				{Type: engine.KindRequired},
			},
		},
		{
			RuleID:  "age-min",
			FieldID: "age",
			Conditions: []engine.Condition{
				{Type: engine.KindComparison, Operator: ">=", Value: 18},
			},
		},
	}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.NewEngine(nil, nil, logging.Discard(),
		engine.WithRuleSource(source.NewMemorySource(testRules()...)),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := config.DefaultConfig().Server
	cfg.ListenAddress = "127.0.0.1:0"
	return NewServer(&cfg, newTestEngine(t), logging.Discard(), opts...)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestValidate(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantErrors int
		wantFields []string
	}{
		{
			name:       "loaded rules with failures",
			body:       `{"fields": {"email": "", "age": 16}}`,
			wantStatus: http.StatusOK,
			wantErrors: 2,
			wantFields: []string{"email", "age"},
		},
		{
			name:       "loaded rules pass",
			body:       `{"fields": [{"fieldId": "email", "value": "a@b.c"}, {"fieldId": "age", "value": 30}]}`,
			wantStatus: http.StatusOK,
		},
		{
			name: "inline rules replace loaded rules",
			body: `{"fields": {"email": "", "age": 16},
			        "rules": [{"ruleId": "age-max", "fieldId": "age",
			                   "conditions": [{"type": "COMPARISON", "operator": "<", "value": 10}]}]}`,
			wantStatus: http.StatusOK,
			wantErrors: 1,
			wantFields: []string{"age"},
		},
		{
			name:       "missing fields",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"fields":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed inline rules",
			body:       `{"fields": {}, "rules": "not a document"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/validate", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				resp := decode[errorResponse](t, rec)
				if resp.Error == "" {
					t.Error("expected an error message")
				}
				return
			}

			report := decode[engine.Report](t, rec)
			if report.ErrorCount != tt.wantErrors {
				t.Errorf("ErrorCount = %d, want %d", report.ErrorCount, tt.wantErrors)
			}
			if report.HasErrors != (tt.wantErrors > 0) {
				t.Errorf("HasErrors = %v", report.HasErrors)
			}
			for _, field := range tt.wantFields {
				if len(report.Details[field]) == 0 {
					t.Errorf("expected errors for %q, got %v", field, report.Details)
				}
			}
		})
	}
}

func TestValidateField(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantErrors int
	}{
		{
			name:       "override fails",
			path:       "/api/v1/validate/age",
			body:       `{"fields": {"email": "", "age": 30}, "value": 12}`,
			wantStatus: http.StatusOK,
			wantErrors: 1,
		},
		{
			name:       "override passes and other fields are ignored",
			path:       "/api/v1/validate/age",
			body:       `{"fields": {"email": "", "age": 12}, "value": 40}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "value required",
			path:       "/api/v1/validate/age",
			body:       `{"fields": {"age": 30}}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			report := decode[engine.Report](t, rec)
			if report.ErrorCount != tt.wantErrors {
				t.Errorf("ErrorCount = %d, want %d: %v", report.ErrorCount, tt.wantErrors, report.Details)
			}
			if len(report.Details["email"]) != 0 {
				t.Errorf("partial pass reported email errors: %v", report.Details["email"])
			}
		})
	}
}

func TestLint(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantValid  bool
	}{
		{
			name: "valid yaml",
			body: `rules:
  - ruleId: name-required
    fieldId: name
    conditions:
      - type: REQUIRED
`,
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
		{
			name:       "unknown operator",
			body:       `{"rules": [{"ruleId": "r1", "fieldId": "a", "conditions": [{"type": "COMPARISON", "operator": "~~", "value": 1}]}]}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "syntax error",
			body:       `{"rules": [`,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/lint", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			resp := decode[lintResponse](t, rec)
			if resp.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", resp.Valid, tt.wantValid)
			}
			if !tt.wantValid && len(resp.Errors) == 0 {
				t.Error("expected lint errors")
			}
		})
	}
}

func TestRules(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/rules", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[struct {
		Count int           `json:"count"`
		Rules []engine.Rule `json:"rules"`
	}](t, rec)
	if resp.Count != 2 || len(resp.Rules) != 2 || resp.Rules[0].RuleID != "email-required" {
		t.Errorf("rules = %+v", resp)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/rules/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestReloadWithoutSource(t *testing.T) {
	eng, err := engine.NewEngine(nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()

	h := NewServer(nil, eng, logging.Discard()).Handler()
	rec := do(t, h, http.MethodPost, "/api/v1/rules/reload", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func seedReports(t *testing.T, store reports.Storage) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, failed := range []bool{true, false, true} {
		r := engine.NewResult(true)
		if failed {
			r.AddError("email", engine.ValidationError{Message: "Email is required.", Type: engine.KindRequired, RuleID: "email-required"})
		}
		report := r.FormatResults()
		rec := &reports.Record{
			ID:           "rec-" + string(rune('a'+i)),
			EventID:      "evt",
			PassID:       "pass",
			PassTime:     base.Add(time.Duration(i) * time.Minute),
			RecordedTime: base.Add(time.Duration(i) * time.Minute),
			HasErrors:    report.HasErrors,
			ErrorCount:   report.ErrorCount,
			Report:       report,
		}
		if failed {
			rec.FieldIDs = []string{"email"}
			rec.RuleIDs = []string{"email-required"}
		}
		if err := store.Store(context.Background(), rec); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}
}

func TestReports(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedReports(t, store)
	h := newTestServer(t, WithReports(store, query.Limits{Default: 2, Max: 10})).Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCount  int
		wantTotal  int64
	}{
		{name: "default page", path: "/api/v1/reports", wantStatus: http.StatusOK, wantCount: 2, wantTotal: 3},
		{name: "failed only", path: "/api/v1/reports?status=failed", wantStatus: http.StatusOK, wantCount: 2, wantTotal: 2},
		{name: "by field", path: "/api/v1/reports?field_id=email&limit=10", wantStatus: http.StatusOK, wantCount: 2, wantTotal: 2},
		{name: "time range", path: "/api/v1/reports?start=2026-01-01T00:01:00Z", wantStatus: http.StatusOK, wantCount: 2, wantTotal: 2},
		{name: "limit over max", path: "/api/v1/reports?limit=11", wantStatus: http.StatusBadRequest},
		{name: "bad status", path: "/api/v1/reports?status=maybe", wantStatus: http.StatusBadRequest},
		{name: "bad time", path: "/api/v1/reports?start=yesterday", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			resp := decode[listReportsResponse](t, rec)
			if len(resp.Records) != tt.wantCount || resp.Total != tt.wantTotal {
				t.Errorf("got %d records of %d, want %d of %d", len(resp.Records), resp.Total, tt.wantCount, tt.wantTotal)
			}
		})
	}

	t.Run("get by id", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/reports/rec-a", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		got := decode[reports.Record](t, rec)
		if got.ID != "rec-a" || !got.HasErrors {
			t.Errorf("record = %+v", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/reports/missing", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestReportsDisabled(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/api/v1/reports", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	checker := health.New(time.Second)
	checker.RegisterCheck("rules", health.RulesLoadedCheck(func() int { return 0 }))

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Path: "/metrics"}, nil)
	h := newTestServer(t,
		WithHealth(checker),
		WithMetrics(collector, "/metrics"),
		WithVersion("1.2.3", "abc", "now"),
	).Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready = %d, want 503 with no rules", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/version", "")
	if info := decode[health.VersionInfo](t, rec); info.Version != "1.2.3" {
		t.Errorf("version = %+v", info)
	}

	do(t, h, http.MethodPost, "/api/v1/validate", `{"fields": {"email": "x", "age": 20}}`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/v1/validate"`) {
		t.Errorf("expected request metric labelled by route pattern, got:\n%s", rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	mw := auth.NewMiddleware(
		auth.NewValidator(auth.Key{Name: "ci", Key: "fg-test-key"}),
		[]auth.Source{{Type: auth.SourceHeader, Name: "Authorization", Scheme: "Bearer"}},
		logging.Discard(),
	)
	checker := health.New(time.Second)
	h := newTestServer(t, WithAuth(mw), WithHealth(checker)).Handler()

	if rec := do(t, h, http.MethodGet, "/api/v1/rules", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("/api/v1/rules without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	req.Header.Set("Authorization", "Bearer fg-test-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/api/v1/rules with key = %d, want 200", rec.Code)
	}

	for _, path := range []string{"/health", "/version"} {
		if rec := do(t, h, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Errorf("%s without key = %d, want 200", path, rec.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	checker := health.New(time.Second)
	h := newTestServer(t,
		WithRateLimit(ratelimit.New(0.001, 1, 0, logging.Discard())),
		WithHealth(checker),
	).Handler()

	if rec := do(t, h, http.MethodGet, "/api/v1/rules", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/rules", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", rec.Code)
	}
	for range 3 {
		if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
			t.Errorf("/health = %d, want probes exempt from the limit", rec.Code)
		}
	}
}

func TestRequestIDAndNotFound(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if resp := decode[errorResponse](t, rec); resp.Error != "route not found" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestBodyLimit(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.MaxBodyBytes = 16
	h := NewServer(&cfg, newTestEngine(t), logging.Discard()).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/validate", `{"fields": {"email": "a-very-long-address@example.com"}}`)
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 413 or 400", rec.Code)
	}
}

func TestStartAndStop(t *testing.T) {
	srv := newTestServer(t)

	done := make(chan error, 1)
	go func() { done <- srv.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() || srv.Addr() == "127.0.0.1:0" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/version")
	if err != nil {
		t.Fatalf("GET /version: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Start(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	srv.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	if srv.IsRunning() {
		t.Error("server still running after Stop")
	}
}
