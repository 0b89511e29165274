package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/query"
	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

// inlineSource names request bodies in parse errors. The extension selects JSON decoding.
const inlineSource = "request.json"

type validateRequest struct {
	Fields json.RawMessage `json:"fields"`
	Rules  json.RawMessage `json:"rules,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, fields, ok := s.decodeValidateRequest(w, r)
	if !ok {
		return
	}

	var (
		report *engine.Report
		err    error
	)
	if len(req.Rules) > 0 {
		rules, ok := s.inlineRules(w, req.Rules)
		if !ok {
			return
		}
		report, err = s.validator.Validate(r.Context(), fields, rules)
	} else {
		report, err = s.validator.ValidateLoaded(r.Context(), fields)
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "validation pass interrupted", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleValidateField(w http.ResponseWriter, r *http.Request) {
	fieldID := chi.URLParam(r, "fieldId")

	req, fields, ok := s.decodeValidateRequest(w, r)
	if !ok {
		return
	}
	if len(req.Value) == 0 {
		respondError(w, http.StatusBadRequest, "value is required", nil)
		return
	}
	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		respondError(w, http.StatusBadRequest, "invalid value", err)
		return
	}

	var (
		report *engine.Report
		err    error
	)
	if len(req.Rules) > 0 {
		rules, ok := s.inlineRules(w, req.Rules)
		if !ok {
			return
		}
		report, err = s.validator.ValidateField(r.Context(), fields, rules, fieldID, value)
	} else {
		report, err = s.validator.ValidateFieldLoaded(r.Context(), fields, fieldID, value)
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "validation pass interrupted", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// decodeValidateRequest writes the error response itself and returns false on failure.
func (s *Server) decodeValidateRequest(w http.ResponseWriter, r *http.Request) (*validateRequest, any, bool) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bodyErrorStatus(err), "invalid request body", err)
		return nil, nil, false
	}
	if len(req.Fields) == 0 || string(req.Fields) == "null" {
		respondError(w, http.StatusBadRequest, "fields are required", nil)
		return nil, nil, false
	}

	fields, err := ruleset.ParseFields(req.Fields, inlineSource)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid fields", err)
		return nil, nil, false
	}
	return &req, fields, true
}

func (s *Server) inlineRules(w http.ResponseWriter, raw json.RawMessage) ([]engine.Rule, bool) {
	doc, err := s.parser.ParseBytes(raw, inlineSource)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rules", err)
		return nil, false
	}
	return doc.Rules, true
}

type lintResponse struct {
	Valid     bool             `json:"valid"`
	RuleCount int              `json:"ruleCount"`
	Errors    []*ruleset.Error `json:"errors"`
}

// handleLint checks a rule document sent as the raw request body, JSON or YAML.
func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, bodyErrorStatus(err), "failed to read request body", err)
		return
	}

	source := "request.yaml"
	if ruleset.DetectFormat("", data) == ruleset.FormatJSON {
		source = inlineSource
	}
	doc, err := s.parser.ParseBytes(data, source)
	if err != nil {
		var perr *ruleset.Error
		if errors.As(err, &perr) {
			respondJSON(w, http.StatusUnprocessableEntity, lintResponse{Errors: []*ruleset.Error{perr}})
			return
		}
		respondError(w, http.StatusBadRequest, "invalid rule document", err)
		return
	}

	linter := ruleset.NewLinter(s.validator.Registry())
	if s.compiler != nil {
		linter.WithCompiler(s.compiler)
	}
	list := linter.Lint(doc)

	status := http.StatusOK
	if list.HasErrors() {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, lintResponse{
		Valid:     !list.HasErrors(),
		RuleCount: len(doc.Rules),
		Errors:    list.Errors,
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules := s.validator.Rules()
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(rules),
		"rules": rules,
	})
}

func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	if err := s.validator.ReloadRules(r.Context()); err != nil {
		if errors.Is(err, engine.ErrNoRulesLoaded) {
			respondError(w, http.StatusConflict, "engine has no rule source", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to reload rules", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"ruleCount": len(s.validator.Rules()),
	})
}

type listReportsResponse struct {
	Records []*reports.Record `json:"records"`
	Total   int64             `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		respondError(w, http.StatusNotFound, ErrReportsDisabled.Error(), nil)
		return
	}

	q, err := parseReportQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query", err)
		return
	}
	if err := query.Validate(q, s.limits); err != nil {
		respondError(w, http.StatusBadRequest, "invalid query", err)
		return
	}
	query.ApplyDefaults(q, s.limits)

	records, err := s.reports.Query(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query reports", err)
		return
	}
	total, err := s.reports.Count(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count reports", err)
		return
	}

	respondJSON(w, http.StatusOK, listReportsResponse{
		Records: records,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		respondError(w, http.StatusNotFound, ErrReportsDisabled.Error(), nil)
		return
	}

	record, err := s.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, reports.ErrNotFound) {
		respondError(w, http.StatusNotFound, "report not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get report", err)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// parseReportQuery reads the report filters from URL query parameters.
// Times are RFC 3339.
func parseReportQuery(r *http.Request) (*reports.Query, error) {
	params := r.URL.Query()
	q := &reports.Query{
		FieldID:   params.Get("field_id"),
		RuleID:    params.Get("rule_id"),
		PassID:    params.Get("pass_id"),
		Status:    params.Get("status"),
		SortOrder: params.Get("sort"),
	}

	for name, dst := range map[string]**time.Time{"start": &q.StartTime, "end": &q.EndTime} {
		v := params.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		*dst = &t
	}

	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		v := params.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer: %w", name, err)
		}
		*dst = n
	}

	return q, nil
}

func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
