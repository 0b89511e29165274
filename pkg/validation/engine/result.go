package engine

// Result accumulates the errors and actions of one pass.
// It is owned by a single pass and formatted once.
type Result struct {
	errors  map[string][]ValidationError
	actions map[string][]ActionRecord
	fields  []string
	summary []SummaryEntry
	seen    map[errorKey]struct{}
	dedupe  bool
	count   int
}

type errorKey struct {
	fieldID string
	message string
}

// NewResult creates an empty result. With dedupe set, identical
// (fieldId, message) pairs are recorded once.
func NewResult(dedupe bool) *Result {
	return &Result{
		errors:  make(map[string][]ValidationError),
		actions: make(map[string][]ActionRecord),
		seen:    make(map[errorKey]struct{}),
		dedupe:  dedupe,
	}
}

// AddError records an error for a field. It returns false when the error was
// collapsed into an identical earlier one.
func (r *Result) AddError(fieldID string, e ValidationError) bool {
	if fieldID == "" {
		fieldID = SystemFieldID
	}
	e.FieldID = fieldID

	key := errorKey{fieldID: fieldID, message: e.Message}
	if r.dedupe {
		if _, dup := r.seen[key]; dup {
			return false
		}
		r.seen[key] = struct{}{}
	}

	if e.Details == nil {
		e.Details = map[string]any{}
	}
	if _, ok := r.errors[fieldID]; !ok {
		r.fields = append(r.fields, fieldID)
	}
	r.errors[fieldID] = append(r.errors[fieldID], e)
	r.summary = append(r.summary, SummaryEntry{
		FieldID: fieldID,
		Message: e.Message,
		Type:    e.Type,
	})
	r.count++
	return true
}

// AddAction records an action triggered for a field.
func (r *Result) AddAction(fieldID, action string, actionValue any) {
	r.actions[fieldID] = append(r.actions[fieldID], ActionRecord{
		Action:      action,
		ActionValue: actionValue,
	})
}

// HasErrors reports whether any error was recorded.
func (r *Result) HasErrors() bool {
	return len(r.errors) > 0
}

// FormatResults builds the report. The report does not share storage with the result.
func (r *Result) FormatResults() *Report {
	report := &Report{
		Details: make(map[string][]ValidationError, len(r.errors)),
		Summary: make([]SummaryEntry, len(r.summary)),
		Actions: make(map[string][]ActionRecord, len(r.actions)),
		Fields:  make([]string, len(r.fields)),
	}

	for id, errs := range r.errors {
		if len(errs) == 0 {
			continue
		}
		report.Details[id] = append([]ValidationError(nil), errs...)
	}
	for id, acts := range r.actions {
		report.Actions[id] = append([]ActionRecord(nil), acts...)
	}
	copy(report.Summary, r.summary)
	copy(report.Fields, r.fields)

	report.ErrorCount = r.count
	report.HasErrors = len(report.Details) > 0
	return report
}
