package reports

import (
	"context"
	"io"
	"time"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

// Status values a record can be filtered by.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Record is one archived full validation pass.
type Record struct {
	// Identity
	ID      string `json:"id"`       // UUID v4
	EventID string `json:"event_id"` // Notifier event ID
	PassID  string `json:"pass_id"`  // Engine pass ID

	// Timestamps
	PassTime     time.Time `json:"pass_time"`     // When the engine emitted the event
	RecordedTime time.Time `json:"recorded_time"` // When the record was written

	// Outcome
	Event       string   `json:"event"` // validation.error or validation.success
	HasErrors   bool     `json:"has_errors"`
	ErrorCount  int      `json:"error_count"`
	SystemCount int      `json:"system_count"`
	FieldIDs    []string `json:"field_ids"` // Fields with errors, in report order
	RuleIDs     []string `json:"rule_ids"`  // Rules that produced errors, sorted

	// ReportHash is the SHA-256 of the canonical report JSON.
	ReportHash string `json:"report_hash"`

	// RuleSource and RuleVersion identify the rule set the pass ran
	// against (e.g. "git" and a commit SHA).
	RuleSource  string `json:"rule_source,omitempty"`
	RuleVersion string `json:"rule_version,omitempty"`

	Report *engine.Report `json:"report"`
}

// Status returns StatusFailed when the pass had errors.
func (r *Record) Status() string {
	if r.HasErrors {
		return StatusFailed
	}
	return StatusPassed
}

// Query defines filter parameters for listing records.
type Query struct {
	// Time range over PassTime, inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Filters
	FieldID string `json:"field_id,omitempty"` // Records with an error on this field
	RuleID  string `json:"rule_id,omitempty"`  // Records with an error from this rule
	PassID  string `json:"pass_id,omitempty"`
	Status  string `json:"status,omitempty"` // "passed" or "failed"

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder orders by PassTime: "asc" or "desc" (default).
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage is a report archive backend. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Get returns the record with id, or an error wrapping ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Query returns records matching q. It returns an empty slice when none match.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes records matching q and returns how many were removed.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Exporter writes records in a specific format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
