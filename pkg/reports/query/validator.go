package query

import (
	"fmt"
	"strings"

	"mercator-hq/fieldguard/pkg/reports"
)

const (
	// DefaultLimit is the page size used when a query sets none.
	DefaultLimit = 50

	// MaxLimit is the largest page size accepted.
	MaxLimit = 1000
)

// Limits bounds query page sizes.
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits returns the package defaults.
func DefaultLimits() Limits {
	return Limits{Default: DefaultLimit, Max: MaxLimit}
}

// Validate checks q against limits.
func Validate(q *reports.Query, limits Limits) error {
	if q.Limit < 0 {
		return reports.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if limits.Max > 0 && q.Limit > limits.Max {
		return reports.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", limits.Max, q.Limit))
	}
	if q.Offset < 0 {
		return reports.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}

	if q.SortOrder != "" {
		switch strings.ToLower(q.SortOrder) {
		case "asc", "desc":
		default:
			return reports.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
		}
	}

	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return reports.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}

	switch q.Status {
	case "", reports.StatusPassed, reports.StatusFailed:
	default:
		return reports.NewQueryError(q, fmt.Errorf("invalid status: %s (must be 'passed' or 'failed')", q.Status))
	}

	return nil
}

// ApplyDefaults fills the page size and sort order.
func ApplyDefaults(q *reports.Query, limits Limits) {
	if q.Limit == 0 {
		q.Limit = limits.Default
		if q.Limit == 0 {
			q.Limit = DefaultLimit
		}
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	q.SortOrder = strings.ToLower(q.SortOrder)
}
