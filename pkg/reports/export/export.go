package export

import (
	"fmt"
	"strings"

	"mercator-hq/fieldguard/pkg/reports"
)

// New returns the exporter for format ("json" or "csv").
func New(format string, pretty bool) (reports.Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONExporter(pretty), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (must be json or csv)", format)
	}
}
