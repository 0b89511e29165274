package ruleset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat indicates a document that is neither YAML nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrorType categorizes a problem found while parsing or linting a rule document.
type ErrorType string

const (
	ErrorTypeSyntax     ErrorType = "syntax"     // YAML or JSON syntax error
	ErrorTypeStructural ErrorType = "structural" // Missing or malformed keys
	ErrorTypeSemantic   ErrorType = "semantic"   // Unknown operator, type, function or action
	ErrorTypeReference  ErrorType = "reference"  // Duplicate IDs, dependency cycles
	ErrorTypeIO         ErrorType = "io"         // File I/O error
)

// Severity is how serious a problem is. Warnings never fail a parse.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Location is a position in a rule document.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the location points at a line.
func (l Location) IsValid() bool {
	return l.Line > 0
}

// String formats the location as file:line:column.
func (l Location) String() string {
	switch {
	case l.Line > 0 && l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	case l.Line > 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	default:
		return l.File
	}
}

// Error is a single problem with its location and an optional suggested fix.
type Error struct {
	Type       ErrorType `json:"type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	RuleID     string    `json:"ruleId,omitempty"`
	Location   Location  `json:"location"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	severity := e.Severity
	if severity == "" {
		severity = SeverityError
	}
	fmt.Fprintf(&sb, "%s [%s] %s", severity, e.Type, e.Message)
	if e.RuleID != "" {
		fmt.Fprintf(&sb, " (rule %s)", e.RuleID)
	}
	if e.Location.File != "" || e.Location.IsValid() {
		fmt.Fprintf(&sb, "\n  --> %s", e.Location)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, "\n  = suggestion: %s", e.Suggestion)
	}
	return sb.String()
}

// ErrorList accumulates problems instead of failing on the first one.
type ErrorList struct {
	Errors []*Error `json:"errors"`
}

// NewErrorList creates a new empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*Error, 0),
	}
}

// Add appends a problem to the list. An empty severity means SeverityError.
func (el *ErrorList) Add(err *Error) {
	if err.Severity == "" {
		err.Severity = SeverityError
	}
	el.Errors = append(el.Errors, err)
}

// Merge appends every problem of other.
func (el *ErrorList) Merge(other *ErrorList) {
	if other == nil {
		return
	}
	el.Errors = append(el.Errors, other.Errors...)
}

// HasErrors reports whether the list holds any error-severity problem.
func (el *ErrorList) HasErrors() bool {
	for _, e := range el.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of problems of every severity.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Warnings returns the warning-severity problems.
func (el *ErrorList) Warnings() []*Error {
	var out []*Error
	for _, e := range el.Errors {
		if e.Severity == SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}

// ByType returns all problems of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var out []*Error
	for _, e := range el.Errors {
		if e.Type == errType {
			out = append(out, e)
		}
	}
	return out
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if len(el.Errors) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d problem(s):\n", el.Count())
	for i, e := range el.Errors {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, e.Error())
	}
	return sb.String()
}

// ToError returns nil unless the list holds an error-severity problem.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}
