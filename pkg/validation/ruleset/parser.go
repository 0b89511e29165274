package ruleset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

// Document is a parsed rule document.
type Document struct {
	Version     string        `json:"version,omitempty"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Rules       []engine.Rule `json:"rules"`

	// Locations holds the position of each rule, parallel to Rules.
	// Entries are zero for JSON documents.
	Locations []Location `json:"-"`

	// Source is the file the document was read from.
	Source string `json:"-"`
}

// Location returns the position of the i-th rule.
func (d *Document) Location(i int) Location {
	if i >= 0 && i < len(d.Locations) {
		return d.Locations[i]
	}
	return Location{File: d.Source}
}

// Parser parses rule documents into engine rules.
type Parser struct {
	maxFileSize int64
}

// NewParser creates a parser with a 10MB document size limit.
func NewParser() *Parser {
	return &Parser{
		maxFileSize: 10 * 1024 * 1024,
	}
}

// WithMaxFileSize sets the maximum document size in bytes.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// Parse reads and parses the rule document at path.
func (p *Parser) Parse(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Failed to access file: %v", err),
			Location: Location{File: path},
		}
	}
	if info.Size() > p.maxFileSize {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Severity: SeverityError,
			Message:  fmt.Sprintf("File size %d exceeds maximum %d bytes", info.Size(), p.maxFileSize),
			Location: Location{File: path},
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Failed to read file: %v", err),
			Location: Location{File: path},
		}
	}
	return p.ParseBytes(data, path)
}

// ParseBytes parses a rule document held in memory. source names the
// document in errors and selects the format by extension when it has one.
func (p *Parser) ParseBytes(data []byte, source string) (*Document, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Data size %d exceeds maximum %d bytes", len(data), p.maxFileSize),
			Location: Location{File: source},
		}
	}

	var (
		spec      *documentSpec
		locations []Location
		err       error
	)

	switch DetectFormat(source, data) {
	case FormatJSON:
		spec, err = decodeJSON(data)
		if err != nil {
			return nil, &Error{
				Type:       ErrorTypeSyntax,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("JSON parsing failed: %v", err),
				Location:   jsonErrorLocation(data, err, source),
				Suggestion: "Check JSON syntax (commas, brackets, quotes)",
			}
		}
	default:
		spec, locations, err = decodeYAML(data, source)
		if err != nil {
			return nil, &Error{
				Type:       ErrorTypeSyntax,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("YAML parsing failed: %v", err),
				Location:   Location{File: source},
				Suggestion: "Check YAML syntax (indentation, colons, quotes)",
			}
		}
	}

	doc := &Document{
		Version:     spec.Version,
		Name:        spec.Name,
		Description: spec.Description,
		Rules:       make([]engine.Rule, 0, len(spec.Rules)),
		Locations:   make([]Location, len(spec.Rules)),
		Source:      source,
	}
	for i := range spec.Rules {
		doc.Rules = append(doc.Rules, spec.Rules[i].toRule(i))
		if i < len(locations) {
			doc.Locations[i] = locations[i]
		} else {
			doc.Locations[i] = Location{File: source}
		}
	}

	return doc, nil
}

// ParseMulti parses several documents and concatenates their rules in order.
// The first document's metadata is kept.
func (p *Parser) ParseMulti(paths []string) (*Document, error) {
	if len(paths) == 0 {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Severity: SeverityError,
			Message:  "No rule files provided",
		}
	}

	merged, err := p.Parse(paths[0])
	if err != nil {
		return nil, err
	}

	for _, path := range paths[1:] {
		doc, err := p.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		merged.Rules = append(merged.Rules, doc.Rules...)
		merged.Locations = append(merged.Locations, doc.Locations...)
	}

	return merged, nil
}

// ParseDir parses every .yaml, .yml and .json document directly under dir,
// in lexical order.
func (p *Parser) ParseDir(dir string) (*Document, error) {
	paths, err := RuleFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return &Document{Source: dir, Rules: []engine.Rule{}}, nil
	}
	doc, err := p.ParseMulti(paths)
	if err != nil {
		return nil, err
	}
	doc.Source = dir
	return doc, nil
}

// ParsePath parses a single document or, when path is a directory, every document in it.
func (p *Parser) ParsePath(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Failed to access path: %v", err),
			Location: Location{File: path},
		}
	}
	if info.IsDir() {
		return p.ParseDir(path)
	}
	return p.Parse(path)
}

// RuleFiles lists the rule documents directly under dir.
func RuleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Failed to read directory: %v", err),
			Location: Location{File: dir},
		}
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsRuleFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// IsRuleFile reports whether name has a rule document extension.
func IsRuleFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	return false
}
