// fieldguard is a declarative, rule-driven field validation engine.
//
// Rules are YAML or JSON documents describing per-field conditions
// (required, comparison, dependency, type, length, emptiness, regex and
// custom checks). fieldguard evaluates them against submitted field values
// and reports every failure keyed by field.
//
// Usage:
//
//	# Validate a field document against a rule document
//	fieldguard validate --rules rules.yaml --fields fields.json
//
//	# Re-validate a single field with a new value
//	fieldguard validate --rules rules.yaml --fields fields.json --field age --value 17
//
//	# Lint rule documents
//	fieldguard lint --rules rules/
//
//	# Serve the HTTP API with hot-reloaded rules
//	fieldguard serve --config config.yaml
//
//	# Query archived reports
//	fieldguard reports list --status failed
package main

func main() {
	Execute()
}
