// Package ruleset reads rule and field documents and lints rules.
//
// A rule document is YAML or JSON, either a mapping with a rules list or a
// bare list of rules:
//
//	version: "1"
//	name: applicant-form
//	rules:
//	  - ruleId: age
//	    priority: HIGH
//	    conditions:
//	      - type: COMPARISON
//	        fieldId: age
//	        operator: GREATER_THAN_OR_EQUAL
//	        value: 18
//	  - ruleId: email
//	    fieldId: email
//	    type: REGEX
//	    value: "^[^@]+@[^@]+$"
//
// The second rule is flat: it has no conditions list and carries the
// condition keys itself. Flat rules become single-condition rules; a flat
// rule with an operator and no type is a COMPARISON. Rules without a ruleId
// are named rule-1, rule-2, ... by position.
//
// Parsing is strict about syntax and document shape and returns *Error.
// Lint reports everything else as an *ErrorList of errors and warnings, with
// suggestions for misspelled operators, types, kinds and actions.
package ruleset
