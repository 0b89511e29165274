// Package engine provides a declarative, rule-driven field validation engine.
//
// Rules are data: each rule groups conditions keyed by field and kind
// (REQUIRED, COMPARISON, DEPENDENCY, TYPE_CHECK, LENGTH_CHECK, EMPTY_CHECK,
// REGEX, CUSTOM). A pass evaluates every rule against a set of field values and
// returns a Report of which fields violate which conditions and why.
//
// # Architecture
//
//  1. Registry - operator and type tables, pre-seeded with built-ins and extended at startup
//  2. Context - normalized field values with cached lookup and action write-back
//  3. Evaluators - one strategy per condition kind, plus the dependency resolver
//  4. Processor - priority ordering, group operators, actions, SYSTEM_ERROR isolation
//  5. Result - deduplicated, insertion-ordered aggregation formatted into a Report
//
// # Evaluation Flow
//
//	fields, rules
//	       ↓
//	Context (normalize input)       malformed → SYSTEM error report
//	       ↓
//	Sort rules by priority (HIGH, MEDIUM, LOW, numeric; stable)
//	       ↓
//	For each rule, for each condition:
//	  Validate structure            broken → SYSTEM_ERROR on the field
//	  Evaluate                      fail → ValidationError, then action
//	       ↓
//	Report (hasErrors, errorCount, details, summary, actions)
//	       ↓
//	Event → Notifier (full passes only)
//
// # Basic Usage
//
//	eng, err := engine.NewEngine(nil, engine.NewRegistry(), logger)
//	if err != nil {
//	    return err
//	}
//
//	report, err := eng.Validate(ctx, map[string]engine.FieldValue{
//	    "age": {FieldID: "age", Value: 16},
//	}, []engine.Rule{{
//	    RuleID: "age-minimum",
//	    Conditions: []engine.Condition{{
//	        Type:         engine.KindComparison,
//	        FieldID:      "age",
//	        Operator:     engine.OpGreaterThan,
//	        Value:        18,
//	        ErrorMessage: "Age must be greater than 18",
//	    }},
//	}})
//
// # Error Policy
//
// Validate and ValidateField always return a Report: malformed input, broken
// conditions, unknown operators and failing custom functions become
// SYSTEM_ERROR entries so that one bad rule never stops the rest of the form
// from being validated. In AND and OR groups a SYSTEM_ERROR is always
// reported and never counts as a pass or a failure of the group. The error
// return only reports cancellation.
// Compare, ValidateType, EvaluateCondition and registration return errors
// directly.
//
// # Dependencies
//
// A DEPENDENCY condition requires its field to be non-empty while another
// field satisfies a comparison. Before the comparison the reference field's
// own dependency chain is resolved with a stack passed by value; a field
// already on the stack ends that branch of the walk, and resolved fields are
// memoized per pass. A condition that references its own field is
// inapplicable. Mutual dependencies are not: with "A required when B is
// filled" and "B required when A is filled", an empty A next to a filled B
// still fails. Chains longer than the configured depth and absent reference
// fields are inapplicable too.
//
// ValidateField applies the conditions on the scoped field and the
// DEPENDENCY conditions that look it up, so setting a reference field
// reports the fields it makes required.
//
// # Thread Safety
//
// An Engine is safe for concurrent use. Each pass owns its Context and
// Result; passes share only the Registry and the loaded rule set, which is
// swapped atomically on reload.
package engine
