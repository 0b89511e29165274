// Package source provides rule sources for a long-lived validation engine.
//
// A rule source loads rule documents and reports when they may have changed.
// The engine reloads on every event and keeps the previous rules when a
// reload fails.
//
// # File Source
//
// Loads a single rule document or every document in a directory and watches
// it with fsnotify. Bursts of writes are debounced into one event:
//
//	src := source.NewFileSource("rules/", nil, logger)
//	eng, err := engine.NewEngine(cfg, registry, logger, engine.WithRuleSource(src))
//
// # Git Source
//
// Clones a rule repository with go-git and polls it for new commits. Only
// commits that touch rule documents under the configured path produce events.
//
// # Memory Source
//
// Holds rules in memory; SetRules notifies watchers. Used by tests and by
// callers that assemble rules programmatically.
package source
