// Package reports archives the outcome of full validation passes.
//
// A Recorder subscribes to the engine as its Notifier, turns every event
// into a Record and writes it asynchronously to a Storage backend (SQLite
// through either the cgo or the pure-Go driver, or memory for tests). The
// retention package prunes old records on a cron schedule, and the export
// package writes records as JSON or CSV.
//
//	store, _ := storage.NewSQLiteStorage(&storage.SQLiteConfig{Path: "data/reports.db"})
//	rec := recorder.NewRecorder(store, nil, logger)
//	eng, _ := engine.NewEngine(cfg, registry, logger, engine.WithNotifier(rec))
//	defer rec.Close()
//
// Records keep the full engine.Report plus denormalized columns (field IDs,
// rule IDs, error counts) so listings can filter without decoding reports.
package reports
