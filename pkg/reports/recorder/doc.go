// Package recorder archives validation passes as report records.
//
// Recorder is an engine.Notifier. Each event is converted to a
// reports.Record (report hash, failing field and rule IDs, rule version)
// and pushed onto a buffered channel drained by a single writer goroutine.
// When the buffer stays full for WriteTimeout the record is dropped and
// Notify returns a RecorderError; the engine logs it and carries on.
//
// Close drains the buffer before returning, so records queued before
// shutdown are not lost.
package recorder
