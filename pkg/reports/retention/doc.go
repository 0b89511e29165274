// Package retention prunes the report archive.
//
// A Pruner deletes records older than RetentionDays and then trims the
// archive to MaxRecords, oldest first. Either limit may be zero to disable
// it. With ArchivePath set, each batch is exported as JSON before it is
// deleted. Start runs the pruner on a cron schedule (robfig/cron standard
// five-field syntax) until the context is cancelled.
package retention
