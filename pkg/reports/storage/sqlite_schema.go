package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the report archive tables. Timestamps are stored as Unix
// nanoseconds so both sqlite drivers compare them the same way.
const Schema = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    pass_id TEXT NOT NULL,

    pass_time INTEGER NOT NULL,
    recorded_time INTEGER NOT NULL,

    event TEXT NOT NULL,
    has_errors BOOLEAN NOT NULL,
    error_count INTEGER NOT NULL,
    system_count INTEGER NOT NULL,
    field_ids TEXT,
    rule_ids TEXT,

    report_hash TEXT NOT NULL,
    rule_source TEXT,
    rule_version TEXT,

    report TEXT NOT NULL
);

-- One row per (report, field, rule) that failed; drives field and rule filters.
CREATE TABLE IF NOT EXISTS report_errors (
    report_id TEXT NOT NULL,
    field_id TEXT NOT NULL,
    rule_id TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (report_id, field_id, rule_id)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_pass_time ON reports(pass_time);
CREATE INDEX IF NOT EXISTS idx_reports_pass_id ON reports(pass_id);
CREATE INDEX IF NOT EXISTS idx_reports_has_errors ON reports(has_errors);
CREATE INDEX IF NOT EXISTS idx_report_errors_field ON report_errors(field_id);
CREATE INDEX IF NOT EXISTS idx_report_errors_rule ON report_errors(rule_id);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
