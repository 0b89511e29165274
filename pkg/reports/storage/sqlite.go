package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/validation/engine"
)

// Driver names registered by the two sqlite packages.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

const defaultQueryLimit = 100

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: DriverCGO or DriverPure.
	// Default: DriverCGO
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/reports.db",
		Driver:       DriverCGO,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements reports.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, applies pragmas and creates the schema.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverCGO
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reports.storage.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, reports.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return reports.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if s.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(pragma); err != nil {
			return reports.NewStorageError("sqlite", "set_busy_timeout", err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return reports.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return reports.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return reports.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return reports.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store persists a record and its field/rule index rows in one transaction.
func (s *SQLiteStorage) Store(ctx context.Context, record *reports.Record) error {
	reportJSON, err := json.Marshal(record.Report)
	if err != nil {
		return reports.NewStorageError("sqlite", "marshal", err)
	}
	fieldIDs, _ := json.Marshal(record.FieldIDs)
	ruleIDs, _ := json.Marshal(record.RuleIDs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return reports.NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (
			id, event_id, pass_id,
			pass_time, recorded_time,
			event, has_errors, error_count, system_count, field_ids, rule_ids,
			report_hash, rule_source, rule_version,
			report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.EventID, record.PassID,
		record.PassTime.UnixNano(), record.RecordedTime.UnixNano(),
		record.Event, record.HasErrors, record.ErrorCount, record.SystemCount, string(fieldIDs), string(ruleIDs),
		record.ReportHash, nullString(record.RuleSource), nullString(record.RuleVersion),
		string(reportJSON),
	)
	if err != nil {
		return reports.NewStorageError("sqlite", "store", err)
	}

	for _, row := range errorRows(record.Report) {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO report_errors (report_id, field_id, rule_id) VALUES (?, ?, ?)`,
			record.ID, row.fieldID, row.ruleID,
		)
		if err != nil {
			return reports.NewStorageError("sqlite", "store_errors", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return reports.NewStorageError("sqlite", "commit", err)
	}
	return nil
}

const selectColumns = `
	id, event_id, pass_id, pass_time, recorded_time,
	event, has_errors, error_count, system_count, field_ids, rule_ids,
	report_hash, rule_source, rule_version, report`

// Get returns the record with id.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*reports.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT"+selectColumns+" FROM reports WHERE id = ?", id)
	if err != nil {
		return nil, reports.NewStorageError("sqlite", "get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, reports.NewStorageError("sqlite", "get", err)
		}
		return nil, fmt.Errorf("%w: %s", reports.ErrNotFound, id)
	}
	record, err := scanRecord(rows)
	if err != nil {
		return nil, reports.NewStorageError("sqlite", "scan", err)
	}
	return record, nil
}

// Query retrieves records matching q, newest first unless q.SortOrder is "asc".
func (s *SQLiteStorage) Query(ctx context.Context, q *reports.Query) ([]*reports.Record, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "SELECT" + selectColumns + " FROM reports"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	order := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY pass_time %s, id %s", order, order)

	limit := defaultQueryLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, reports.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*reports.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, reports.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, reports.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of records matching q.
func (s *SQLiteStorage) Count(ctx context.Context, q *reports.Query) (int64, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "SELECT COUNT(*) FROM reports"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, reports.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes records matching q along with their index rows.
func (s *SQLiteStorage) Delete(ctx context.Context, q *reports.Query) (int64, error) {
	where, args := buildWhereClause(q)
	match := "SELECT id FROM reports"
	if where != "" {
		match += " WHERE " + where
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, reports.NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM report_errors WHERE report_id IN ("+match+")", args...); err != nil {
		return 0, reports.NewStorageError("sqlite", "delete_errors", err)
	}

	sqlQuery := "DELETE FROM reports"
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	result, err := tx.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, reports.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, reports.NewStorageError("sqlite", "delete", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, reports.NewStorageError("sqlite", "commit", err)
	}
	return count, nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return reports.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return reports.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// buildWhereClause returns the WHERE clause (without the keyword) and its arguments.
func buildWhereClause(q *reports.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.StartTime != nil {
		conditions = append(conditions, "pass_time >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "pass_time <= ?")
		args = append(args, q.EndTime.UnixNano())
	}
	if q.PassID != "" {
		conditions = append(conditions, "pass_id = ?")
		args = append(args, q.PassID)
	}
	if q.FieldID != "" {
		conditions = append(conditions, "id IN (SELECT report_id FROM report_errors WHERE field_id = ?)")
		args = append(args, q.FieldID)
	}
	if q.RuleID != "" {
		conditions = append(conditions, "id IN (SELECT report_id FROM report_errors WHERE rule_id = ?)")
		args = append(args, q.RuleID)
	}
	switch q.Status {
	case reports.StatusFailed:
		conditions = append(conditions, "has_errors = 1")
	case reports.StatusPassed:
		conditions = append(conditions, "has_errors = 0")
	}

	return strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*reports.Record, error) {
	var (
		record                 reports.Record
		passTime, recordedTime int64
		fieldIDs, ruleIDs      sql.NullString
		ruleSource, ruleVer    sql.NullString
		reportJSON             string
	)

	err := rows.Scan(
		&record.ID, &record.EventID, &record.PassID, &passTime, &recordedTime,
		&record.Event, &record.HasErrors, &record.ErrorCount, &record.SystemCount, &fieldIDs, &ruleIDs,
		&record.ReportHash, &ruleSource, &ruleVer, &reportJSON,
	)
	if err != nil {
		return nil, err
	}

	record.PassTime = time.Unix(0, passTime).UTC()
	record.RecordedTime = time.Unix(0, recordedTime).UTC()
	record.RuleSource = ruleSource.String
	record.RuleVersion = ruleVer.String

	if fieldIDs.Valid && fieldIDs.String != "" {
		if err := json.Unmarshal([]byte(fieldIDs.String), &record.FieldIDs); err != nil {
			return nil, fmt.Errorf("decode field_ids: %w", err)
		}
	}
	if ruleIDs.Valid && ruleIDs.String != "" {
		if err := json.Unmarshal([]byte(ruleIDs.String), &record.RuleIDs); err != nil {
			return nil, fmt.Errorf("decode rule_ids: %w", err)
		}
	}

	var report engine.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	report.Fields = record.FieldIDs
	record.Report = &report

	return &record, nil
}

type errorRow struct {
	fieldID string
	ruleID  string
}

// errorRows flattens a report into distinct (field, rule) pairs.
func errorRows(report *engine.Report) []errorRow {
	if report == nil {
		return nil
	}
	seen := make(map[errorRow]struct{})
	var rows []errorRow
	for fieldID, errs := range report.Details {
		for _, e := range errs {
			row := errorRow{fieldID: fieldID, ruleID: e.RuleID}
			if _, ok := seen[row]; ok {
				continue
			}
			seen[row] = struct{}{}
			rows = append(rows, row)
		}
	}
	return rows
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
