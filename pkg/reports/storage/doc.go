// Package storage provides report archive backends.
//
// SQLiteStorage works with either sqlite driver: DriverCGO
// (github.com/mattn/go-sqlite3) or DriverPure (modernc.org/sqlite), chosen
// by SQLiteConfig.Driver. Field and rule filters use the report_errors
// table, which holds one row per distinct (field, rule) failure.
//
// MemoryStorage has the same ordering and filtering semantics and is used
// by tests and the "memory" backend.
package storage
