// Package export writes archived report records as JSON or CSV.
//
// The JSON form is the full record including the engine report. The CSV
// form has one row per validation error, ordered by the report's field
// order, for loading into spreadsheets.
package export
