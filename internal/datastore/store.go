// Package datastore exports research results to SQLite, either a local
// file or a remote Datasette instance.
package datastore

// Store receives flat research result rows. ExportResults drives it in
// the order Connect, CreateTable, BatchInsert, Close.
type Store interface {
	Connect() error
	// CreateTable applies an idempotent schema such as ResultsSchema.
	CreateTable(schema string) error
	// BatchInsert writes all records or none. Remote stores route by
	// database; a local file ignores it.
	BatchInsert(database string, table string, records []map[string]any) error
	Close() error
}
