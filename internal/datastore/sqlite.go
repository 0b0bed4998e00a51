package datastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore exports result rows to a local SQLite file, typically
// datasette.dbfile, which Datasette can then serve as is.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{dbPath: dbPath}
}

// Connect opens the export database, creating its directory when needed.
func (s *SQLiteStore) Connect() error {
	if dir := filepath.Dir(s.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("opening export database %s: %w", s.dbPath, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("opening export database %s: %w", s.dbPath, err)
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) CreateTable(schema string) error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating export table in %s: %w", s.dbPath, err)
	}
	return nil
}

// BatchInsert writes records in one transaction. The column list comes
// from the first record; rows missing a column get NULL.
func (s *SQLiteStore) BatchInsert(_ string, table string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	columns := make([]string, 0, len(records[0]))
	for col := range records[0] {
		columns = append(columns, col)
	}
	slices.Sort(columns)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting export to %s: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("preparing export to %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	values := make([]any, len(columns))
	for n, record := range records {
		for i, col := range columns {
			values[i] = record[col]
		}
		if _, err := stmt.Exec(values...); err != nil {
			return fmt.Errorf("exporting row %d to %s: %w", n+1, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing export to %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
