package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// InitLocationDB opens the location history database and creates its tables.
func InitLocationDB(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open location database: %w", err)
	}

	// enable write-ahead logging so resolves are not blocked by a checkpoint
	if _, err = db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode on location database: %w", err)
	}

	sqlStmt := `
	CREATE TABLE IF NOT EXISTS locations (
		timestamp INTEGER NOT NULL,
		lat INTEGER NOT NULL,
		lng INTEGER NOT NULL,
		accuracy INTEGER
	);
	CREATE INDEX IF NOT EXISTS locations_timestamp_idx ON locations (timestamp);
	CREATE TABLE IF NOT EXISTS history_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		source_path TEXT NOT NULL,
		modified_unix INTEGER NOT NULL,
		size INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		sample_count INTEGER NOT NULL
	);
	`
	if _, err = db.Exec(sqlStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create location tables: %w", err)
	}

	return db, nil
}
