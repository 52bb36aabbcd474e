// Package store is the metadata store: full chunk records keyed by the
// same id space as the vector index, plus chat history.
package store

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

func init() {
	// modernc registers as "sqlite", which sqlx does not know out of
	// the box; it uses ? placeholders like sqlite3.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DB manages the SQLite connection and schema setup
type DB struct {
	sqlDB *sqlx.DB
	path  string
}

// Open opens or creates a database at the given path
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	sqlDB, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{sqlDB: sqlDB, path: path}
	if err := db.applySchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// SQLDB returns the underlying *sqlx.DB for direct queries
func (db *DB) SQLDB() *sqlx.DB {
	return db.sqlDB
}

func (db *DB) applySchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := db.sqlDB.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to exec schema: %w", err)
	}
	return nil
}
