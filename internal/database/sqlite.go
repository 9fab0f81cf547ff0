package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// MemorySQLite is the SQLITE_PATH value for a private in-memory database.
const MemorySQLite = ":memory:"

// NewSQLite opens a single-connection SQLite database at path and creates
// the record table if needed. The path's directory is created when missing.
func NewSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if path != MemorySQLite {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One connection: an in-memory database exists per connection, and a
	// single writer avoids SQLITE_BUSY on files.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db, path); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sql.DB, path string) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	if path != MemorySQLite {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	return nil
}

// initSchema mirrors db/migrations for SQLite, which golang-migrate is not
// wired for here.
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS calendar_records (
		name        TEXT PRIMARY KEY,
		entry       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_at  INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return fmt.Errorf("creating sqlite schema: %w", err)
	}
	return nil
}
