package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Dialect selects the SQL flavour a SQLRepository speaks.
type Dialect string

// Supported SQL dialects.
const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// sqlRepo stores records in the calendar_records table.
type sqlRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRepository creates a Repository backed by a MariaDB or SQLite pool.
func NewSQLRepository(db *sql.DB, dialect Dialect) Repository {
	return &sqlRepo{db: db, dialect: dialect}
}

// upsertSQL returns the dialect's insert-or-replace statement.
func (r *sqlRepo) upsertSQL() string {
	if r.dialect == DialectSQLite {
		return `INSERT INTO calendar_records (name, entry, description, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		    entry = excluded.entry,
		    description = excluded.description,
		    updated_at = excluded.updated_at`
	}
	return `INSERT INTO calendar_records (name, entry, description, updated_at)
	 VALUES (?, ?, ?, ?)
	 ON DUPLICATE KEY UPDATE
	    entry = VALUES(entry),
	    description = VALUES(description),
	    updated_at = VALUES(updated_at)`
}

// scanRecord reads a row into a Record.
func scanRecord(scanner interface{ Scan(...any) error }) (*Record, error) {
	rec := &Record{}
	var updated int64
	if err := scanner.Scan(&rec.Name, &rec.Entry, &rec.Description, &updated); err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return rec, nil
}

// Get returns a record by name, or nil if it does not exist.
func (r *sqlRepo) Get(ctx context.Context, name string) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT name, entry, description, updated_at FROM calendar_records WHERE name = ?`, name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", name, err)
	}
	return rec, nil
}

// Upsert creates or replaces a record. A zero UpdatedAt is stamped with the
// current time.
func (r *sqlRepo) Upsert(ctx context.Context, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, r.upsertSQL(),
		rec.Name, rec.Entry, rec.Description, rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert record %q: %w", rec.Name, err)
	}
	return nil
}

// List returns every record ordered by name.
func (r *sqlRepo) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, entry, description, updated_at FROM calendar_records ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Delete removes a record by name.
func (r *sqlRepo) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calendar_records WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete record %q: %w", name, err)
	}
	return nil
}
