package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"

	// Reads migrations from a directory.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the MariaDB records schema up to date from the SQL
// files in dir. A schema left dirty by a failed migration is reported
// instead of migrated over.
func RunMigrations(db *sql.DB, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving migrations path: %w", err)
	}

	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), "mysql", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("records schema is dirty at version %d; repair it and force the version", version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	after, _, _ := m.Version()
	slog.Info("records schema ready",
		slog.Uint64("from", uint64(version)),
		slog.Uint64("version", uint64(after)),
	)
	return nil
}
