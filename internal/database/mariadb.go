package database

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "mysql" driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/turnclock/internal/config"
)

// NewMariaDB opens the MariaDB pool used by the SQL record store and waits
// until the server accepts connections.
func NewMariaDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	// The record store issues short single-row queries; a small pool with
	// recycled connections is enough.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitReady(context.Background(), "mariadb", startupRetry, db.PingContext); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
