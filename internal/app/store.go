package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/turnclock/internal/config"
	"github.com/keyxmakerx/turnclock/internal/database"
	"github.com/keyxmakerx/turnclock/internal/plugins/records"
)

// Store is the opened record store together with the connection behind it.
type Store struct {
	Driver  string
	Records records.Repository

	db  *sql.DB
	rdb *redis.Client
}

// OpenStore connects to the backend selected by STORE_DRIVER. MariaDB gets
// its migrations applied; SQLite creates its schema on open.
func OpenStore(cfg *config.Config) (*Store, error) {
	st := &Store{Driver: cfg.Store.Driver}
	switch cfg.Store.Driver {
	case config.DriverMySQL:
		db, err := database.NewMariaDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(db, cfg.Store.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
		st.db = db
		st.Records = records.NewSQLRepository(db, records.DialectMySQL)

	case config.DriverSQLite:
		db, err := database.NewSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		st.db = db
		st.Records = records.NewSQLRepository(db, records.DialectSQLite)

	case config.DriverRedis:
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		st.rdb = rdb
		st.Records = records.NewRedisRepository(rdb, cfg.Redis.Prefix)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	slog.Info("record store opened", slog.String("driver", cfg.Store.Driver))
	return st, nil
}

// NewMemoryStore opens a private in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	db, err := database.NewSQLite(database.MemorySQLite)
	if err != nil {
		return nil, err
	}
	return &Store{
		Driver:  config.DriverSQLite,
		Records: records.NewSQLRepository(db, records.DialectSQLite),
		db:      db,
	}, nil
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	switch {
	case s.db != nil:
		return s.db.PingContext(ctx)
	case s.rdb != nil:
		return s.rdb.Ping(ctx).Err()
	}
	return nil
}

// Close releases the backend connection.
func (s *Store) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	return errors.Join(errs...)
}
