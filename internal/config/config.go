// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// HTTP holds listener-facing settings.
	HTTP HTTPConfig

	// Store selects and configures the record store backend.
	Store StoreConfig

	// Database holds MariaDB connection settings (STORE_DRIVER=mysql).
	Database DatabaseConfig

	// SQLite holds embedded database settings (STORE_DRIVER=sqlite).
	SQLite SQLiteConfig

	// Redis holds Redis connection settings (STORE_DRIVER=redis).
	Redis RedisConfig

	// Auth holds API key settings for mutating endpoints.
	Auth AuthConfig

	// Calendar holds calendar engine defaults.
	Calendar CalendarConfig

	// Backup holds the scheduled export settings.
	Backup BackupConfig
}

// HTTPConfig holds settings for the HTTP surface.
type HTTPConfig struct {
	// TrustedProxies lists CIDRs whose X-Forwarded-For header is believed
	// when resolving the client IP (default: loopback and private ranges).
	TrustedProxies []string

	// RateLimit is the number of mutating requests allowed per client IP in
	// each RateWindow (default: 120 per minute).
	RateLimit  int
	RateWindow time.Duration
}

// Record store drivers accepted in STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// StoreConfig selects the record store backend.
type StoreConfig struct {
	// Driver is one of DriverMySQL, DriverSQLite or DriverRedis
	// (default: "sqlite").
	Driver string

	// MigrationsPath is the directory of MariaDB migrations (default: "db/migrations").
	MigrationsPath string
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently.
// If DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "turnclock").
	User string

	// Password is the MariaDB password (default: "turnclock").
	Password string

	// Name is the database name (default: "turnclock").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// SQLiteConfig holds embedded database settings.
type SQLiteConfig struct {
	// Path is the database file, or ":memory:" (default: "./data/turnclock.db").
	Path string
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string

	// Prefix namespaces every record key (default: "turnclock:").
	Prefix string
}

// AuthConfig holds API key settings.
type AuthConfig struct {
	// APIKeyHash is a bcrypt hash of the key required on mutating requests.
	// Empty disables the check, which is only allowed in development.
	APIKeyHash string
}

// CalendarConfig holds calendar engine defaults.
type CalendarConfig struct {
	// SeedPath is an optional YAML seed used instead of the built-in default
	// calendar when a calendar has no configuration record yet.
	SeedPath string

	// DefaultName is the calendar instance used by the CLI and the landing
	// route (default: "default").
	DefaultName string
}

// BackupConfig holds scheduled backup settings for the server.
type BackupConfig struct {
	// Schedule is a five-field cron expression (e.g. "0 4 * * *"). Empty disables
	// scheduled backups.
	Schedule string

	// Dir receives one zstd-compressed export per calendar per run
	// (default: "./data/backups").
	Dir string

	// Keep is how many backups per calendar survive pruning (default: 7).
	// Zero keeps everything.
	Keep int
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		HTTP: HTTPConfig{
			TrustedProxies: getEnvList("TRUSTED_PROXIES",
				[]string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fd00::/8"}),
			RateLimit:  getEnvInt("RATE_LIMIT", 120),
			RateWindow: getEnvDuration("RATE_WINDOW", time.Minute),
		},

		Store: StoreConfig{
			Driver:         strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "turnclock"),
			Password:        getEnv("DB_PASSWORD", "turnclock"),
			Name:            getEnv("DB_NAME", "turnclock"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "./data/turnclock.db"),
		},

		Redis: RedisConfig{
			URL:    getEnv("REDIS_URL", "redis://localhost:6379"),
			Prefix: getEnv("REDIS_PREFIX", "turnclock:"),
		},

		Auth: AuthConfig{
			APIKeyHash: getEnv("API_KEY_HASH", ""),
		},

		Calendar: CalendarConfig{
			SeedPath:    getEnv("CALENDAR_SEED", ""),
			DefaultName: getEnv("DEFAULT_CALENDAR", "default"),
		},

		Backup: BackupConfig{
			Schedule: strings.TrimSpace(getEnv("BACKUP_SCHEDULE", "")),
			Dir:      getEnv("BACKUP_DIR", "./data/backups"),
			Keep:     getEnvInt("BACKUP_KEEP", 7),
		},
	}

	switch cfg.Store.Driver {
	case DriverMySQL, DriverSQLite, DriverRedis:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be one of mysql, sqlite, redis; got %q", cfg.Store.Driver)
	}
	for _, cidr := range cfg.HTTP.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid CIDR %q", cidr)
		}
	}
	if cfg.HTTP.RateLimit < 1 {
		return nil, fmt.Errorf("RATE_LIMIT must be positive")
	}
	if strings.Contains(cfg.Calendar.DefaultName, "/") || strings.TrimSpace(cfg.Calendar.DefaultName) == "" {
		return nil, fmt.Errorf("DEFAULT_CALENDAR must be a non-empty name without '/'")
	}

	if cfg.Backup.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Backup.Schedule); err != nil {
			return nil, fmt.Errorf("BACKUP_SCHEDULE: %w", err)
		}
	}
	if cfg.Backup.Keep < 0 {
		return nil, fmt.Errorf("BACKUP_KEEP must not be negative")
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Auth.APIKeyHash == "" {
			return nil, fmt.Errorf("API_KEY_HASH is required in production")
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var or returns the default. An empty
// value yields an empty list.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
