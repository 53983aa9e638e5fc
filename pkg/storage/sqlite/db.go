// Package sqlite opens SQLite databases shared by the audit log and the
// decision index.
//
// Two drivers are registered: "sqlite3" (github.com/mattn/go-sqlite3, cgo)
// and "sqlite" (modernc.org/sqlite, pure Go). Deployments built without cgo
// select the latter through configuration.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/warden/pkg/moderation"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver name.
	DriverCGO = "sqlite3"

	// DriverPure is the modernc.org/sqlite driver name.
	DriverPure = "sqlite"
)

// Config contains configuration for a SQLite database.
type Config struct {
	// Driver selects the database/sql driver: "sqlite3" or "sqlite".
	// Default: "sqlite3"
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default SQLite configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:       DriverCGO,
		Path:         "data/warden.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Open opens the database, applies the journal and busy-timeout pragmas, and
// creates the parent directory of Path if needed.
func Open(config *Config) (*sql.DB, error) {
	if config == nil {
		config = DefaultConfig()
	}
	driver := config.Driver
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPure {
		return nil, fmt.Errorf("unsupported sqlite driver %q (supported: %s, %s)", driver, DriverCGO, DriverPure)
	}

	logger := slog.Default().With("component", "storage.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, moderation.NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open(driver, config.Path)
	if err != nil {
		return nil, moderation.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	if config.WALMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, moderation.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := config.BusyTimeout.Milliseconds()
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		db.Close()
		return nil, moderation.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, moderation.NewStorageError("sqlite", "ping", err)
	}

	logger.Info("SQLite database opened",
		"driver", driver,
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return db, nil
}
