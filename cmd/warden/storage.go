package main

import (
	"fmt"

	"mercator-hq/warden/pkg/audit"
	auditstorage "mercator-hq/warden/pkg/audit/storage"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/decision"
	"mercator-hq/warden/pkg/storage/sqlite"
)

// sqliteConfig converts the storage section into the shared SQLite config.
func sqliteConfig(cfg *config.SQLiteConfig) *sqlite.Config {
	return &sqlite.Config{
		Driver:       cfg.Driver,
		Path:         cfg.Path,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		WALMode:      cfg.WALMode,
		BusyTimeout:  cfg.BusyTimeout,
	}
}

// openStores opens the decision store and audit storage for the configured
// backend. Both SQLite stores share one database file.
func openStores(cfg *config.StorageConfig) (decision.Store, audit.Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		return decision.NewMemoryStore(), auditstorage.NewMemoryStorage(), nil

	case "sqlite":
		sc := sqliteConfig(&cfg.SQLite)
		decisions, err := decision.NewSQLiteStore(sc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open decision store: %w", err)
		}
		entries, err := auditstorage.NewSQLiteStorage(sc)
		if err != nil {
			decisions.Close()
			return nil, nil, fmt.Errorf("failed to open audit storage: %w", err)
		}
		return decisions, entries, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// openOffline opens the stores for a command that reads data written by a
// running server. Only SQLite keeps data between processes.
func openOffline(cfg *config.StorageConfig) (decision.Store, audit.Storage, error) {
	if cfg.Backend != "sqlite" {
		return nil, nil, fmt.Errorf("storage backend %q keeps no data between runs; configure storage.backend: sqlite", cfg.Backend)
	}
	return openStores(cfg)
}
