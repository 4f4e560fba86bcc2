package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Backend selects which SQL dialect a Store connects to.
type Backend string

const (
	// BackendSQLite is the default, single-node backend: one file per
	// deployment, suitable for a single KDC host driving its own
	// rotations.
	BackendSQLite Backend = "sqlite"

	// BackendPostgres lets several hosts' sessions (and, in a
	// multi-process inetd deployment, several forked sessions) share
	// one rotation store.
	BackendPostgres Backend = "postgres"
)

// Config configures how Open connects to the rotation store.
type Config struct {
	Backend Backend

	// SQLitePath is the database file path when Backend is
	// BackendSQLite.
	SQLitePath string

	// PostgresDSN is the libpq-style connection string when Backend
	// is BackendPostgres.
	PostgresDSN string
}

// Store wraps a *gorm.DB bound to the rotation schema.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured backend and ensures the schema
// exists, migrating it if necessary.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector

	switch cfg.Backend {
	case "", BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			return nil, fmt.Errorf("store: sqlite path is required")
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return nil, fmt.Errorf("store: create database directory: %w", err)
			}
			path += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(path)

	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("store: postgres DSN is required")
		}
		dialector = postgres.Open(cfg.PostgresDSN)

	default:
		return nil, fmt.Errorf("store: unsupported backend %q", cfg.Backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying *gorm.DB for tests and advanced queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
