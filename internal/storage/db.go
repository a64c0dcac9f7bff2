// Package storage is the agent's typed SQLite data access layer: rate
// limit counters, platform cursors, discovered tweets, sent replies, the
// approval queue, per-author interaction counts, and the action log. No
// other package issues SQL directly.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Store wraps a single *sql.DB handle shared by every DAL method in this
// package. All methods are safe for concurrent use: the handle is limited
// to a single open connection, so queries and transactions run one at a
// time, and WAL mode is enabled at open time.
type Store struct {
	logger *logrus.Logger
	db     *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dbPath, applies
// pending migrations from migrationsPath, and returns a ready Store.
func Open(logger *logrus.Logger, dbPath, migrationsPath string) (*Store, error) {
	logger.WithField("db_path", dbPath).Debug("opening sqlite database")

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(logger, dbPath, migrationsPath); err != nil {
		return nil, err
	}

	logger.Info("database setup completed successfully")
	return &Store{logger: logger, db: db}, nil
}

func runMigrations(logger *logrus.Logger, dbPath, migrationsPath string) error {
	sourceURL := fmt.Sprintf("file://%s", migrationsPath)
	dbURL := fmt.Sprintf("sqlite3://%s", dbPath)

	logger.WithFields(logrus.Fields{
		"migrations_path": migrationsPath,
		"db_url":          dbURL,
	}).Debug("running database migrations")

	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindProjectRoot walks up from the working directory to the nearest
// go.mod, used to resolve the default migrations directory at boot.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (go.mod)")
		}
		dir = parent
	}
}
