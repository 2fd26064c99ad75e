// Package database owns the SQLite message store: connection setup,
// schema migration, the Message model, and the Store access layer.
package database

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/signalbot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// NewDB opens the SQLite file at dbPath and brings its schema up to date.
func NewDB(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// SQLite allows one writer at a time; a single connection keeps the
	// connection manager and the maintenance job from tripping over locks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrateSchema(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after failed migration", "error", closeErr)
		}
		return nil, err
	}

	slog.Info("Message store ready", "path", ExtractDBNameFromPath(dbPath))
	return db, nil
}

// CloseDB closes the connection pool, logging instead of failing.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database", "error", err)
	}
}

// migrateSchema applies the embedded migration files. An already
// up-to-date schema is not an error.
func migrateSchema(db *sqlx.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("Schema already up to date")
			return nil
		}
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	slog.Info("Schema migrations applied")
	return nil
}

// ExtractDBNameFromPath reduces a DSN-style path ("file:x.db?cache=shared",
// percent-escaped variants) to the plain file path.
func ExtractDBNameFromPath(path string) string {
	path = strings.TrimPrefix(path, "file:")
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}
