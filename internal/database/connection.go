package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite3  = "sqlite3"  // mattn/go-sqlite3, cgo
	DriverSQLite   = "sqlite"   // modernc.org/sqlite, pure Go
	DriverPostgres = "postgres" // lib/pq
)

// Options configures a database connection
type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Connect opens the database, applies connection settings and creates the
// schema if it does not exist yet.
func Connect(ctx context.Context, opts Options) (*sqlx.DB, error) {
	if isSQLite(opts.Driver) {
		if err := ensureDataDir(opts.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.ConnectContext(ctx, opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite(opts.Driver) {
		// SQLite allows one writer; in-memory databases also live on a single connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates the tables and indexes used by the application.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func isSQLite(driver string) bool {
	return driver == DriverSQLite3 || driver == DriverSQLite
}

// ensureDataDir creates the parent directory of a file-backed SQLite DSN.
func ensureDataDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Column types are chosen so the same statements run on SQLite and Postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		telegram_id BIGINT UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		notification_hour INTEGER NOT NULL DEFAULT 9,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS decks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS phrases (
		id TEXT PRIMARY KEY,
		phrase TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		deck_id TEXT NOT NULL REFERENCES decks(id),
		phrase_id TEXT NOT NULL REFERENCES phrases(id),
		easiness_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
		interval_days INTEGER NOT NULL DEFAULT 0,
		repetitions INTEGER NOT NULL DEFAULT 0,
		next_review_date TIMESTAMP NOT NULL,
		last_reviewed_at TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (deck_id, phrase_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards (user_id, repetitions, next_review_date)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards (deck_id)`,
	`CREATE TABLE IF NOT EXISTS review_records (
		id TEXT PRIMARY KEY,
		card_id TEXT NOT NULL REFERENCES cards(id),
		grade TEXT NOT NULL,
		old_easiness_factor DOUBLE PRECISION NOT NULL,
		new_easiness_factor DOUBLE PRECISION NOT NULL,
		old_interval INTEGER NOT NULL,
		new_interval INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_records_card ON review_records (card_id)`,
}
