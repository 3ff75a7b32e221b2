// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure-Go translation of SQLite — no CGo, no C toolchain, trivially
// cross-compiled, and ":memory:" databases make repository tests hermetic.
//
// QUERY SAFETY:
// Every statement in this package is parameterized. Caller-controlled values
// travel exclusively as bound parameters; the only identifiers that vary at
// runtime (sort columns, role filters) are translated through fixed
// allow-list maps before they touch SQL text. No function in this package
// builds a predicate by string formatting a caller value.
//
// TRANSACTIONS:
// Writes run inside an explicit transaction via withTx — commit on success,
// rollback on any error, so a failed call leaves the store in its pre-call
// state. LastInsertId is read inside the same transaction as its INSERT.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/repository"
)

// DB wraps the connection pool and exposes the per-entity repositories.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
//
// Pragmas travel in the DSN, not via Exec: database/sql hands Exec to one
// arbitrary pooled connection, so an Exec'd pragma would leave every other
// (and every later-opened) connection unconfigured. With _pragma in the DSN
// the driver applies them on each connection open.
//
//   - foreign_keys: off by default in SQLite; comments rely on it for
//     referential integrity.
//   - journal_mode(WAL): reads proceed while a write is in flight.
//   - busy_timeout: concurrent writers wait for the lock instead of
//     failing with SQLITE_BUSY.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection — with a pool, each new
	// connection would see an empty schema. Pin the pool to one connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer it next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the backend is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserRepo { return &UserRepo{db: db} }

// Posts returns the post repository backed by this database.
func (db *DB) Posts() *PostRepo { return &PostRepo{db: db} }

// Comments returns the comment repository backed by this database.
func (db *DB) Comments() *CommentRepo { return &CommentRepo{db: db} }

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			username            TEXT NOT NULL UNIQUE,
			email               TEXT NOT NULL UNIQUE,
			password_hash       TEXT NOT NULL,
			is_admin            INTEGER NOT NULL DEFAULT 0,
			is_active           INTEGER NOT NULL DEFAULT 1,
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			reset_token         TEXT,
			reset_token_expires DATETIME
		);

		CREATE TABLE IF NOT EXISTS posts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			author_id  INTEGER NOT NULL REFERENCES users(id),
			slug       TEXT NOT NULL,
			tags       TEXT NOT NULL DEFAULT '',
			published  INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_author_id  ON posts(author_id);
		CREATE INDEX IF NOT EXISTS idx_posts_slug       ON posts(slug);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);

		CREATE TABLE IF NOT EXISTS comments (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id     INTEGER NOT NULL REFERENCES posts(id),
			user_id     INTEGER NOT NULL REFERENCES users(id),
			content     TEXT NOT NULL,
			is_approved INTEGER NOT NULL DEFAULT 1,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction: commit if fn returns nil, rollback
// otherwise. Rollback after a successful commit is a no-op, so the defer is
// safe on every path, including panics.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// sortColumn translates a caller-chosen sort key into a fixed column name.
// Unknown keys fall back to created_at. This is the allow-list that keeps
// ORDER BY targets out of reach of caller input.
func sortColumn(key string) string {
	switch key {
	case "updated_at":
		return "updated_at"
	case "title":
		return "title"
	case "created_at", "":
		return "created_at"
	default:
		return "created_at"
	}
}

// clampList applies the default and maximum page size.
func clampList(opts repository.ListOptions) repository.ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}

// conflictError maps a UNIQUE-constraint failure onto the column that caused
// it, or returns nil if err is not a uniqueness violation. The driver
// reports constraint failures only through the error text, so we match on
// the table.column suffix SQLite always includes.
func conflictError(err error, resource string, columns ...string) *apperror.AppError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	for _, col := range columns {
		if strings.Contains(msg, col) {
			return apperror.Conflict(resource, strings.TrimPrefix(col, resource+"s.")+" taken")
		}
	}
	return apperror.Conflict(resource, "duplicate value")
}
