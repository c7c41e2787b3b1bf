// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure-Go translation of SQLite — no CGo, no C
// compiler, cross-compiles anywhere Go does. It registers itself with
// database/sql as the "sqlite" driver via its init function, which is why
// it is blank-imported below.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
)

// SQLite extended result codes for UNIQUE constraint violations.
// 2067 = SQLITE_CONSTRAINT_UNIQUE, 1555 = SQLITE_CONSTRAINT_PRIMARYKEY.
const (
	codeConstraintUnique     = 2067
	codeConstraintPrimaryKey = 1555
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces. The service layer sees only those interfaces; everything
// SQLite-specific (PRAGMAs, error codes, migrations) stays in here.
type DB struct {
	conn *sql.DB
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// ResetTokens returns the password-reset-token repository backed by this
// database.
func (db *DB) ResetTokens() *ResetTokenDB {
	return &ResetTokenDB{conn: db.conn}
}

// New opens (or creates) the SQLite database at dbPath and runs
// migrations. Use ":memory:" for an in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open only creates the pool; Ping forces a real connection so a
	// bad path surfaces here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress — two
	// logins don't queue behind a registration.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. We need them on: reset
	// tokens must cascade away when their user is deleted, or a deleted
	// account would leave a live credential behind.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent across restarts.
//
// Uniqueness invariants live here, in the schema, not in application
// code: email (case-insensitive via COLLATE NOCASE), google_id, and the
// reset token value are all UNIQUE indexes, so concurrent writers race
// on the constraint and exactly one wins.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL COLLATE NOCASE UNIQUE,
			password_hash TEXT,
			google_id     TEXT UNIQUE,
			name          TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS password_reset_tokens (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token      TEXT NOT NULL UNIQUE,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_reset_tokens_user_id
			ON password_reset_tokens(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating password_reset_tokens table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE (or primary key)
// constraint failure from the sqlite driver. Repositories translate
// these into apperror.Conflict so the service layer never parses driver
// errors.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == codeConstraintUnique || code == codeConstraintPrimaryKey
}
