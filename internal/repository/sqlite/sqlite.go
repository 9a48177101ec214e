// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - Single-server deployments (which is most apps, honestly)
// - Development and testing (use ":memory:" for an in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// DATABASE/SQL OVERVIEW:
// Go's standard library provides "database/sql" — a generic interface for SQL databases.
// It works with any database through "drivers" (SQLite, Postgres, MySQL, etc.).
// Key types:
//   - sql.DB      — a connection pool (NOT a single connection!)
//   - sql.Tx      — a transaction
//   - sql.Row     — a single result row
//   - sql.Rows    — multiple result rows (must be closed!)
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// NON-BLANK IMPORT:
	// Most driver imports are `_ "modernc.org/sqlite"` — side-effect only, to
	// register the driver with database/sql. We import it with a name because
	// we also inspect *sqlite.Error to classify constraint violations
	// (unique vs foreign key) into domain errors.
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// poolMaxConns caps concurrent connections. Callers beyond the cap block on
// acquire (bounded by busyTimeoutMS at the SQLite level) rather than failing
// immediately.
const (
	poolMaxConns  = 20
	busyTimeoutMS = 2000
)

// DB wraps a sql.DB connection pool and provides repository methods.
//
// WHY WRAP sql.DB IN A STRUCT?
// 1. We can attach methods to it (Create, GetByPuzzleID, AddLike, etc.)
// 2. We can add more fields later (logger, config, prepared statements)
// 3. It implements the repository interfaces from repository.go
// 4. We control the lifecycle (New creates it, Close destroys it)
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/pips.db"  → file-based database (persistent)
//   - ":memory:"      → in-memory database (great for tests, lost on close)
//
// CONNECTION POOL:
// sql.Open() does NOT actually open a connection — it just creates a pool manager.
// The first real connection happens when you run your first query.
// We call db.Ping() to force an immediate connection and verify it works.
//
// PRAGMA STATEMENTS, AND WHY THEY RIDE IN THE DSN:
// SQLite has special "PRAGMA" commands that configure its behaviour — but a
// pragma applies to ONE connection, and sql.DB is a pool of up to twenty.
// Running `conn.Exec("PRAGMA ...")` would configure only whichever single
// connection the pool happened to hand out for that statement; every other
// connection would keep SQLite's defaults (foreign keys OFF, no busy
// timeout), so cascades would silently stop firing as soon as a second
// connection opened. The _pragma query parameters below make the driver
// apply them to EVERY connection it opens:
//
//   - journal_mode(WAL): default SQLite locks the whole database during
//     writes; WAL (Write-Ahead Logging) allows concurrent reads WHILE a
//     write is happening — critical for a web server.
//   - foreign_keys(1): foreign keys are OFF by default (for backwards
//     compatibility). We need them ON: deleting a user must cascade to
//     their puzzles and likes, and deleting a puzzle to its likes.
//   - busy_timeout: bounds how long a statement waits for a locked database
//     before returning SQLITE_BUSY. This is our acquire timeout: blocked
//     writers wait up to 2s, then the error surfaces to the caller.
func New(dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)",
		dbPath, busyTimeoutMS,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Cap the pool. database/sql blocks callers on acquire once the cap is
	// reached — they wait (or honour their context deadline) instead of
	// erroring out under load.
	conn.SetMaxOpenConns(poolMaxConns)
	conn.SetMaxIdleConns(poolMaxConns)

	// Ping verifies the connection actually works.
	// Without this, a bad path or permissions issue would only surface
	// on the first query — which is much harder to debug.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	// Run database migrations to create/update tables
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
//
// ALWAYS DEFER CLOSE:
// Wherever you call New(), immediately defer Close():
//
//	db, err := sqlite.New("data/pips.db")
//	if err != nil { ... }
//	defer db.Close()
//
// This ensures the connection is cleaned up even if a panic occurs.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the pool can still reach the database.
// Used by the /healthz endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithTx runs fn inside a transaction.
//
// THE ONE INVARIANT EVERYTHING HERE DEPENDS ON:
// the transaction's connection is released on EVERY exit path. Commit on
// success, rollback on error, and rollback on panic (the deferred call) —
// then the panic is re-raised. If a connection ever leaked here, the pool
// would eventually drain and every request would hang.
//
// Errors from fn propagate unmodified, so callers can still classify them
// (constraint violations, sql.ErrNoRows, ...) after the rollback.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	// Rollback after Commit is a harmless no-op (returns sql.ErrTxDone),
	// which lets one deferred call cover the error and panic paths.
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}

	return nil
}

// migrate runs all database migrations.
//
// MIGRATIONS:
// Embedding SQL as constants with CREATE TABLE IF NOT EXISTS is safe to run
// on every startup — it won't error if the tables exist. A tool like
// golang-migrate becomes worthwhile once the schema needs versioned ALTERs.
func (db *DB) migrate() error {
	// users first — puzzles and user_likes reference it.
	// google_id is UNIQUE but nullable: legacy rows imported before OAuth
	// have no subject id. email is the fallback unique identity.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			google_id  TEXT UNIQUE,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			picture    TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// puzzles: puzzle_id is the public 8-char id, UNIQUE so user_likes can
	// reference it directly. The board fields hold JSON text. likes is the
	// denormalized counter maintained by the like transaction.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS puzzles (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			puzzle_id    TEXT NOT NULL UNIQUE,
			user_id      INTEGER REFERENCES users(id) ON DELETE CASCADE,
			row_data     TEXT NOT NULL,
			regions_data TEXT NOT NULL,
			dice_data    TEXT NOT NULL,
			likes        INTEGER NOT NULL DEFAULT 0,
			is_verified  INTEGER NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_puzzles_created_at ON puzzles(created_at);
		CREATE INDEX IF NOT EXISTS idx_puzzles_likes ON puzzles(likes);
		CREATE INDEX IF NOT EXISTS idx_puzzles_user_id ON puzzles(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating puzzles table: %w", err)
	}

	// user_likes: UNIQUE(user_id, puzzle_id) is the real source of truth for
	// "has this user liked this puzzle" — the counter on puzzles is a cache.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_likes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			puzzle_id  TEXT NOT NULL REFERENCES puzzles(puzzle_id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, puzzle_id)
		);
		CREATE INDEX IF NOT EXISTS idx_user_likes_user_id ON user_likes(user_id);
		CREATE INDEX IF NOT EXISTS idx_user_likes_puzzle_id ON user_likes(puzzle_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user_likes table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE (or PRIMARY KEY)
// constraint failure.
//
// modernc.org/sqlite returns *sqlite.Error with SQLite's extended result
// codes. We check the code rather than matching on the message string —
// messages change between SQLite versions, codes don't.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY constraint
// failure — e.g. inserting a like for a puzzle_id that doesn't exist.
func isForeignKeyViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}
