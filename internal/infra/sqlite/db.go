// Package sqlite is the record store: one table per collection on a local
// SQLite file (pure-Go driver, no CGO). It implements domain.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/tally-books/tally/internal/domain"
)

// FileName is the database file created inside the data directory.
const FileName = "tally.db"

// querier is the subset of *sql.DB and *sql.Tx the collections use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is the record store handle.
type DB struct {
	db   *sql.DB
	q    querier
	path string
}

var _ domain.Store = (*DB)(nil)

// Open opens (creating if needed) the database in dir and applies the schema.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(0)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Single writer; also keeps RunInTx from competing with itself.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB, q: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close releases the database.
func (db *DB) Close() error {
	return db.db.Close()
}

// Path returns the database file location.
func (db *DB) Path() string { return db.path }

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RunInTx runs fn against a transactional view of the store. A nil return
// commits every write fn made; an error or panic rolls all of them back.
// Nested calls reuse the outer transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(tx domain.Records) error) (err error) {
	if _, nested := db.q.(*sql.Tx); nested {
		return fn(db)
	}
	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Storage("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, domain.Storage("rollback", rbErr))
			}
			return
		}
		if cErr := sqlTx.Commit(); cErr != nil {
			err = domain.Storage("commit", cErr)
		}
	}()
	return fn(&DB{db: db.db, q: sqlTx, path: db.path})
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per entry (SQLite executes
// one at a time). References between collections are plain integer columns;
// the ledger engine validates them, not the store.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS categories (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL,
			brand         TEXT NOT NULL DEFAULT '',
			category_id   INTEGER NOT NULL DEFAULT 0,
			cost_price    REAL NOT NULL DEFAULT 0,
			selling_price REAL NOT NULL DEFAULT 0,
			stock         INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,

		`CREATE TABLE IF NOT EXISTS exchange_rates (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			name              TEXT NOT NULL DEFAULT '',
			symbol            TEXT NOT NULL UNIQUE COLLATE NOCASE,
			rate              REAL NOT NULL,
			is_base           INTEGER NOT NULL DEFAULT 0,
			conversion_factor REAL NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS creditors_debtors (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			name    TEXT NOT NULL,
			type    TEXT NOT NULL,
			balance REAL NOT NULL DEFAULT 0,
			phone   TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			notes   TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			type            TEXT NOT NULL,
			amount          REAL NOT NULL,
			currency_id     INTEGER NOT NULL,
			product_id      INTEGER,
			quantity        INTEGER NOT NULL DEFAULT 0,
			party_id        INTEGER,
			party_name      TEXT NOT NULL DEFAULT '',
			description     TEXT NOT NULL DEFAULT '',
			date            TEXT NOT NULL,
			base_amount     REAL NOT NULL DEFAULT 0,
			prev_cost_price REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_party ON transactions(party_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_product ON transactions(product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_date ON transactions(date)`,

		`CREATE TABLE IF NOT EXISTS settings (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			base_currency TEXT NOT NULL DEFAULT '',
			language      TEXT NOT NULL DEFAULT '',
			date_format   TEXT NOT NULL DEFAULT ''
		)`,
	}
}

// Collections lists the table names in export order.
func Collections() []string {
	return []string{
		"users", "categories", "products", "exchange_rates",
		"transactions", "creditors_debtors", "settings",
	}
}
