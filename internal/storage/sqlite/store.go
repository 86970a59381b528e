// Package sqlite provides SQLite-backed implementations of the storage
// contracts. The schema is bootstrapped on open and every engine write
// operation runs inside a database transaction via RunInTx.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"ledger-reconciliation-engine/internal/storage"
	pkgerrors "ledger-reconciliation-engine/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS bank_transactions (
	id                   TEXT PRIMARY KEY,
	date                 TEXT NOT NULL,
	amount               TEXT NOT NULL,
	direction            TEXT NOT NULL,
	narration            TEXT NOT NULL DEFAULT '',
	account_id           TEXT NOT NULL DEFAULT '',
	value_date           TEXT,
	reference            TEXT NOT NULL DEFAULT '',
	purpose              TEXT NOT NULL DEFAULT '',
	vendor               TEXT NOT NULL DEFAULT '',
	balance              TEXT,
	gstin                TEXT NOT NULL DEFAULT '',
	reconciled           INTEGER NOT NULL DEFAULT 0,
	reconciled_with_id   TEXT NOT NULL DEFAULT '',
	reconciled_with_type TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS card_transactions (
	id                   TEXT PRIMARY KEY,
	date                 TEXT NOT NULL,
	amount               TEXT NOT NULL,
	direction            TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	account_id           TEXT NOT NULL DEFAULT '',
	sync_source          TEXT NOT NULL DEFAULT '',
	reconciled           INTEGER NOT NULL DEFAULT 0,
	reconciled_with_id   TEXT NOT NULL DEFAULT '',
	reconciled_with_type TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS counterparty_transactions (
	id                 TEXT PRIMARY KEY,
	date               TEXT NOT NULL,
	amount             TEXT NOT NULL,
	txn_type           TEXT NOT NULL,
	party_name         TEXT NOT NULL DEFAULT '',
	internal_transfer  INTEGER NOT NULL DEFAULT 0,
	reconciled         INTEGER NOT NULL DEFAULT 0,
	reconciled_with_id TEXT NOT NULL DEFAULT '',
	fp_date            TEXT NOT NULL DEFAULT '',
	fp_amount          TEXT NOT NULL DEFAULT '',
	fp_narration       TEXT NOT NULL DEFAULT '',
	fp_account_id      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reconciliation_rules (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       TEXT NOT NULL,
	pattern_type  TEXT NOT NULL,
	pattern_value TEXT NOT NULL,
	party_name    TEXT NOT NULL,
	match_count   INTEGER NOT NULL DEFAULT 1,
	priority      INTEGER NOT NULL DEFAULT 0,
	is_active     INTEGER NOT NULL DEFAULT 1,
	UNIQUE(user_id, pattern_type, pattern_value)
);

CREATE TABLE IF NOT EXISTS match_records (
	id                          INTEGER PRIMARY KEY AUTOINCREMENT,
	match_group_id              TEXT NOT NULL,
	ledger_transaction_id       TEXT NOT NULL DEFAULT '',
	counterparty_transaction_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_bank_reconciled ON bank_transactions(reconciled, date);
CREATE INDEX IF NOT EXISTS idx_card_reconciled ON card_transactions(reconciled, date);
CREATE INDEX IF NOT EXISTS idx_cp_reconciled ON counterparty_transactions(reconciled, date);
CREATE INDEX IF NOT EXISTS idx_match_records_group ON match_records(match_group_id);
CREATE INDEX IF NOT EXISTS idx_match_records_ledger ON match_records(ledger_transaction_id);
CREATE INDEX IF NOT EXISTS idx_rules_user ON reconciliation_rules(user_id, is_active);
`

// dateLayout is the storage format for all date columns
const dateLayout = "2006-01-02"

// querier abstracts *sql.DB and *sql.Tx so the same store code serves both
// direct access and transactional closures.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store owns the database handle and implements storage.TxRunner.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for seeding and diagnostics
func (s *Store) DB() *sql.DB {
	return s.db
}

// Stores returns the store bundle backed by the database handle
func (s *Store) Stores() storage.Stores {
	return storesOver(s.db)
}

// RunInTx executes fn against transaction-scoped stores; all writes commit or
// roll back as one unit.
func (s *Store) RunInTx(ctx context.Context, fn func(storage.Stores) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeTxFailed, "begin transaction", err)
	}

	if err := fn(storesOver(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeTxFailed, "commit transaction", err)
	}
	return nil
}

func storesOver(q querier) storage.Stores {
	return storage.Stores{
		Ledger:       &ledgerStore{q: q},
		Counterparty: &counterpartyStore{q: q},
		Rules:        &ruleStore{q: q},
		Matches:      &matchRecordStore{q: q},
	}
}
