// Package storage defines the store contracts consumed by the reconciliation
// engine: the ledger store (bank and card tables, normalized to one shape at
// fetch time), the counterparty ledger store, the learned-rule store and the
// match record store, plus the transaction runner that lets the engine wrap a
// match's writes in a single atomic unit.
package storage

import (
	"context"
	"fmt"
	"time"

	"ledger-reconciliation-engine/internal/models"
)

// DateRange bounds a reconciliation window, inclusive on both ends
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the range is well formed
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("date range bounds cannot be zero")
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("date range start %s is after end %s",
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return nil
}

// Contains reports whether t falls within the range (date granularity)
func (r DateRange) Contains(t time.Time) bool {
	day := t.Format("2006-01-02")
	return day >= r.Start.Format("2006-01-02") && day <= r.End.Format("2006-01-02")
}

// LedgerStore provides access to bank and card account movements. Card rows
// are normalized into the ledger transaction shape inside the store, so
// callers never see the card/bank split. Get resolves an id against both
// tables; a missing record is (nil, nil), never an error.
type LedgerStore interface {
	// FetchUnreconciled returns unreconciled transactions from both the bank
	// and card tables within the range, optionally limited to accountIDs.
	// Rows whose purpose or sync source marks them ineligible are excluded.
	FetchUnreconciled(ctx context.Context, r DateRange, accountIDs []string) ([]*models.LedgerTransaction, error)

	// Get resolves an id against the bank table and then the card table
	Get(ctx context.Context, id string) (*models.LedgerTransaction, error)

	// SetReconciled marks a transaction reconciled with the given back-reference
	SetReconciled(ctx context.Context, id, withID string, withType models.ReconciledWithType) error

	// ClearReconciled reverts a transaction to the unreconciled state
	ClearReconciled(ctx context.Context, id string) error

	// FindReconciledWith returns transactions whose back-reference equals withID
	FindReconciledWith(ctx context.Context, withID string) ([]*models.LedgerTransaction, error)
}

// CounterpartyStore provides access to business-ledger transactions. A missing
// record is (nil, nil), never an error.
type CounterpartyStore interface {
	// FetchUnreconciled returns unreconciled rows within the range, excluding
	// Sale Order and Payment-In rows and internal transfers.
	FetchUnreconciled(ctx context.Context, r DateRange) ([]*models.CounterpartyTransaction, error)

	// Get resolves a counterparty transaction by id
	Get(ctx context.Context, id string) (*models.CounterpartyTransaction, error)

	// SetReconciled marks a row reconciled and records the ledger-side fingerprint
	SetReconciled(ctx context.Context, id, withID string, fingerprint models.Fingerprint) error

	// ClearReconciled reverts a row to unreconciled. The fingerprint is kept.
	ClearReconciled(ctx context.Context, id string) error

	// FindReconciledWith returns rows whose back-reference equals withID
	FindReconciledWith(ctx context.Context, withID string) ([]*models.CounterpartyTransaction, error)
}

// RuleStore persists learned reconciliation rules.
type RuleStore interface {
	// ListActive returns the user's active rules ordered by priority
	// descending, then reinforcement count descending.
	ListActive(ctx context.Context, userID string) ([]*models.ReconciliationRule, error)

	// Upsert inserts a new rule with matchCount 1, or reinforces the existing
	// rule for (userID, patternType, patternValue): matchCount is incremented
	// and the party name overwritten with the latest confirmed one.
	Upsert(ctx context.Context, userID string, patternType models.PatternType, patternValue, partyName string, priority int) (*models.ReconciliationRule, error)
}

// MatchRecordStore persists match-group membership rows.
type MatchRecordStore interface {
	Create(ctx context.Context, record *models.MatchRecord) error
	ListByGroup(ctx context.Context, groupID string) ([]*models.MatchRecord, error)
	DeleteGroup(ctx context.Context, groupID string) error

	// FindGroupForLedger returns the group id a ledger transaction belongs to,
	// or "" when it is not a member of any group.
	FindGroupForLedger(ctx context.Context, ledgerID string) (string, error)
}

// Stores bundles the four store interfaces handed to the engine and to
// transactional closures.
type Stores struct {
	Ledger       LedgerStore
	Counterparty CounterpartyStore
	Rules        RuleStore
	Matches      MatchRecordStore
}

// TxRunner executes a closure against transaction-scoped stores. All writes
// performed inside fn commit or roll back as one unit.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(Stores) error) error
}
