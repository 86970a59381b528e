package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"
	pkgerrors "ledger-reconciliation-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// counterpartyStore implements storage.CounterpartyStore.
type counterpartyStore struct {
	q querier
}

const counterpartyColumns = `id, date, amount, txn_type, party_name,
	reconciled, reconciled_with_id, fp_date, fp_amount, fp_narration, fp_account_id`

func (s *counterpartyStore) FetchUnreconciled(ctx context.Context, r storage.DateRange) ([]*models.CounterpartyTransaction, error) {
	if err := r.Validate(); err != nil {
		return nil, pkgerrors.ValidationError(pkgerrors.CodeInvalidDateRange, "dateRange", err.Error())
	}

	// Sale Order and Payment-In rows never take part in automatic matching;
	// internal transfers are excluded entirely.
	query := fmt.Sprintf(`SELECT %s FROM counterparty_transactions
		WHERE reconciled = 0 AND date >= ? AND date <= ?
		AND txn_type NOT IN (?, ?) AND internal_transfer = 0
		ORDER BY date, id`, counterpartyColumns)

	rows, err := s.q.QueryContext(ctx, query,
		r.Start.Format(dateLayout), r.End.Format(dateLayout),
		string(models.TxnTypeSaleOrder), string(models.TxnTypePaymentIn))
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "fetch unreconciled counterparty transactions", err)
	}
	defer rows.Close()

	var out []*models.CounterpartyTransaction
	for rows.Next() {
		ct, err := scanCounterpartyRow(rows)
		if err != nil {
			return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "scan counterparty transaction", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "iterate counterparty transactions", err)
	}
	return out, nil
}

func (s *counterpartyStore) Get(ctx context.Context, id string) (*models.CounterpartyTransaction, error) {
	row := s.q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM counterparty_transactions WHERE id = ?`, counterpartyColumns), id)
	ct, err := scanCounterpartyRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "get counterparty transaction", err)
	}
	return ct, nil
}

func (s *counterpartyStore) SetReconciled(ctx context.Context, id, withID string, fingerprint models.Fingerprint) error {
	_, err := s.q.ExecContext(ctx, `UPDATE counterparty_transactions
		SET reconciled = 1, reconciled_with_id = ?,
		    fp_date = ?, fp_amount = ?, fp_narration = ?, fp_account_id = ?
		WHERE id = ?`,
		withID,
		fingerprint.MatchedDate.Format(dateLayout),
		fingerprint.MatchedAmount.String(),
		fingerprint.MatchedNarration,
		fingerprint.MatchedAccountID,
		id)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "set counterparty transaction reconciled", err)
	}
	return nil
}

// ClearReconciled reverts the row to unreconciled. Fingerprint columns are
// deliberately left in place for audit.
func (s *counterpartyStore) ClearReconciled(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE counterparty_transactions
		SET reconciled = 0, reconciled_with_id = ''
		WHERE id = ?`, id)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "clear counterparty transaction reconciled", err)
	}
	return nil
}

func (s *counterpartyStore) FindReconciledWith(ctx context.Context, withID string) ([]*models.CounterpartyTransaction, error) {
	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM counterparty_transactions
			WHERE reconciled = 1 AND reconciled_with_id = ?`, counterpartyColumns), withID)
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "find counterparty transactions by back-reference", err)
	}
	defer rows.Close()

	var out []*models.CounterpartyTransaction
	for rows.Next() {
		ct, err := scanCounterpartyRow(rows)
		if err != nil {
			return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "scan counterparty transaction", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "iterate counterparty transactions", err)
	}
	return out, nil
}

func scanCounterpartyRow(sc rowScanner) (*models.CounterpartyTransaction, error) {
	var (
		ct          models.CounterpartyTransaction
		date        string
		amount      string
		txnType     string
		reconciled  int
		fpDate      string
		fpAmount    string
		fpNarration string
		fpAccountID string
	)
	err := sc.Scan(&ct.ID, &date, &amount, &txnType, &ct.PartyName,
		&reconciled, &ct.ReconciledWithID, &fpDate, &fpAmount, &fpNarration, &fpAccountID)
	if err != nil {
		return nil, err
	}

	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse counterparty date: %w", err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse counterparty amount: %w", err)
	}
	ct.Date = d
	ct.Amount = amt
	ct.TxnType = models.CounterpartyTxnType(txnType)
	ct.Reconciled = reconciled != 0

	if fpDate != "" || fpAmount != "" || fpNarration != "" || fpAccountID != "" {
		fp := models.Fingerprint{
			MatchedNarration: fpNarration,
			MatchedAccountID: fpAccountID,
		}
		if fpDate != "" {
			if fp.MatchedDate, err = time.Parse(dateLayout, fpDate); err != nil {
				return nil, fmt.Errorf("parse fingerprint date: %w", err)
			}
		}
		if fpAmount != "" {
			if fp.MatchedAmount, err = decimal.NewFromString(fpAmount); err != nil {
				return nil, fmt.Errorf("parse fingerprint amount: %w", err)
			}
		}
		ct.Fingerprint = fp
	}
	return &ct, nil
}
