package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"
	pkgerrors "ledger-reconciliation-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// ledgerStore implements storage.LedgerStore across the bank and card tables.
// Card rows are normalized into the ledger transaction shape as they are read;
// nothing downstream of this store sees the split.
type ledgerStore struct {
	q querier
}

const bankColumns = `id, date, amount, direction, narration, account_id,
	value_date, reference, purpose, vendor, balance, gstin,
	reconciled, reconciled_with_id, reconciled_with_type`

const cardColumns = `id, date, amount, direction, description, account_id,
	reconciled, reconciled_with_id, reconciled_with_type`

func (s *ledgerStore) FetchUnreconciled(ctx context.Context, r storage.DateRange, accountIDs []string) ([]*models.LedgerTransaction, error) {
	if err := r.Validate(); err != nil {
		return nil, pkgerrors.ValidationError(pkgerrors.CodeInvalidDateRange, "dateRange", err.Error())
	}

	accountFilter, accountArgs := accountClause(accountIDs)

	// Personal-purpose bank rows are ineligible for business reconciliation.
	bankQuery := fmt.Sprintf(`SELECT %s FROM bank_transactions
		WHERE reconciled = 0 AND date >= ? AND date <= ?
		AND purpose != 'personal'%s ORDER BY date, id`, bankColumns, accountFilter)

	args := append([]interface{}{r.Start.Format(dateLayout), r.End.Format(dateLayout)}, accountArgs...)
	rows, err := s.q.QueryContext(ctx, bankQuery, args...)
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "fetch unreconciled bank transactions", err)
	}
	out, err := scanBankRows(rows)
	if err != nil {
		return nil, err
	}

	// Card rows synced from the email-ingestion pipeline are reconciled by
	// that pipeline, not here.
	cardQuery := fmt.Sprintf(`SELECT %s FROM card_transactions
		WHERE reconciled = 0 AND date >= ? AND date <= ?
		AND sync_source != 'gmail'%s ORDER BY date, id`, cardColumns, accountFilter)

	cardRows, err := s.q.QueryContext(ctx, cardQuery, args...)
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "fetch unreconciled card transactions", err)
	}
	cards, err := scanCardRows(cardRows)
	if err != nil {
		return nil, err
	}

	return append(out, cards...), nil
}

func (s *ledgerStore) Get(ctx context.Context, id string) (*models.LedgerTransaction, error) {
	row := s.q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM bank_transactions WHERE id = ?`, bankColumns), id)
	lt, err := scanBankRow(row)
	if err == nil {
		return lt, nil
	}
	if err != sql.ErrNoRows {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "get bank transaction", err)
	}

	row = s.q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM card_transactions WHERE id = ?`, cardColumns), id)
	lt, err = scanCardRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "get card transaction", err)
	}
	return lt, nil
}

func (s *ledgerStore) SetReconciled(ctx context.Context, id, withID string, withType models.ReconciledWithType) error {
	res, err := s.q.ExecContext(ctx, `UPDATE bank_transactions
		SET reconciled = 1, reconciled_with_id = ?, reconciled_with_type = ?
		WHERE id = ?`, withID, string(withType), id)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "set bank transaction reconciled", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.q.ExecContext(ctx, `UPDATE card_transactions
		SET reconciled = 1, reconciled_with_id = ?, reconciled_with_type = ?
		WHERE id = ?`, withID, string(withType), id)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "set card transaction reconciled", err)
	}
	return nil
}

func (s *ledgerStore) ClearReconciled(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE bank_transactions
		SET reconciled = 0, reconciled_with_id = '', reconciled_with_type = ''
		WHERE id = ?`, id)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "clear bank transaction reconciled", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.q.ExecContext(ctx, `UPDATE card_transactions
		SET reconciled = 0, reconciled_with_id = '', reconciled_with_type = ''
		WHERE id = ?`, id)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "clear card transaction reconciled", err)
	}
	return nil
}

func (s *ledgerStore) FindReconciledWith(ctx context.Context, withID string) ([]*models.LedgerTransaction, error) {
	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM bank_transactions
			WHERE reconciled = 1 AND reconciled_with_id = ?`, bankColumns), withID)
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "find bank transactions by back-reference", err)
	}
	out, err := scanBankRows(rows)
	if err != nil {
		return nil, err
	}

	cardRows, err := s.q.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM card_transactions
			WHERE reconciled = 1 AND reconciled_with_id = ?`, cardColumns), withID)
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "find card transactions by back-reference", err)
	}
	cards, err := scanCardRows(cardRows)
	if err != nil {
		return nil, err
	}
	return append(out, cards...), nil
}

func accountClause(accountIDs []string) (string, []interface{}) {
	if len(accountIDs) == 0 {
		return "", nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(accountIDs)), ",")
	args := make([]interface{}, len(accountIDs))
	for i, id := range accountIDs {
		args[i] = id
	}
	return fmt.Sprintf(" AND account_id IN (%s)", placeholders), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBankRow(sc rowScanner) (*models.LedgerTransaction, error) {
	var (
		lt         models.LedgerTransaction
		date       string
		amount     string
		direction  string
		valueDate  sql.NullString
		balance    sql.NullString
		reconciled int
		withType   string
	)
	err := sc.Scan(&lt.ID, &date, &amount, &direction, &lt.Narration, &lt.AccountID,
		&valueDate, &lt.Reference, &lt.Purpose, &lt.Vendor, &balance, &lt.GSTIN,
		&reconciled, &lt.ReconciledWithID, &withType)
	if err != nil {
		return nil, err
	}
	if err := fillLedgerCommon(&lt, date, amount, direction, reconciled, withType); err != nil {
		return nil, err
	}
	lt.Source = models.SourceBank
	if valueDate.Valid && valueDate.String != "" {
		vd, err := time.Parse(dateLayout, valueDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse value date: %w", err)
		}
		lt.ValueDate = &vd
	}
	if balance.Valid && balance.String != "" {
		b, err := decimal.NewFromString(balance.String)
		if err != nil {
			return nil, fmt.Errorf("parse balance: %w", err)
		}
		lt.Balance = &b
	}
	return &lt, nil
}

func scanCardRow(sc rowScanner) (*models.LedgerTransaction, error) {
	var (
		card       models.CardTransaction
		date       string
		amount     string
		direction  string
		reconciled int
		withType   string
	)
	err := sc.Scan(&card.ID, &date, &amount, &direction, &card.Description, &card.AccountID,
		&reconciled, &card.ReconciledWithID, &withType)
	if err != nil {
		return nil, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse card date: %w", err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse card amount: %w", err)
	}
	card.Date = d
	card.Amount = amt
	card.Direction = models.Direction(direction)
	card.Reconciled = reconciled != 0
	card.ReconciledWithType = models.ReconciledWithType(withType)
	return models.NormalizeCard(&card), nil
}

func fillLedgerCommon(lt *models.LedgerTransaction, date, amount, direction string, reconciled int, withType string) error {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}
	lt.Date = d
	lt.Amount = amt
	lt.Direction = models.Direction(direction)
	lt.Reconciled = reconciled != 0
	lt.ReconciledWithType = models.ReconciledWithType(withType)
	return nil
}

func scanBankRows(rows *sql.Rows) ([]*models.LedgerTransaction, error) {
	defer rows.Close()
	var out []*models.LedgerTransaction
	for rows.Next() {
		lt, err := scanBankRow(rows)
		if err != nil {
			return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "scan bank transaction", err)
		}
		out = append(out, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "iterate bank transactions", err)
	}
	return out, nil
}

func scanCardRows(rows *sql.Rows) ([]*models.LedgerTransaction, error) {
	defer rows.Close()
	var out []*models.LedgerTransaction
	for rows.Next() {
		lt, err := scanCardRow(rows)
		if err != nil {
			return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "scan card transaction", err)
		}
		out = append(out, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "iterate card transactions", err)
	}
	return out, nil
}
