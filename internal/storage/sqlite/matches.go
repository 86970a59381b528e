package sqlite

import (
	"context"
	"database/sql"

	"ledger-reconciliation-engine/internal/models"
	pkgerrors "ledger-reconciliation-engine/pkg/errors"
)

// matchRecordStore implements storage.MatchRecordStore.
type matchRecordStore struct {
	q querier
}

func (s *matchRecordStore) Create(ctx context.Context, record *models.MatchRecord) error {
	if err := record.Validate(); err != nil {
		return pkgerrors.ValidationError(pkgerrors.CodeInvalidArgument, "matchRecord", err.Error())
	}
	res, err := s.q.ExecContext(ctx, `INSERT INTO match_records
			(match_group_id, ledger_transaction_id, counterparty_transaction_id)
		VALUES (?, ?, ?)`,
		record.MatchGroupID, record.LedgerTransactionID, record.CounterpartyTransactionID)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "create match record", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

func (s *matchRecordStore) ListByGroup(ctx context.Context, groupID string) ([]*models.MatchRecord, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, match_group_id,
			ledger_transaction_id, counterparty_transaction_id
		FROM match_records WHERE match_group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "list match records", err)
	}
	defer rows.Close()

	var out []*models.MatchRecord
	for rows.Next() {
		var mr models.MatchRecord
		if err := rows.Scan(&mr.ID, &mr.MatchGroupID,
			&mr.LedgerTransactionID, &mr.CounterpartyTransactionID); err != nil {
			return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "scan match record", err)
		}
		out = append(out, &mr)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "iterate match records", err)
	}
	return out, nil
}

func (s *matchRecordStore) DeleteGroup(ctx context.Context, groupID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM match_records WHERE match_group_id = ?`, groupID)
	if err != nil {
		return pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "delete match records", err)
	}
	return nil
}

func (s *matchRecordStore) FindGroupForLedger(ctx context.Context, ledgerID string) (string, error) {
	var groupID string
	row := s.q.QueryRowContext(ctx, `SELECT match_group_id FROM match_records
		WHERE ledger_transaction_id = ? LIMIT 1`, ledgerID)
	err := row.Scan(&groupID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", pkgerrors.StoreError(pkgerrors.CodeReadFailed, "find group for ledger transaction", err)
	}
	return groupID, nil
}
