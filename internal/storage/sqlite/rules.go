package sqlite

import (
	"context"

	"ledger-reconciliation-engine/internal/models"
	pkgerrors "ledger-reconciliation-engine/pkg/errors"
)

// ruleStore implements storage.RuleStore.
type ruleStore struct {
	q querier
}

func (s *ruleStore) ListActive(ctx context.Context, userID string) ([]*models.ReconciliationRule, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, user_id, pattern_type, pattern_value,
			party_name, match_count, priority, is_active
		FROM reconciliation_rules
		WHERE user_id = ? AND is_active = 1
		ORDER BY priority DESC, match_count DESC`, userID)
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "list active rules", err)
	}
	defer rows.Close()

	var out []*models.ReconciliationRule
	for rows.Next() {
		var (
			r        models.ReconciliationRule
			pType    string
			isActive int
		)
		if err := rows.Scan(&r.ID, &r.UserID, &pType, &r.PatternValue,
			&r.PartyName, &r.MatchCount, &r.Priority, &isActive); err != nil {
			return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "scan rule", err)
		}
		r.PatternType = models.PatternType(pType)
		r.IsActive = isActive != 0
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "iterate rules", err)
	}
	return out, nil
}

// Upsert relies on the (user_id, pattern_type, pattern_value) unique
// constraint: a conflicting insert reinforces the existing rule instead of
// creating a duplicate, and the party name is overwritten with the latest
// confirmed one.
func (s *ruleStore) Upsert(ctx context.Context, userID string, patternType models.PatternType, patternValue, partyName string, priority int) (*models.ReconciliationRule, error) {
	_, err := s.q.ExecContext(ctx, `INSERT INTO reconciliation_rules
			(user_id, pattern_type, pattern_value, party_name, match_count, priority, is_active)
		VALUES (?, ?, ?, ?, 1, ?, 1)
		ON CONFLICT(user_id, pattern_type, pattern_value)
		DO UPDATE SET match_count = match_count + 1, party_name = excluded.party_name`,
		userID, string(patternType), patternValue, partyName, priority)
	if err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeWriteFailed, "upsert rule", err)
	}

	var (
		r        models.ReconciliationRule
		pType    string
		isActive int
	)
	row := s.q.QueryRowContext(ctx, `SELECT id, user_id, pattern_type, pattern_value,
			party_name, match_count, priority, is_active
		FROM reconciliation_rules
		WHERE user_id = ? AND pattern_type = ? AND pattern_value = ?`,
		userID, string(patternType), patternValue)
	if err := row.Scan(&r.ID, &r.UserID, &pType, &r.PatternValue,
		&r.PartyName, &r.MatchCount, &r.Priority, &isActive); err != nil {
		return nil, pkgerrors.StoreError(pkgerrors.CodeReadFailed, "read upserted rule", err)
	}
	r.PatternType = models.PatternType(pType)
	r.IsActive = isActive != 0
	return &r, nil
}
