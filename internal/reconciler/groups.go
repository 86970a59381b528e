package reconciler

import (
	"context"

	"github.com/google/uuid"

	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"
	pkgerrors "ledger-reconciliation-engine/pkg/errors"
	"ledger-reconciliation-engine/pkg/logger"
)

// MatchGroup is the resolved membership of one many-to-many match.
type MatchGroup struct {
	GroupID                    string   `json:"groupID"`
	LedgerTransactionIDs       []string `json:"ledgerTransactionIDs"`
	CounterpartyTransactionIDs []string `json:"counterpartyTransactionIDs"`
}

// MultiMatch reconciles N ledger transactions against M counterparty
// transactions as one group. Every member gets a membership record and a
// back-reference to the freshly minted group id; the counterparty members all
// carry the fingerprint of the first ledger member. Duplicate ids collapse to
// one membership. All members are resolved and checked before anything is
// written, so a missing or already-reconciled member fails the whole group,
// and all writes share one transaction.
func (e *Engine) MultiMatch(ctx context.Context, ledgerIDs, counterpartyIDs []string) (string, error) {
	ledgerIDs = dedupeIDs(ledgerIDs)
	counterpartyIDs = dedupeIDs(counterpartyIDs)
	if len(ledgerIDs) == 0 {
		return "", pkgerrors.ValidationError(pkgerrors.CodeEmptyIDList, "ledgerTransactionIDs", "at least one id required")
	}
	if len(counterpartyIDs) == 0 {
		return "", pkgerrors.ValidationError(pkgerrors.CodeEmptyIDList, "counterpartyTransactionIDs", "at least one id required")
	}

	groupID := uuid.NewString()
	var succeeded []string

	err := e.tx.RunInTx(ctx, func(st storage.Stores) error {
		ledgerMembers := make([]*models.LedgerTransaction, 0, len(ledgerIDs))
		for _, id := range ledgerIDs {
			lt, err := st.Ledger.Get(ctx, id)
			if err != nil {
				return err
			}
			if lt == nil {
				return pkgerrors.NotFoundError(pkgerrors.CodeLedgerNotFound, id)
			}
			if lt.Reconciled {
				return alreadyMatchedError(id)
			}
			ledgerMembers = append(ledgerMembers, lt)
		}

		counterpartyMembers := make([]*models.CounterpartyTransaction, 0, len(counterpartyIDs))
		for _, id := range counterpartyIDs {
			ct, err := st.Counterparty.Get(ctx, id)
			if err != nil {
				return err
			}
			if ct == nil {
				return pkgerrors.NotFoundError(pkgerrors.CodeCounterpartyNotFound, id)
			}
			if ct.Reconciled {
				return alreadyMatchedError(id)
			}
			counterpartyMembers = append(counterpartyMembers, ct)
		}

		fingerprint := models.NewFingerprint(ledgerMembers[0])

		for _, lt := range ledgerMembers {
			record := &models.MatchRecord{MatchGroupID: groupID, LedgerTransactionID: lt.ID}
			if err := st.Matches.Create(ctx, record); err != nil {
				return groupWriteError(groupID, succeeded, lt.ID, err)
			}
			if err := st.Ledger.SetReconciled(ctx, lt.ID, groupID, models.ReconciledWithGroup); err != nil {
				return groupWriteError(groupID, succeeded, lt.ID, err)
			}
			succeeded = append(succeeded, lt.ID)
		}

		for _, ct := range counterpartyMembers {
			record := &models.MatchRecord{MatchGroupID: groupID, CounterpartyTransactionID: ct.ID}
			if err := st.Matches.Create(ctx, record); err != nil {
				return groupWriteError(groupID, succeeded, ct.ID, err)
			}
			if err := st.Counterparty.SetReconciled(ctx, ct.ID, groupID, fingerprint); err != nil {
				return groupWriteError(groupID, succeeded, ct.ID, err)
			}
			succeeded = append(succeeded, ct.ID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	e.logger.WithFields(logger.Fields{
		"group_id":             groupID,
		"ledger_members":       len(ledgerIDs),
		"counterparty_members": len(counterpartyIDs),
	}).Info("Match group created")
	return groupID, nil
}

// UnmatchGroup dissolves a match group: every member is reverted to the
// unreconciled state and the membership records are deleted. The membership
// read and the clearing writes share one transaction, so a member added
// concurrently cannot be missed. Returns false when no group with the id
// exists.
func (e *Engine) UnmatchGroup(ctx context.Context, groupID string) (bool, error) {
	members := 0
	err := e.tx.RunInTx(ctx, func(st storage.Stores) error {
		records, err := st.Matches.ListByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		for _, record := range records {
			switch {
			case record.LedgerTransactionID != "":
				if err := st.Ledger.ClearReconciled(ctx, record.LedgerTransactionID); err != nil {
					return err
				}
			case record.CounterpartyTransactionID != "":
				if err := st.Counterparty.ClearReconciled(ctx, record.CounterpartyTransactionID); err != nil {
					return err
				}
			}
		}
		if err := st.Matches.DeleteGroup(ctx, groupID); err != nil {
			return err
		}
		members = len(records)
		return nil
	})
	if err != nil {
		return false, err
	}
	if members == 0 {
		return false, nil
	}

	e.logger.WithFields(logger.Fields{
		"group_id": groupID,
		"members":  members,
	}).Info("Match group dissolved")
	return true, nil
}

// GetMatchGroup resolves a group's membership, split by side. Returns nil when
// the group does not exist.
func (e *Engine) GetMatchGroup(ctx context.Context, groupID string) (*MatchGroup, error) {
	records, err := e.stores.Matches.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	group := &MatchGroup{GroupID: groupID}
	for _, record := range records {
		switch {
		case record.LedgerTransactionID != "":
			group.LedgerTransactionIDs = append(group.LedgerTransactionIDs, record.LedgerTransactionID)
		case record.CounterpartyTransactionID != "":
			group.CounterpartyTransactionIDs = append(group.CounterpartyTransactionIDs, record.CounterpartyTransactionID)
		}
	}
	return group, nil
}

// dedupeIDs drops repeated ids, keeping first-occurrence order
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// groupWriteError wraps a failed member write, naming the members already
// written. Under a transactional store the rollback undoes them; under a store
// without rollback the list tells the operator what to repair.
func groupWriteError(groupID string, succeeded []string, failedID string, cause error) error {
	return pkgerrors.NewPartialApplyError(groupID, succeeded, failedID, cause)
}
