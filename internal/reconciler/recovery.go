package reconciler

import (
	"context"

	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"
	"ledger-reconciliation-engine/pkg/logger"
)

// Unmatch reverses the reconciliation of a single ledger transaction. A member
// of a live match group dissolves the whole group. Otherwise the ledger side
// is always cleared, and an ordered chain of recovery strategies locates the
// counterparty side even when the back-references have drifted (legacy rows,
// interrupted writes). Returns false when the transaction does not exist or is
// not reconciled.
func (e *Engine) Unmatch(ctx context.Context, ledgerID string) (bool, error) {
	groupID, err := e.stores.Matches.FindGroupForLedger(ctx, ledgerID)
	if err != nil {
		return false, err
	}
	if groupID != "" {
		return e.UnmatchGroup(ctx, groupID)
	}

	lt, err := e.stores.Ledger.Get(ctx, ledgerID)
	if err != nil {
		return false, err
	}
	if lt == nil || !lt.Reconciled {
		return false, nil
	}

	err = e.tx.RunInTx(ctx, func(st storage.Stores) error {
		if err := st.Ledger.ClearReconciled(ctx, ledgerID); err != nil {
			return err
		}

		for _, strategy := range unmatchStrategies {
			handled, err := strategy.recover(ctx, st, lt)
			if err != nil {
				return err
			}
			if handled {
				e.logger.WithFields(logger.Fields{
					"ledger_transaction": ledgerID,
					"strategy":           strategy.name,
				}).Debug("Counterparty side recovered")
				return nil
			}
		}

		// No strategy found the counterparty side. The ledger side is still
		// cleared; leaving a dangling counterparty is the lesser defect.
		e.logger.WithField("ledger_transaction", ledgerID).
			Warn("Unmatch could not locate a counterparty side")
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// unmatchStrategy locates and clears the counterparty side of a reconciled
// ledger transaction. Strategies run in declaration order; the first one that
// reports handled ends the chain. Each is independently testable.
type unmatchStrategy struct {
	name    string
	recover func(ctx context.Context, st storage.Stores, lt *models.LedgerTransaction) (bool, error)
}

var unmatchStrategies = []unmatchStrategy{
	{name: "direct_reference", recover: recoverDirectReference},
	{name: "reverse_lookup", recover: recoverReverseLookup},
	{name: "former_group", recover: recoverFormerGroup},
}

// recoverDirectReference follows the ledger transaction's own back-reference
// to a single counterparty transaction.
func recoverDirectReference(ctx context.Context, st storage.Stores, lt *models.LedgerTransaction) (bool, error) {
	if lt.ReconciledWithType != models.ReconciledWithCounterparty || lt.ReconciledWithID == "" {
		return false, nil
	}
	ct, err := st.Counterparty.Get(ctx, lt.ReconciledWithID)
	if err != nil {
		return false, err
	}
	if ct == nil || !ct.Reconciled {
		return false, nil
	}
	if err := st.Counterparty.ClearReconciled(ctx, ct.ID); err != nil {
		return false, err
	}
	return true, nil
}

// recoverReverseLookup searches the counterparty store for rows whose
// back-reference points at the ledger transaction. Covers rows written before
// the ledger-side back-reference existed.
func recoverReverseLookup(ctx context.Context, st storage.Stores, lt *models.LedgerTransaction) (bool, error) {
	cts, err := st.Counterparty.FindReconciledWith(ctx, lt.ID)
	if err != nil {
		return false, err
	}
	for _, ct := range cts {
		if err := st.Counterparty.ClearReconciled(ctx, ct.ID); err != nil {
			return false, err
		}
	}
	return len(cts) > 0, nil
}

// recoverFormerGroup handles a ledger transaction whose back-reference names a
// group that has lost its membership records: counterparty rows still pointing
// at the former group id are cleared and any orphaned membership rows removed.
func recoverFormerGroup(ctx context.Context, st storage.Stores, lt *models.LedgerTransaction) (bool, error) {
	if lt.ReconciledWithType != models.ReconciledWithGroup || lt.ReconciledWithID == "" {
		return false, nil
	}
	cts, err := st.Counterparty.FindReconciledWith(ctx, lt.ReconciledWithID)
	if err != nil {
		return false, err
	}
	for _, ct := range cts {
		if err := st.Counterparty.ClearReconciled(ctx, ct.ID); err != nil {
			return false, err
		}
	}
	if err := st.Matches.DeleteGroup(ctx, lt.ReconciledWithID); err != nil {
		return false, err
	}
	return len(cts) > 0, nil
}
