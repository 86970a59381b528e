package reconciler

import (
	"context"
	"fmt"

	"ledger-reconciliation-engine/internal/matcher"
	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"
	pkgerrors "ledger-reconciliation-engine/pkg/errors"
	"ledger-reconciliation-engine/pkg/logger"
)

// ApplyResult summarizes a best-effort batch apply.
type ApplyResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// ApplyMatches persists a batch of proposed matches. Each match's pair of
// writes runs in its own transaction; a match whose ledger or counterparty
// side has disappeared (or was reconciled in the meantime) is skipped, never
// an error. Store failures abort the batch and report what was applied so far.
func (e *Engine) ApplyMatches(ctx context.Context, proposed []*matcher.ProposedMatch) (*ApplyResult, error) {
	result := &ApplyResult{}
	for _, pm := range proposed {
		applied, err := e.applyOne(ctx, pm.LedgerTransactionID, pm.CounterpartyTransactionID)
		if err != nil {
			return result, err
		}
		if applied {
			result.Applied++
		} else {
			result.Skipped++
			e.logger.WithFields(logger.Fields{
				"ledger_transaction":       pm.LedgerTransactionID,
				"counterparty_transaction": pm.CounterpartyTransactionID,
			}).Warn("Skipping proposed match with missing or already reconciled side")
		}
	}

	e.logger.WithFields(logger.Fields{
		"applied": result.Applied,
		"skipped": result.Skipped,
	}).Info("Apply completed")
	return result, nil
}

// ManualMatch reconciles one user-confirmed pair and learns a narration rule
// from it. The pair writes and the rule upsert share one transaction. Returns
// false when either side does not exist; a side that is already reconciled is
// an error, so an existing match can never be silently overwritten.
func (e *Engine) ManualMatch(ctx context.Context, ledgerID, counterpartyID string) (bool, error) {
	if ledgerID == "" || counterpartyID == "" {
		return false, pkgerrors.ValidationError(pkgerrors.CodeInvalidArgument, "transactionID", "cannot be empty")
	}

	matched := false
	err := e.tx.RunInTx(ctx, func(st storage.Stores) error {
		lt, ct, err := resolvePair(ctx, st, ledgerID, counterpartyID)
		if err != nil || lt == nil || ct == nil {
			return err
		}
		if lt.Reconciled {
			return alreadyMatchedError(lt.ID)
		}
		if ct.Reconciled {
			return alreadyMatchedError(ct.ID)
		}
		if err := writePair(ctx, st, lt, ct); err != nil {
			return err
		}
		if err := e.learner.LearnFromManualMatch(ctx, st.Rules, lt.Narration, ct.PartyName); err != nil {
			return err
		}
		matched = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if matched {
		e.logger.WithFields(logger.Fields{
			"ledger_transaction":       ledgerID,
			"counterparty_transaction": counterpartyID,
		}).Info("Manual match applied")
	}
	return matched, nil
}

// applyOne writes a single 1:1 match inside its own transaction. Returns
// (false, nil) when either side is missing or no longer unreconciled.
func (e *Engine) applyOne(ctx context.Context, ledgerID, counterpartyID string) (bool, error) {
	applied := false
	err := e.tx.RunInTx(ctx, func(st storage.Stores) error {
		lt, ct, err := resolvePair(ctx, st, ledgerID, counterpartyID)
		if err != nil || lt == nil || ct == nil {
			return err
		}
		if lt.Reconciled || ct.Reconciled {
			return nil
		}
		if err := writePair(ctx, st, lt, ct); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// alreadyMatchedError rejects a write that would give a record a second live
// match. Each record belongs to at most one active match at a time.
func alreadyMatchedError(id string) error {
	return pkgerrors.New(pkgerrors.CategoryReconciliation, pkgerrors.CodeAlreadyMatched,
		fmt.Sprintf("transaction already reconciled: %s", id)).
		WithContext("id", id)
}

// resolvePair loads both sides of a prospective match; either may come back
// nil when the record no longer exists.
func resolvePair(ctx context.Context, st storage.Stores, ledgerID, counterpartyID string) (*models.LedgerTransaction, *models.CounterpartyTransaction, error) {
	lt, err := st.Ledger.Get(ctx, ledgerID)
	if err != nil {
		return nil, nil, err
	}
	ct, err := st.Counterparty.Get(ctx, counterpartyID)
	if err != nil {
		return nil, nil, err
	}
	return lt, ct, nil
}

// writePair sets the symmetric back-references of a 1:1 match: the ledger side
// points at the counterparty transaction, the counterparty side points back
// and records the ledger fingerprint.
func writePair(ctx context.Context, st storage.Stores, lt *models.LedgerTransaction, ct *models.CounterpartyTransaction) error {
	if err := st.Ledger.SetReconciled(ctx, lt.ID, ct.ID, models.ReconciledWithCounterparty); err != nil {
		return err
	}
	return st.Counterparty.SetReconciled(ctx, ct.ID, lt.ID, models.NewFingerprint(lt))
}
