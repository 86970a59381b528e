package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardTransaction is the raw shape of a credit-card movement as stored in the
// card table. It carries a description instead of a narration and none of the
// bank-only fields.
type CardTransaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Description string          `json:"description"`
	AccountID   string          `json:"accountID"`

	Reconciled         bool               `json:"reconciled"`
	ReconciledWithID   string             `json:"reconciledWithID,omitempty"`
	ReconciledWithType ReconciledWithType `json:"reconciledWithType,omitempty"`
}

// NormalizeCard maps a card transaction into the ledger transaction shape so
// the matcher never special-cases the source: narration is taken from the
// description, there is no value date, and all bank-only fields stay absent.
// This is the only place card/bank heterogeneity is resolved.
func NormalizeCard(card *CardTransaction) *LedgerTransaction {
	return &LedgerTransaction{
		ID:                 card.ID,
		Date:               card.Date,
		Amount:             card.Amount,
		Direction:          card.Direction,
		Narration:          card.Description,
		AccountID:          card.AccountID,
		Source:             SourceCreditCard,
		Reconciled:         card.Reconciled,
		ReconciledWithID:   card.ReconciledWithID,
		ReconciledWithType: card.ReconciledWithType,
	}
}
