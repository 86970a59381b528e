// Package models defines the core record types shared by the reconciliation
// engine: ledger (bank/card) transactions, counterparty ledger transactions,
// match records and learned reconciliation rules.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the money-movement direction of a ledger transaction.
type Direction string

const (
	// DirectionCredit represents money coming into the account
	DirectionCredit Direction = "credit"
	// DirectionDebit represents money leaving the account
	DirectionDebit Direction = "debit"
)

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Source identifies which physical table a ledger transaction came from.
// The tag is assigned once at fetch time; downstream code never re-derives
// it by trial lookup.
type Source string

const (
	// SourceBank marks a transaction loaded from the bank table
	SourceBank Source = "bank"
	// SourceCreditCard marks a transaction normalized from the card table
	SourceCreditCard Source = "credit_card"
)

// String returns the string representation of Source
func (s Source) String() string {
	return string(s)
}

// ReconciledWithType discriminates what a reconciled ledger transaction's
// back-reference points at.
type ReconciledWithType string

const (
	// ReconciledWithCounterparty references a single counterparty transaction
	ReconciledWithCounterparty ReconciledWithType = "vyapar"
	// ReconciledWithGroup references a many-to-many match group
	ReconciledWithGroup ReconciledWithType = "multi_vyapar"
)

// CounterpartyTxnType represents the business-ledger classification of a
// counterparty transaction.
type CounterpartyTxnType string

const (
	TxnTypeSale       CounterpartyTxnType = "Sale"
	TxnTypePurchase   CounterpartyTxnType = "Purchase"
	TxnTypeExpense    CounterpartyTxnType = "Expense"
	TxnTypePaymentIn  CounterpartyTxnType = "Payment-In"
	TxnTypePaymentOut CounterpartyTxnType = "Payment-Out"
	TxnTypeSaleOrder  CounterpartyTxnType = "Sale Order"
)

// String returns the string representation of CounterpartyTxnType
func (t CounterpartyTxnType) String() string {
	return string(t)
}

// IsValid checks if the counterparty transaction type is valid
func (t CounterpartyTxnType) IsValid() bool {
	switch t {
	case TxnTypeSale, TxnTypePurchase, TxnTypeExpense,
		TxnTypePaymentIn, TxnTypePaymentOut, TxnTypeSaleOrder:
		return true
	}
	return false
}

// AutoMatchable reports whether the type participates in automatic matching.
// Sale Order is a pending invoice and Payment-In needs no bank reconciliation.
func (t CounterpartyTxnType) AutoMatchable() bool {
	switch t {
	case TxnTypeSaleOrder, TxnTypePaymentIn:
		return false
	}
	return true
}

// CompatibleWith applies the directional compatibility rule: a ledger credit
// may only match a Sale; a ledger debit may only match Expense, Purchase or
// Payment-Out.
func (t CounterpartyTxnType) CompatibleWith(d Direction) bool {
	switch d {
	case DirectionCredit:
		return t == TxnTypeSale
	case DirectionDebit:
		return t == TxnTypeExpense || t == TxnTypePurchase || t == TxnTypePaymentOut
	}
	return false
}

// LedgerTransaction represents a single bank or card account movement. The
// amount is stored as an absolute value with the sign carried by Direction.
type LedgerTransaction struct {
	ID        string          `json:"id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Direction Direction       `json:"direction"`
	Narration string          `json:"narration"`
	AccountID string          `json:"accountID"`
	Source    Source          `json:"source"`

	// Bank-only fields; absent on normalized card transactions.
	ValueDate *time.Time       `json:"valueDate,omitempty"`
	Reference string           `json:"reference,omitempty"`
	Purpose   string           `json:"purpose,omitempty"`
	Vendor    string           `json:"vendor,omitempty"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
	GSTIN     string           `json:"gstin,omitempty"`

	Reconciled         bool               `json:"reconciled"`
	ReconciledWithID   string             `json:"reconciledWithID,omitempty"`
	ReconciledWithType ReconciledWithType `json:"reconciledWithType,omitempty"`
}

// Validate performs basic validation on the LedgerTransaction
func (lt *LedgerTransaction) Validate() error {
	if strings.TrimSpace(lt.ID) == "" {
		return fmt.Errorf("ledger transaction ID cannot be empty")
	}
	if !lt.Direction.IsValid() {
		return fmt.Errorf("invalid direction: %s", lt.Direction)
	}
	if lt.Amount.IsNegative() {
		return fmt.Errorf("ledger amount must be stored as an absolute value")
	}
	if lt.Date.IsZero() {
		return fmt.Errorf("ledger transaction date cannot be zero")
	}
	return nil
}

// AbsAmount returns the absolute amount of the transaction
func (lt *LedgerTransaction) AbsAmount() decimal.Decimal {
	return lt.Amount.Abs()
}

// IsCredit returns true if money came into the account
func (lt *LedgerTransaction) IsCredit() bool {
	return lt.Direction == DirectionCredit
}

// IsDebit returns true if money left the account
func (lt *LedgerTransaction) IsDebit() bool {
	return lt.Direction == DirectionDebit
}

// ClearReconciliation reverts the transaction to the unreconciled state
func (lt *LedgerTransaction) ClearReconciliation() {
	lt.Reconciled = false
	lt.ReconciledWithID = ""
	lt.ReconciledWithType = ""
}

// String returns a string representation of the LedgerTransaction
func (lt *LedgerTransaction) String() string {
	return fmt.Sprintf("LedgerTransaction{ID: %s, Amount: %s, Direction: %s, Date: %s, Source: %s}",
		lt.ID, lt.Amount.String(), lt.Direction, lt.Date.Format("2006-01-02"), lt.Source)
}

// Fingerprint is the audit snapshot of the matched ledger side that is written
// onto the counterparty record and retained even after the match is reversed.
type Fingerprint struct {
	MatchedDate      time.Time       `json:"matchedDate"`
	MatchedAmount    decimal.Decimal `json:"matchedAmount"`
	MatchedNarration string          `json:"matchedNarration"`
	MatchedAccountID string          `json:"matchedAccountID"`
}

// FingerprintNarrationLimit caps the narration length carried in a fingerprint.
const FingerprintNarrationLimit = 120

// NewFingerprint builds the audit snapshot from a ledger transaction,
// truncating the narration to FingerprintNarrationLimit.
func NewFingerprint(lt *LedgerTransaction) Fingerprint {
	narration := lt.Narration
	if len(narration) > FingerprintNarrationLimit {
		narration = narration[:FingerprintNarrationLimit]
	}
	return Fingerprint{
		MatchedDate:      lt.Date,
		MatchedAmount:    lt.Amount,
		MatchedNarration: narration,
		MatchedAccountID: lt.AccountID,
	}
}

// IsZero reports whether no fingerprint has been recorded
func (f Fingerprint) IsZero() bool {
	return f.MatchedDate.IsZero() && f.MatchedAmount.IsZero() &&
		f.MatchedNarration == "" && f.MatchedAccountID == ""
}

// CounterpartyTransaction represents a business-ledger entry describing the
// same economic event as a ledger transaction, from the other system's view.
type CounterpartyTransaction struct {
	ID        string              `json:"id"`
	Date      time.Time           `json:"date"`
	Amount    decimal.Decimal     `json:"amount"`
	TxnType   CounterpartyTxnType `json:"transactionType"`
	PartyName string              `json:"partyName"`

	Reconciled       bool        `json:"reconciled"`
	ReconciledWithID string      `json:"reconciledWithID,omitempty"`
	Fingerprint      Fingerprint `json:"fingerprint,omitempty"`
}

// Validate performs basic validation on the CounterpartyTransaction
func (ct *CounterpartyTransaction) Validate() error {
	if strings.TrimSpace(ct.ID) == "" {
		return fmt.Errorf("counterparty transaction ID cannot be empty")
	}
	if !ct.TxnType.IsValid() {
		return fmt.Errorf("invalid counterparty transaction type: %s", ct.TxnType)
	}
	if ct.Date.IsZero() {
		return fmt.Errorf("counterparty transaction date cannot be zero")
	}
	return nil
}

// AbsAmount returns the absolute amount of the transaction
func (ct *CounterpartyTransaction) AbsAmount() decimal.Decimal {
	return ct.Amount.Abs()
}

// ClearReconciliation reverts the transaction to the unreconciled state.
// The fingerprint is intentionally kept for audit purposes.
func (ct *CounterpartyTransaction) ClearReconciliation() {
	ct.Reconciled = false
	ct.ReconciledWithID = ""
}

// String returns a string representation of the CounterpartyTransaction
func (ct *CounterpartyTransaction) String() string {
	return fmt.Sprintf("CounterpartyTransaction{ID: %s, Amount: %s, Type: %s, Party: %s, Date: %s}",
		ct.ID, ct.Amount.String(), ct.TxnType, ct.PartyName, ct.Date.Format("2006-01-02"))
}

// MatchRecord is one membership row of a match group. Exactly one of
// LedgerTransactionID and CounterpartyTransactionID is populated per row; a
// 1:1 match and an N:M match are both a set of rows sharing one group id.
type MatchRecord struct {
	ID                        int64  `json:"id"`
	MatchGroupID              string `json:"matchGroupID"`
	LedgerTransactionID       string `json:"ledgerTransactionID,omitempty"`
	CounterpartyTransactionID string `json:"counterpartyTransactionID,omitempty"`
}

// Validate checks the exactly-one-side invariant of a MatchRecord
func (mr *MatchRecord) Validate() error {
	if strings.TrimSpace(mr.MatchGroupID) == "" {
		return fmt.Errorf("match group ID cannot be empty")
	}
	hasLedger := mr.LedgerTransactionID != ""
	hasCounterparty := mr.CounterpartyTransactionID != ""
	if hasLedger == hasCounterparty {
		return fmt.Errorf("match record must reference exactly one of ledger or counterparty side")
	}
	return nil
}

// PatternType classifies the structured token extracted from a transfer
// narration (e.g. the counterparty handle of a UPI transfer).
type PatternType string

const (
	PatternUPIName  PatternType = "upi_name"
	PatternIMPSName PatternType = "imps_name"
	PatternNEFTName PatternType = "neft_name"
	PatternRTGSName PatternType = "rtgs_name"
)

// ManualRulePriority is the priority assigned to rules learned from manual
// matches; higher than any automatic tier seeds.
const ManualRulePriority = 10

// ReconciliationRule is a learned association from a narration pattern to a
// counterparty party name, reinforced on every manual match that re-derives
// the same pattern.
type ReconciliationRule struct {
	ID           int64       `json:"id"`
	UserID       string      `json:"userID"`
	PatternType  PatternType `json:"patternType"`
	PatternValue string      `json:"patternValue"`
	PartyName    string      `json:"partyName"`
	MatchCount   int         `json:"matchCount"`
	Priority     int         `json:"priority"`
	IsActive     bool        `json:"isActive"`
}

// Validate performs basic validation on the ReconciliationRule
func (r *ReconciliationRule) Validate() error {
	if r.PatternType == "" || strings.TrimSpace(r.PatternValue) == "" {
		return fmt.Errorf("rule pattern cannot be empty")
	}
	if strings.TrimSpace(r.PartyName) == "" {
		return fmt.Errorf("rule party name cannot be empty")
	}
	return nil
}

// AmountTolerance is the maximum absolute difference for two amounts to be
// considered equal during matching.
var AmountTolerance = decimal.NewFromFloat(0.01)

// AmountsMatch compares two amounts as absolute values within AmountTolerance
func AmountsMatch(a, b decimal.Decimal) bool {
	return a.Abs().Sub(b.Abs()).Abs().LessThanOrEqual(AmountTolerance)
}

// DaysBetween returns the whole-day distance between two dates, ignoring the
// time-of-day component.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}

// SameDay reports whether two timestamps fall on the same calendar date
func SameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}
