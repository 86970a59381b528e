package matcher

import (
	"testing"
	"time"

	"ledger-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func ledgerTxn(id string, date time.Time, amount string, direction models.Direction, narration string) *models.LedgerTransaction {
	return &models.LedgerTransaction{
		ID:        id,
		Date:      date,
		Amount:    decimal.RequireFromString(amount),
		Direction: direction,
		Narration: narration,
		AccountID: "acc-1",
		Source:    models.SourceBank,
	}
}

func counterpartyTxn(id string, date time.Time, amount string, txnType models.CounterpartyTxnType, party string) *models.CounterpartyTransaction {
	return &models.CounterpartyTransaction{
		ID:        id,
		Date:      date,
		Amount:    decimal.RequireFromString(amount),
		TxnType:   txnType,
		PartyName: party,
	}
}

func singleMatch(t *testing.T, proposed []*ProposedMatch) *ProposedMatch {
	t.Helper()
	if len(proposed) != 1 {
		t.Fatalf("proposed %d matches, want 1: %+v", len(proposed), proposed)
	}
	return proposed[0]
}

func TestMatchLearnedRuleTier(t *testing.T) {
	m := New(nil)
	rules := []*models.ReconciliationRule{{
		ID:           1,
		UserID:       "u1",
		PatternType:  models.PatternUPIName,
		PatternValue: "ACMECORP",
		PartyName:    "AcmeCorp",
		MatchCount:   3,
		Priority:     models.ManualRulePriority,
		IsActive:     true,
	}}

	// Two days apart, so the exact tier could not produce this pairing.
	proposed := m.Match(
		[]*models.LedgerTransaction{ledgerTxn("txn-1", day(10), "500.00", models.DirectionDebit, "UPI/ACMECORP/403912/Payment")},
		[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(12), "500.00", models.TxnTypeExpense, "acmecorp")},
		rules,
	)

	pm := singleMatch(t, proposed)
	if pm.Confidence != LearnedRuleConfidence {
		t.Errorf("confidence = %d, want %d", pm.Confidence, LearnedRuleConfidence)
	}
	if pm.MatchType != MatchTypeExact {
		t.Errorf("match type = %s, want %s", pm.MatchType, MatchTypeExact)
	}
}

func TestMatchExactTier(t *testing.T) {
	m := New(nil)

	proposed := m.Match(
		[]*models.LedgerTransaction{ledgerTxn("txn-1", day(10), "1200.00", models.DirectionCredit, "NEFT CREDIT")},
		[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(10), "1200.00", models.TxnTypeSale, "Globex")},
		nil,
	)

	pm := singleMatch(t, proposed)
	if pm.Confidence != ExactConfidence {
		t.Errorf("confidence = %d, want %d", pm.Confidence, ExactConfidence)
	}
	if pm.MatchType != MatchTypeExact {
		t.Errorf("match type = %s, want %s", pm.MatchType, MatchTypeExact)
	}
}

func TestMatchDateFuzzyTier(t *testing.T) {
	tests := []struct {
		name           string
		daysApart      int
		wantConfidence int
	}{
		{"one day", 1, 92},
		{"four days", 4, 83},
		{"seven days hits floor", 7, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(nil)
			proposed := m.Match(
				[]*models.LedgerTransaction{ledgerTxn("txn-1", day(10), "640.00", models.DirectionDebit, "CHEQUE 42")},
				[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(10+tt.daysApart), "640.00", models.TxnTypePurchase, "Initech")},
				nil,
			)

			pm := singleMatch(t, proposed)
			if pm.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %d, want %d", pm.Confidence, tt.wantConfidence)
			}
			if pm.MatchType != MatchTypeDateFuzzy {
				t.Errorf("match type = %s, want %s", pm.MatchType, MatchTypeDateFuzzy)
			}
		})
	}
}

func TestMatchDateFuzzyRespectsWindow(t *testing.T) {
	m := New(nil)

	proposed := m.Match(
		[]*models.LedgerTransaction{ledgerTxn("txn-1", day(1), "640.00", models.DirectionDebit, "CHEQUE 42")},
		[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(9), "640.00", models.TxnTypePurchase, "Initech")},
		nil,
	)

	if len(proposed) != 0 {
		t.Errorf("8 days apart should not match, got %+v", proposed)
	}
}

func TestMatchPartyFuzzyTier(t *testing.T) {
	m := New(nil)

	// 20 days apart disqualifies the date tiers; the party name carries it.
	proposed := m.Match(
		[]*models.LedgerTransaction{ledgerTxn("txn-1", day(1), "300.00", models.DirectionDebit, "PAYMENT TO ACME TRADERS")},
		[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(21), "300.00", models.TxnTypeExpense, "ACME TRADERS")},
		nil,
	)

	pm := singleMatch(t, proposed)
	// similarity 1.0 -> round(1.0*60 + 20)
	if pm.Confidence != 80 {
		t.Errorf("confidence = %d, want 80", pm.Confidence)
	}
	if pm.MatchType != MatchTypePartyFuzzy {
		t.Errorf("match type = %s, want %s", pm.MatchType, MatchTypePartyFuzzy)
	}
}

func TestMatchPartyFuzzyThreshold(t *testing.T) {
	m := New(nil)

	proposed := m.Match(
		[]*models.LedgerTransaction{ledgerTxn("txn-1", day(1), "300.00", models.DirectionDebit, "PAYMENT TO WIDGET WORKS INC")},
		[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(21), "300.00", models.TxnTypeExpense, "ACME TRADERS")},
		nil,
	)

	if len(proposed) != 0 {
		t.Errorf("dissimilar party names should not match, got %+v", proposed)
	}
}

func TestMatchDirectionalCompatibility(t *testing.T) {
	m := New(nil)

	// A credit can never match an Expense, whatever the amounts say.
	proposed := m.Match(
		[]*models.LedgerTransaction{ledgerTxn("txn-1", day(10), "100.00", models.DirectionCredit, "NEFT CREDIT")},
		[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(10), "100.00", models.TxnTypeExpense, "Acme")},
		nil,
	)
	if len(proposed) != 0 {
		t.Errorf("credit vs expense should not match, got %+v", proposed)
	}
}

func TestMatchSkipsNonAutoMatchableTypes(t *testing.T) {
	m := New(nil)

	proposed := m.Match(
		[]*models.LedgerTransaction{ledgerTxn("txn-1", day(10), "100.00", models.DirectionCredit, "NEFT CREDIT")},
		[]*models.CounterpartyTransaction{
			counterpartyTxn("cp-1", day(10), "100.00", models.TxnTypeSaleOrder, "Acme"),
			counterpartyTxn("cp-2", day(10), "100.00", models.TxnTypePaymentIn, "Acme"),
		},
		nil,
	)
	if len(proposed) != 0 {
		t.Errorf("sale orders and payment-in rows must never auto-match, got %+v", proposed)
	}
}

func TestMatchNoDoubleAssignment(t *testing.T) {
	m := New(nil)

	proposed := m.Match(
		[]*models.LedgerTransaction{
			ledgerTxn("txn-1", day(10), "100.00", models.DirectionDebit, "CHEQUE 1"),
			ledgerTxn("txn-2", day(10), "100.00", models.DirectionDebit, "CHEQUE 2"),
		},
		[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(10), "100.00", models.TxnTypeExpense, "Acme")},
		nil,
	)

	pm := singleMatch(t, proposed)
	if pm.LedgerTransactionID != "txn-1" {
		t.Errorf("first ledger transaction should win, got %s", pm.LedgerTransactionID)
	}
}

func TestMatchTierPriority(t *testing.T) {
	m := New(nil)
	rules := []*models.ReconciliationRule{{
		ID:           1,
		UserID:       "u1",
		PatternType:  models.PatternUPIName,
		PatternValue: "ACMECORP",
		PartyName:    "Acme",
		Priority:     models.ManualRulePriority,
		IsActive:     true,
	}}

	// txn-2 would score 100 in the exact tier, but the learned-rule tier runs
	// first and consumes the only counterparty row for txn-1.
	proposed := m.Match(
		[]*models.LedgerTransaction{
			ledgerTxn("txn-1", day(8), "100.00", models.DirectionDebit, "UPI/ACMECORP/1"),
			ledgerTxn("txn-2", day(10), "100.00", models.DirectionDebit, "CHEQUE 2"),
		},
		[]*models.CounterpartyTransaction{counterpartyTxn("cp-1", day(10), "100.00", models.TxnTypeExpense, "Acme")},
		rules,
	)

	pm := singleMatch(t, proposed)
	if pm.LedgerTransactionID != "txn-1" || pm.Confidence != LearnedRuleConfidence {
		t.Errorf("learned-rule tier should win: %+v", pm)
	}
}

func TestMatchSkipsReconciledInputs(t *testing.T) {
	m := New(nil)

	lt := ledgerTxn("txn-1", day(10), "100.00", models.DirectionDebit, "CHEQUE 1")
	lt.Reconciled = true
	ct := counterpartyTxn("cp-1", day(10), "100.00", models.TxnTypeExpense, "Acme")

	if proposed := m.Match([]*models.LedgerTransaction{lt}, []*models.CounterpartyTransaction{ct}, nil); len(proposed) != 0 {
		t.Errorf("reconciled inputs must be ignored, got %+v", proposed)
	}
}
