package memory

import (
	"context"
	"testing"
	"time"

	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"

	"github.com/shopspring/decimal"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func window() storage.DateRange {
	return storage.DateRange{Start: day(1), End: day(31)}
}

func TestLedgerFetchUnreconciledMergesSources(t *testing.T) {
	store := New()
	ctx := context.Background()

	store.AddBankTransaction(&models.LedgerTransaction{
		ID: "bank-1", Date: day(5), Amount: decimal.RequireFromString("100"),
		Direction: models.DirectionDebit, Narration: "CHEQUE", AccountID: "acc-1",
	})
	store.AddCardTransaction(&models.CardTransaction{
		ID: "card-1", Date: day(6), Amount: decimal.RequireFromString("200"),
		Direction: models.DirectionDebit, Description: "SWIGGY", AccountID: "cc-1",
	})

	out, err := store.Stores().Ledger.FetchUnreconciled(ctx, window(), nil)
	if err != nil {
		t.Fatalf("FetchUnreconciled: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("fetched %d transactions, want 2", len(out))
	}
	bySource := map[models.Source]bool{}
	for _, lt := range out {
		bySource[lt.Source] = true
	}
	if !bySource[models.SourceBank] || !bySource[models.SourceCreditCard] {
		t.Errorf("expected both sources, got %+v", bySource)
	}
}

func TestLedgerFetchUnreconciledFilters(t *testing.T) {
	store := New()
	ctx := context.Background()

	store.AddBankTransaction(&models.LedgerTransaction{
		ID: "business", Date: day(5), Amount: decimal.RequireFromString("100"),
		Direction: models.DirectionDebit, AccountID: "acc-1",
	})
	store.AddBankTransaction(&models.LedgerTransaction{
		ID: "personal", Date: day(5), Amount: decimal.RequireFromString("100"),
		Direction: models.DirectionDebit, AccountID: "acc-1", Purpose: "personal",
	})
	store.AddBankTransaction(&models.LedgerTransaction{
		ID: "other-account", Date: day(5), Amount: decimal.RequireFromString("100"),
		Direction: models.DirectionDebit, AccountID: "acc-2",
	})
	store.AddBankTransaction(&models.LedgerTransaction{
		ID: "out-of-window", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("100"), Direction: models.DirectionDebit, AccountID: "acc-1",
	})

	out, err := store.Stores().Ledger.FetchUnreconciled(ctx, window(), []string{"acc-1"})
	if err != nil {
		t.Fatalf("FetchUnreconciled: %v", err)
	}
	if len(out) != 1 || out[0].ID != "business" {
		t.Errorf("fetched %+v, want only the business transaction on acc-1", out)
	}
}

func TestCounterpartyFetchUnreconciledExcludesIneligible(t *testing.T) {
	store := New()
	ctx := context.Background()

	add := func(id string, txnType models.CounterpartyTxnType) {
		store.AddCounterpartyTransaction(&models.CounterpartyTransaction{
			ID: id, Date: day(5), Amount: decimal.RequireFromString("100"), TxnType: txnType,
		})
	}
	add("sale", models.TxnTypeSale)
	add("expense", models.TxnTypeExpense)
	add("sale-order", models.TxnTypeSaleOrder)
	add("payment-in", models.TxnTypePaymentIn)

	out, err := store.Stores().Counterparty.FetchUnreconciled(ctx, window())
	if err != nil {
		t.Fatalf("FetchUnreconciled: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("fetched %d rows, want 2 (sale orders and payment-in excluded)", len(out))
	}
	for _, ct := range out {
		if ct.ID == "sale-order" || ct.ID == "payment-in" {
			t.Errorf("ineligible row %s returned", ct.ID)
		}
	}
}

func TestLedgerGetMissing(t *testing.T) {
	store := New()

	lt, err := store.Stores().Ledger.Get(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lt != nil {
		t.Errorf("missing record should be (nil, nil), got %+v", lt)
	}
}

func TestRuleOrdering(t *testing.T) {
	store := New()
	ctx := context.Background()
	rules := store.Stores().Rules

	if _, err := rules.Upsert(ctx, "u1", models.PatternUPIName, "LOWPRIO", "Low", 1); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := rules.Upsert(ctx, "u1", models.PatternUPIName, "MANUAL", "Manual", models.ManualRulePriority); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Reinforce LOWPRIO so it outranks other priority-1 rules, not MANUAL.
	if _, err := rules.Upsert(ctx, "u1", models.PatternUPIName, "LOWPRIO", "Low", 1); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := rules.Upsert(ctx, "u1", models.PatternNEFTName, "OTHER", "Other", 1); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	out, err := rules.ListActive(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("listed %d rules, want 3", len(out))
	}
	if out[0].PatternValue != "MANUAL" {
		t.Errorf("highest priority rule first, got %s", out[0].PatternValue)
	}
	if out[1].PatternValue != "LOWPRIO" || out[1].MatchCount != 2 {
		t.Errorf("reinforced rule should rank above its peers, got %+v", out[1])
	}
}

func TestRuleUpsertScopedToUser(t *testing.T) {
	store := New()
	ctx := context.Background()
	rules := store.Stores().Rules

	rules.Upsert(ctx, "u1", models.PatternUPIName, "ACME", "Acme", 1)
	rules.Upsert(ctx, "u2", models.PatternUPIName, "ACME", "Acme", 1)

	u1, _ := rules.ListActive(ctx, "u1")
	u2, _ := rules.ListActive(ctx, "u2")
	if len(u1) != 1 || len(u2) != 1 {
		t.Errorf("rules leaked across users: u1=%d u2=%d", len(u1), len(u2))
	}
	if u1[0].MatchCount != 1 || u2[0].MatchCount != 1 {
		t.Error("same pattern for different users must be independent rules")
	}
}

func TestMatchRecordLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()
	matches := store.Stores().Matches

	for _, record := range []*models.MatchRecord{
		{MatchGroupID: "g1", LedgerTransactionID: "txn-1"},
		{MatchGroupID: "g1", CounterpartyTransactionID: "cp-1"},
		{MatchGroupID: "g2", LedgerTransactionID: "txn-2"},
	} {
		if err := matches.Create(ctx, record); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	groupID, err := matches.FindGroupForLedger(ctx, "txn-1")
	if err != nil || groupID != "g1" {
		t.Errorf("FindGroupForLedger = (%q, %v), want g1", groupID, err)
	}
	if groupID, _ := matches.FindGroupForLedger(ctx, "cp-1"); groupID != "" {
		t.Error("counterparty ids must not resolve through FindGroupForLedger")
	}

	if err := matches.DeleteGroup(ctx, "g1"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if records, _ := matches.ListByGroup(ctx, "g1"); len(records) != 0 {
		t.Errorf("g1 records remain after delete: %+v", records)
	}
	if records, _ := matches.ListByGroup(ctx, "g2"); len(records) != 1 {
		t.Errorf("g2 should be untouched, got %+v", records)
	}
}
