package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"

	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedBankRow(t *testing.T, store *Store, id, date, amount, direction, narration, accountID, purpose string) {
	t.Helper()
	_, err := store.DB().Exec(`INSERT INTO bank_transactions
		(id, date, amount, direction, narration, account_id, purpose)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, date, amount, direction, narration, accountID, purpose)
	if err != nil {
		t.Fatalf("seed bank row: %v", err)
	}
}

func seedCardRow(t *testing.T, store *Store, id, date, amount, direction, description, accountID, syncSource string) {
	t.Helper()
	_, err := store.DB().Exec(`INSERT INTO card_transactions
		(id, date, amount, direction, description, account_id, sync_source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, date, amount, direction, description, accountID, syncSource)
	if err != nil {
		t.Fatalf("seed card row: %v", err)
	}
}

func seedCounterpartyRow(t *testing.T, store *Store, id, date, amount, txnType, party string) {
	t.Helper()
	_, err := store.DB().Exec(`INSERT INTO counterparty_transactions
		(id, date, amount, txn_type, party_name)
		VALUES (?, ?, ?, ?, ?)`,
		id, date, amount, txnType, party)
	if err != nil {
		t.Fatalf("seed counterparty row: %v", err)
	}
}

func testWindow() storage.DateRange {
	return storage.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestLedgerFetchUnreconciledAcrossTables(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedBankRow(t, store, "bank-1", "2024-01-05", "100.00", "debit", "CHEQUE 1", "acc-1", "business")
	seedBankRow(t, store, "bank-personal", "2024-01-05", "50.00", "debit", "ATM", "acc-1", "personal")
	seedCardRow(t, store, "card-1", "2024-01-06", "200.00", "debit", "SWIGGY", "cc-1", "manual")
	seedCardRow(t, store, "card-gmail", "2024-01-06", "75.00", "debit", "UBER", "cc-1", "gmail")

	out, err := store.Stores().Ledger.FetchUnreconciled(ctx, testWindow(), nil)
	if err != nil {
		t.Fatalf("FetchUnreconciled: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("fetched %d rows, want 2 (personal and gmail-synced excluded): %+v", len(out), out)
	}

	byID := map[string]*models.LedgerTransaction{}
	for _, lt := range out {
		byID[lt.ID] = lt
	}
	if byID["bank-1"] == nil || byID["bank-1"].Source != models.SourceBank {
		t.Errorf("bank row missing or mistagged: %+v", byID["bank-1"])
	}
	if byID["card-1"] == nil || byID["card-1"].Source != models.SourceCreditCard {
		t.Errorf("card row missing or mistagged: %+v", byID["card-1"])
	}
	if byID["card-1"] != nil && byID["card-1"].Narration != "SWIGGY" {
		t.Errorf("card description not normalized into narration: %+v", byID["card-1"])
	}
}

func TestLedgerSetAndClearReconciledResolvesTable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ledger := store.Stores().Ledger

	seedBankRow(t, store, "bank-1", "2024-01-05", "100.00", "debit", "CHEQUE 1", "acc-1", "business")
	seedCardRow(t, store, "card-1", "2024-01-06", "200.00", "debit", "SWIGGY", "cc-1", "manual")

	for _, id := range []string{"bank-1", "card-1"} {
		if err := ledger.SetReconciled(ctx, id, "cp-1", models.ReconciledWithCounterparty); err != nil {
			t.Fatalf("SetReconciled(%s): %v", id, err)
		}
		lt, err := ledger.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if !lt.Reconciled || lt.ReconciledWithID != "cp-1" || lt.ReconciledWithType != models.ReconciledWithCounterparty {
			t.Errorf("%s not reconciled: %+v", id, lt)
		}

		if err := ledger.ClearReconciled(ctx, id); err != nil {
			t.Fatalf("ClearReconciled(%s): %v", id, err)
		}
		lt, _ = ledger.Get(ctx, id)
		if lt.Reconciled || lt.ReconciledWithID != "" {
			t.Errorf("%s not cleared: %+v", id, lt)
		}
	}
}

func TestLedgerGetMissingIsNil(t *testing.T) {
	store := openTestStore(t)

	lt, err := store.Stores().Ledger.Get(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lt != nil {
		t.Errorf("missing record should be (nil, nil), got %+v", lt)
	}
}

func TestCounterpartyReconcileKeepsFingerprintAfterClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	cps := store.Stores().Counterparty

	seedCounterpartyRow(t, store, "cp-1", "2024-01-05", "100.00", "Expense", "Acme")

	fp := models.Fingerprint{
		MatchedDate:      time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		MatchedAmount:    decimal.RequireFromString("100.00"),
		MatchedNarration: "UPI/ACME/1",
		MatchedAccountID: "acc-1",
	}
	if err := cps.SetReconciled(ctx, "cp-1", "txn-1", fp); err != nil {
		t.Fatalf("SetReconciled: %v", err)
	}
	if err := cps.ClearReconciled(ctx, "cp-1"); err != nil {
		t.Fatalf("ClearReconciled: %v", err)
	}

	ct, err := cps.Get(ctx, "cp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ct.Reconciled || ct.ReconciledWithID != "" {
		t.Errorf("row not cleared: %+v", ct)
	}
	if ct.Fingerprint.MatchedNarration != "UPI/ACME/1" || ct.Fingerprint.MatchedAccountID != "acc-1" {
		t.Errorf("fingerprint lost on clear: %+v", ct.Fingerprint)
	}
}

func TestCounterpartyFetchExcludesIneligibleTypes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedCounterpartyRow(t, store, "sale", "2024-01-05", "100.00", "Sale", "Acme")
	seedCounterpartyRow(t, store, "sale-order", "2024-01-05", "100.00", "Sale Order", "Acme")
	seedCounterpartyRow(t, store, "payment-in", "2024-01-05", "100.00", "Payment-In", "Acme")

	out, err := store.Stores().Counterparty.FetchUnreconciled(ctx, testWindow())
	if err != nil {
		t.Fatalf("FetchUnreconciled: %v", err)
	}
	if len(out) != 1 || out[0].ID != "sale" {
		t.Errorf("fetched %+v, want only the sale row", out)
	}
}

func TestRuleUpsertReinforces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	rules := store.Stores().Rules

	first, err := rules.Upsert(ctx, "u1", models.PatternUPIName, "ACMECORP", "Acme", models.ManualRulePriority)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if first.MatchCount != 1 {
		t.Errorf("new rule match count = %d, want 1", first.MatchCount)
	}

	second, err := rules.Upsert(ctx, "u1", models.PatternUPIName, "ACMECORP", "Acme Corp Pvt Ltd", models.ManualRulePriority)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("reinforcement created a new rule: %d != %d", second.ID, first.ID)
	}
	if second.MatchCount != 2 || second.PartyName != "Acme Corp Pvt Ltd" {
		t.Errorf("rule = %+v, want matchCount 2 and the latest party name", second)
	}

	listed, err := rules.ListActive(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("listed %d rules, want 1", len(listed))
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedBankRow(t, store, "bank-1", "2024-01-05", "100.00", "debit", "CHEQUE 1", "acc-1", "business")

	wantErr := fmt.Errorf("boom")
	err := store.RunInTx(ctx, func(st storage.Stores) error {
		if err := st.Ledger.SetReconciled(ctx, "bank-1", "cp-1", models.ReconciledWithCounterparty); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("RunInTx error = %v, want the closure error", err)
	}

	lt, err := store.Stores().Ledger.Get(ctx, "bank-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lt.Reconciled {
		t.Error("write survived a rolled-back transaction")
	}
}

func TestMatchRecordsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	matches := store.Stores().Matches

	records := []*models.MatchRecord{
		{MatchGroupID: "g1", LedgerTransactionID: "txn-1"},
		{MatchGroupID: "g1", CounterpartyTransactionID: "cp-1"},
	}
	for _, record := range records {
		if err := matches.Create(ctx, record); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if record.ID == 0 {
			t.Error("Create should populate the record id")
		}
	}

	groupID, err := matches.FindGroupForLedger(ctx, "txn-1")
	if err != nil || groupID != "g1" {
		t.Errorf("FindGroupForLedger = (%q, %v), want g1", groupID, err)
	}
	if groupID, _ := matches.FindGroupForLedger(ctx, "unknown"); groupID != "" {
		t.Errorf("unknown ledger id resolved to group %q", groupID)
	}

	listed, err := matches.ListByGroup(ctx, "g1")
	if err != nil || len(listed) != 2 {
		t.Fatalf("ListByGroup = (%d records, %v), want 2", len(listed), err)
	}

	if err := matches.DeleteGroup(ctx, "g1"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if listed, _ := matches.ListByGroup(ctx, "g1"); len(listed) != 0 {
		t.Errorf("records remain after DeleteGroup: %+v", listed)
	}
}
