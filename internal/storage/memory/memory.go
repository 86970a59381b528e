// Package memory provides mutex-guarded in-memory implementations of the
// storage contracts, used by the engine tests and for ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"
)

// Store holds all four ledgers in process memory. Insertion order is kept so
// fetches are deterministic. Returned records are copies; mutations only
// happen through the store methods.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	bank      map[string]*models.LedgerTransaction
	bankOrder []string

	cards     map[string]*models.CardTransaction
	cardOrder []string

	counterparties map[string]*models.CounterpartyTransaction
	cpOrder        []string

	rules      []*models.ReconciliationRule
	nextRuleID int64

	matchRecords []*models.MatchRecord
	nextRecordID int64
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		bank:           make(map[string]*models.LedgerTransaction),
		cards:          make(map[string]*models.CardTransaction),
		counterparties: make(map[string]*models.CounterpartyTransaction),
	}
}

// Stores returns the store bundle backed by this instance
func (s *Store) Stores() storage.Stores {
	return storage.Stores{
		Ledger:       &ledgerView{s},
		Counterparty: &counterpartyView{s},
		Rules:        &ruleView{s},
		Matches:      &matchRecordView{s},
	}
}

// RunInTx serializes the closure against other transactional work. Writes are
// applied immediately; rollback is not simulated by the in-memory store.
func (s *Store) RunInTx(ctx context.Context, fn func(storage.Stores) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s.Stores())
}

// Seeding helpers

// AddBankTransaction seeds a bank-table transaction
func (s *Store) AddBankTransaction(lt *models.LedgerTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *lt
	cp.Source = models.SourceBank
	s.bank[cp.ID] = &cp
	s.bankOrder = append(s.bankOrder, cp.ID)
}

// AddCardTransaction seeds a card-table transaction
func (s *Store) AddCardTransaction(ct *models.CardTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ct
	s.cards[cp.ID] = &cp
	s.cardOrder = append(s.cardOrder, cp.ID)
}

// AddCounterpartyTransaction seeds a counterparty ledger transaction
func (s *Store) AddCounterpartyTransaction(ct *models.CounterpartyTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ct
	s.counterparties[cp.ID] = &cp
	s.cpOrder = append(s.cpOrder, cp.ID)
}

// ledgerView implements storage.LedgerStore over the shared state
type ledgerView struct{ s *Store }

// FetchUnreconciled returns unreconciled bank and card transactions in the
// window, cards normalized into the ledger shape at fetch time.
func (v *ledgerView) FetchUnreconciled(ctx context.Context, r storage.DateRange, accountIDs []string) ([]*models.LedgerTransaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	accounts := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		accounts[id] = true
	}
	include := func(accountID string) bool {
		return len(accounts) == 0 || accounts[accountID]
	}

	var out []*models.LedgerTransaction
	for _, id := range v.s.bankOrder {
		lt := v.s.bank[id]
		if lt.Reconciled || !r.Contains(lt.Date) || !include(lt.AccountID) {
			continue
		}
		// Personal-purpose bank rows are ineligible for business reconciliation
		if lt.Purpose == "personal" {
			continue
		}
		cp := *lt
		out = append(out, &cp)
	}
	for _, id := range v.s.cardOrder {
		card := v.s.cards[id]
		if card.Reconciled {
			continue
		}
		lt := models.NormalizeCard(card)
		if !r.Contains(lt.Date) || !include(lt.AccountID) {
			continue
		}
		out = append(out, lt)
	}
	return out, nil
}

// Get resolves an id against the bank table and then the card table
func (v *ledgerView) Get(ctx context.Context, id string) (*models.LedgerTransaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	if lt, ok := v.s.bank[id]; ok {
		cp := *lt
		return &cp, nil
	}
	if card, ok := v.s.cards[id]; ok {
		return models.NormalizeCard(card), nil
	}
	return nil, nil
}

// SetReconciled marks a ledger transaction reconciled in its owning table
func (v *ledgerView) SetReconciled(ctx context.Context, id, withID string, withType models.ReconciledWithType) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if lt, ok := v.s.bank[id]; ok {
		lt.Reconciled = true
		lt.ReconciledWithID = withID
		lt.ReconciledWithType = withType
		return nil
	}
	if card, ok := v.s.cards[id]; ok {
		card.Reconciled = true
		card.ReconciledWithID = withID
		card.ReconciledWithType = withType
	}
	return nil
}

// ClearReconciled reverts a ledger transaction to unreconciled
func (v *ledgerView) ClearReconciled(ctx context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if lt, ok := v.s.bank[id]; ok {
		lt.ClearReconciliation()
		return nil
	}
	if card, ok := v.s.cards[id]; ok {
		card.Reconciled = false
		card.ReconciledWithID = ""
		card.ReconciledWithType = ""
	}
	return nil
}

// FindReconciledWith returns ledger transactions whose back-reference equals withID
func (v *ledgerView) FindReconciledWith(ctx context.Context, withID string) ([]*models.LedgerTransaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*models.LedgerTransaction
	for _, id := range v.s.bankOrder {
		if lt := v.s.bank[id]; lt.Reconciled && lt.ReconciledWithID == withID {
			cp := *lt
			out = append(out, &cp)
		}
	}
	for _, id := range v.s.cardOrder {
		if card := v.s.cards[id]; card.Reconciled && card.ReconciledWithID == withID {
			out = append(out, models.NormalizeCard(card))
		}
	}
	return out, nil
}

// counterpartyView implements storage.CounterpartyStore over the shared state
type counterpartyView struct{ s *Store }

// FetchUnreconciled returns unreconciled counterparty rows eligible for
// automatic matching.
func (v *counterpartyView) FetchUnreconciled(ctx context.Context, r storage.DateRange) ([]*models.CounterpartyTransaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*models.CounterpartyTransaction
	for _, id := range v.s.cpOrder {
		ct := v.s.counterparties[id]
		if ct.Reconciled || !r.Contains(ct.Date) || !ct.TxnType.AutoMatchable() {
			continue
		}
		cp := *ct
		out = append(out, &cp)
	}
	return out, nil
}

// Get resolves a counterparty transaction by id
func (v *counterpartyView) Get(ctx context.Context, id string) (*models.CounterpartyTransaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	if ct, ok := v.s.counterparties[id]; ok {
		cp := *ct
		return &cp, nil
	}
	return nil, nil
}

// SetReconciled marks a counterparty row reconciled with a fingerprint
func (v *counterpartyView) SetReconciled(ctx context.Context, id, withID string, fingerprint models.Fingerprint) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if ct, ok := v.s.counterparties[id]; ok {
		ct.Reconciled = true
		ct.ReconciledWithID = withID
		ct.Fingerprint = fingerprint
	}
	return nil
}

// ClearReconciled reverts a counterparty row to unreconciled, keeping the
// fingerprint for audit.
func (v *counterpartyView) ClearReconciled(ctx context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if ct, ok := v.s.counterparties[id]; ok {
		ct.ClearReconciliation()
	}
	return nil
}

// FindReconciledWith returns counterparty rows whose back-reference equals withID
func (v *counterpartyView) FindReconciledWith(ctx context.Context, withID string) ([]*models.CounterpartyTransaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*models.CounterpartyTransaction
	for _, id := range v.s.cpOrder {
		if ct := v.s.counterparties[id]; ct.Reconciled && ct.ReconciledWithID == withID {
			cp := *ct
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ruleView implements storage.RuleStore over the shared state
type ruleView struct{ s *Store }

// ListActive returns active rules for the user ordered by priority desc, then
// match count desc.
func (v *ruleView) ListActive(ctx context.Context, userID string) ([]*models.ReconciliationRule, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*models.ReconciliationRule
	for _, r := range v.s.rules {
		if r.UserID == userID && r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sortRules(out)
	return out, nil
}

// Upsert inserts a rule or reinforces the existing one for the pattern
func (v *ruleView) Upsert(ctx context.Context, userID string, patternType models.PatternType, patternValue, partyName string, priority int) (*models.ReconciliationRule, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for _, r := range v.s.rules {
		if r.UserID == userID && r.PatternType == patternType && r.PatternValue == patternValue {
			r.MatchCount++
			r.PartyName = partyName
			cp := *r
			return &cp, nil
		}
	}

	v.s.nextRuleID++
	rule := &models.ReconciliationRule{
		ID:           v.s.nextRuleID,
		UserID:       userID,
		PatternType:  patternType,
		PatternValue: patternValue,
		PartyName:    partyName,
		MatchCount:   1,
		Priority:     priority,
		IsActive:     true,
	}
	v.s.rules = append(v.s.rules, rule)
	cp := *rule
	return &cp, nil
}

// matchRecordView implements storage.MatchRecordStore over the shared state
type matchRecordView struct{ s *Store }

// Create appends one match-group membership row
func (v *matchRecordView) Create(ctx context.Context, record *models.MatchRecord) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	v.s.nextRecordID++
	cp := *record
	cp.ID = v.s.nextRecordID
	v.s.matchRecords = append(v.s.matchRecords, &cp)
	return nil
}

// ListByGroup returns all membership rows of a group
func (v *matchRecordView) ListByGroup(ctx context.Context, groupID string) ([]*models.MatchRecord, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*models.MatchRecord
	for _, mr := range v.s.matchRecords {
		if mr.MatchGroupID == groupID {
			cp := *mr
			out = append(out, &cp)
		}
	}
	return out, nil
}

// DeleteGroup removes all membership rows of a group
func (v *matchRecordView) DeleteGroup(ctx context.Context, groupID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	kept := v.s.matchRecords[:0]
	for _, mr := range v.s.matchRecords {
		if mr.MatchGroupID != groupID {
			kept = append(kept, mr)
		}
	}
	v.s.matchRecords = kept
	return nil
}

// FindGroupForLedger returns the group id a ledger transaction belongs to
func (v *matchRecordView) FindGroupForLedger(ctx context.Context, ledgerID string) (string, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	for _, mr := range v.s.matchRecords {
		if mr.LedgerTransactionID == ledgerID {
			return mr.MatchGroupID, nil
		}
	}
	return "", nil
}

func sortRules(rules []*models.ReconciliationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].MatchCount > rules[j].MatchCount
	})
}
