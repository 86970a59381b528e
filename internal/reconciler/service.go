// Package reconciler implements the reconciliation engine: automatic match
// proposal over snapshot data, explicit apply of proposed and manual matches,
// many-to-many match groups and defensive unmatch recovery.
package reconciler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ledger-reconciliation-engine/internal/matcher"
	"ledger-reconciliation-engine/internal/storage"
	pkgerrors "ledger-reconciliation-engine/pkg/errors"
	"ledger-reconciliation-engine/pkg/logger"
)

// Engine coordinates the stores, the matcher and the rule learner. Reads for a
// run happen as one snapshot; writes go through the TxRunner so each match (or
// group) commits atomically.
type Engine struct {
	stores  storage.Stores
	tx      storage.TxRunner
	matcher *matcher.Matcher
	learner *RuleLearner
	userID  string
	logger  logger.Logger

	// runLocks serializes reconciliation runs per account window so two
	// concurrent runs cannot propose the same counterparty transaction twice.
	runLocks keyedMutex
}

// New creates an engine for one user over the given store bundle.
func New(stores storage.Stores, tx storage.TxRunner, config *matcher.Config, userID string) *Engine {
	return &Engine{
		stores:  stores,
		tx:      tx,
		matcher: matcher.New(config),
		learner: NewRuleLearner(userID),
		userID:  userID,
		logger:  logger.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// AutoReconcile fetches the unreconciled snapshots for the window, loads the
// user's learned rules and runs the tiered matcher. Nothing is written; the
// returned proposals are applied explicitly via ApplyMatches.
func (e *Engine) AutoReconcile(ctx context.Context, start, end time.Time, accountIDs []string) ([]*matcher.ProposedMatch, error) {
	r := storage.DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return nil, pkgerrors.ValidationError(pkgerrors.CodeInvalidDateRange, "dateRange", err.Error())
	}

	unlock := e.runLocks.lock(windowKey(accountIDs))
	defer unlock()

	ledgerTxns, err := e.stores.Ledger.FetchUnreconciled(ctx, r, accountIDs)
	if err != nil {
		return nil, err
	}
	counterpartyTxns, err := e.stores.Counterparty.FetchUnreconciled(ctx, r)
	if err != nil {
		return nil, err
	}
	rules, err := e.stores.Rules.ListActive(ctx, e.userID)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logger.Fields{
		"start":                     start.Format("2006-01-02"),
		"end":                       end.Format("2006-01-02"),
		"accounts":                  len(accountIDs),
		"ledger_transactions":       len(ledgerTxns),
		"counterparty_transactions": len(counterpartyTxns),
		"rules":                     len(rules),
	}).Info("Starting reconciliation run")

	return e.matcher.Match(ledgerTxns, counterpartyTxns, rules), nil
}

// windowKey derives a lock key from the account filter. An empty filter means
// all accounts and shares one key.
func windowKey(accountIDs []string) string {
	if len(accountIDs) == 0 {
		return "*"
	}
	ids := make([]string, len(accountIDs))
	copy(ids, accountIDs)
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// keyedMutex hands out one mutex per key. Keys are never evicted; the key
// space is bounded by the user's account set.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
