package matcher

import (
	"math"
	"strings"
	"time"

	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// ProposedMatch is one candidate pairing produced by the matcher. Nothing is
// written until the caller explicitly applies it.
type ProposedMatch struct {
	LedgerTransactionID       string          `json:"ledgerTransactionID"`
	CounterpartyTransactionID string          `json:"counterpartyTransactionID"`
	Confidence                int             `json:"confidence"`
	MatchType                 MatchType       `json:"matchType"`
	LedgerAmount              decimal.Decimal `json:"ledgerAmount"`
	CounterpartyAmount        decimal.Decimal `json:"counterpartyAmount"`
	LedgerDate                time.Time       `json:"ledgerDate"`
	CounterpartyDate          time.Time       `json:"counterpartyDate"`
}

// Matcher generates proposed matches between two in-memory snapshots. It is a
// pure computation: no I/O, safe to run on a single goroutine without
// synchronization.
type Matcher struct {
	config *Config
	logger logger.Logger
}

// New creates a matcher with the given configuration, falling back to
// DefaultConfig when nil.
func New(config *Config) *Matcher {
	if config == nil {
		config = DefaultConfig()
	}
	return &Matcher{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
	}
}

// Config returns a copy of the matcher configuration
func (m *Matcher) Config() *Config {
	return m.config.Clone()
}

// ruleKey indexes learned rules by their extracted pattern
type ruleKey struct {
	Type  models.PatternType
	Value string
}

// tierEval judges one candidate pair for one tier. Directional compatibility
// and auto-matchability are checked by the shared loop before a tier runs.
type tierEval func(lt *models.LedgerTransaction, ct *models.CounterpartyTransaction) (confidence int, matchType MatchType, ok bool)

// Match runs the four tiers in strict priority order over the two snapshots
// and returns the flat list of proposed matches. A ledger or counterparty
// transaction assigned in any tier is excluded from all subsequent tiers; an
// unparsable narration or missing party name disqualifies the candidate pair
// rather than failing the run.
func (m *Matcher) Match(
	ledgerTxns []*models.LedgerTransaction,
	counterpartyTxns []*models.CounterpartyTransaction,
	rules []*models.ReconciliationRule,
) []*ProposedMatch {

	ruleIndex := buildRuleIndex(rules)

	tiers := []struct {
		name string
		eval tierEval
	}{
		{"learned_rule", m.evalLearnedRule(ruleIndex)},
		{"exact", m.evalExact},
		{"date_fuzzy", m.evalDateFuzzy},
		{"party_fuzzy", m.evalPartyFuzzy},
	}

	assignedLedger := make(map[string]bool)
	assignedCounterparty := make(map[string]bool)
	var proposed []*ProposedMatch

	for _, tier := range tiers {
		found := 0
		for _, lt := range ledgerTxns {
			if assignedLedger[lt.ID] || lt.Reconciled {
				continue
			}
			for _, ct := range counterpartyTxns {
				if assignedCounterparty[ct.ID] || ct.Reconciled {
					continue
				}
				if !ct.TxnType.AutoMatchable() || !ct.TxnType.CompatibleWith(lt.Direction) {
					continue
				}
				confidence, matchType, ok := tier.eval(lt, ct)
				if !ok {
					continue
				}
				proposed = append(proposed, &ProposedMatch{
					LedgerTransactionID:       lt.ID,
					CounterpartyTransactionID: ct.ID,
					Confidence:                confidence,
					MatchType:                 matchType,
					LedgerAmount:              lt.Amount,
					CounterpartyAmount:        ct.Amount,
					LedgerDate:                lt.Date,
					CounterpartyDate:          ct.Date,
				})
				assignedLedger[lt.ID] = true
				assignedCounterparty[ct.ID] = true
				found++
				break // first valid candidate wins for this ledger transaction
			}
		}
		if found > 0 {
			m.logger.WithFields(logger.Fields{
				"tier":    tier.name,
				"matches": found,
			}).Debug("Tier completed")
		}
	}

	m.logger.WithFields(logger.Fields{
		"ledger_transactions":       len(ledgerTxns),
		"counterparty_transactions": len(counterpartyTxns),
		"proposed_matches":          len(proposed),
	}).Info("Matching completed")

	return proposed
}

func buildRuleIndex(rules []*models.ReconciliationRule) map[ruleKey]*models.ReconciliationRule {
	index := make(map[ruleKey]*models.ReconciliationRule, len(rules))
	// Rules arrive ordered by priority desc then match count desc; keep the
	// first (strongest) rule per pattern.
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		key := ruleKey{Type: r.PatternType, Value: strings.ToUpper(r.PatternValue)}
		if _, exists := index[key]; !exists {
			index[key] = r
		}
	}
	return index
}

// evalLearnedRule matches through a previously learned narration pattern: the
// stored party name must equal the counterparty's, amounts must match and the
// dates must fall within the tolerance window.
func (m *Matcher) evalLearnedRule(index map[ruleKey]*models.ReconciliationRule) tierEval {
	return func(lt *models.LedgerTransaction, ct *models.CounterpartyTransaction) (int, MatchType, bool) {
		patternType, patternValue, ok := ExtractPattern(lt.Narration)
		if !ok {
			return 0, "", false
		}
		rule, exists := index[ruleKey{Type: patternType, Value: patternValue}]
		if !exists {
			return 0, "", false
		}
		if !strings.EqualFold(ct.PartyName, rule.PartyName) {
			return 0, "", false
		}
		if !models.AmountsMatch(lt.Amount, ct.Amount) {
			return 0, "", false
		}
		if models.DaysBetween(lt.Date, ct.Date) > m.config.DateToleranceDays {
			return 0, "", false
		}
		return LearnedRuleConfidence, MatchTypeExact, true
	}
}

// evalExact requires an amount match on the identical calendar date
func (m *Matcher) evalExact(lt *models.LedgerTransaction, ct *models.CounterpartyTransaction) (int, MatchType, bool) {
	if !models.AmountsMatch(lt.Amount, ct.Amount) {
		return 0, "", false
	}
	if !models.SameDay(lt.Date, ct.Date) {
		return 0, "", false
	}
	return ExactConfidence, MatchTypeExact, true
}

// evalDateFuzzy accepts an amount match within the date window; confidence
// decays with the day distance down to a floor.
func (m *Matcher) evalDateFuzzy(lt *models.LedgerTransaction, ct *models.CounterpartyTransaction) (int, MatchType, bool) {
	if !models.AmountsMatch(lt.Amount, ct.Amount) {
		return 0, "", false
	}
	dayDiff := models.DaysBetween(lt.Date, ct.Date)
	if dayDiff > m.config.DateToleranceDays {
		return 0, "", false
	}
	confidence := DateFuzzyBase - DateFuzzyDecay*dayDiff
	if confidence < DateFuzzyFloor {
		confidence = DateFuzzyFloor
	}
	return confidence, MatchTypeDateFuzzy, true
}

// evalPartyFuzzy accepts an amount match whose extracted party name is similar
// enough to the counterparty's party name, regardless of date.
func (m *Matcher) evalPartyFuzzy(lt *models.LedgerTransaction, ct *models.CounterpartyTransaction) (int, MatchType, bool) {
	if !models.AmountsMatch(lt.Amount, ct.Amount) {
		return 0, "", false
	}
	if ct.PartyName == "" {
		return 0, "", false
	}
	sim := Similarity(ExtractPartyName(lt.Narration), ct.PartyName)
	if sim <= m.config.PartySimilarityThreshold {
		return 0, "", false
	}
	confidence := int(math.Round(sim*PartyFuzzyScale + PartyFuzzyOffset))
	return confidence, MatchTypePartyFuzzy, true
}
