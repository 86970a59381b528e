// Package matcher implements the multi-tier candidate generation algorithm
// that pairs ledger transactions with counterparty ledger transactions.
//
// Matching runs four tiers in strict priority order:
//  1. Learned rule: a previously learned narration pattern names the party
//  2. Exact: amount match on the identical date
//  3. Date-fuzzy: amount match within the date tolerance window
//  4. Party-fuzzy: amount match plus party-name similarity
//
// Each tier scans the remaining unassigned transactions and greedily accepts
// the first structurally valid candidate per ledger transaction. Once a
// transaction is assigned it is excluded from all later tiers. The result is
// deliberately not a globally optimal assignment; the tier loop can be swapped
// for a weighted bipartite solver later without changing the public contract.
//
// Example usage:
//
//	m := matcher.New(matcher.DefaultConfig())
//	proposed := m.Match(ledgerTxns, counterpartyTxns, rules)
package matcher

import "fmt"

// MatchType labels which tier produced a proposed match.
type MatchType string

const (
	// MatchTypeExact covers both the learned-rule and same-date tiers
	MatchTypeExact MatchType = "exact"
	// MatchTypeDateFuzzy marks an amount match within the date window
	MatchTypeDateFuzzy MatchType = "date_fuzzy"
	// MatchTypePartyFuzzy marks an amount match with a similar party name
	MatchTypePartyFuzzy MatchType = "party_fuzzy"
)

// String returns the string representation of MatchType
func (mt MatchType) String() string {
	return string(mt)
}

// Confidence scores and formula constants for the four tiers.
const (
	// LearnedRuleConfidence is returned by the learned-rule tier
	LearnedRuleConfidence = 98
	// ExactConfidence is returned by the same-date exact tier
	ExactConfidence = 100
	// DateFuzzyBase minus DateFuzzyDecay per day apart, floored at DateFuzzyFloor
	DateFuzzyBase  = 95
	DateFuzzyDecay = 3
	DateFuzzyFloor = 75
	// Party-fuzzy confidence = round(similarity*PartyFuzzyScale + PartyFuzzyOffset)
	PartyFuzzyScale  = 60
	PartyFuzzyOffset = 20
)

// Config holds the tunable parameters of the matcher. Amount tolerance is
// fixed at models.AmountTolerance; only the date window and the party
// similarity threshold vary between deployments.
type Config struct {
	// DateToleranceDays bounds the learned-rule and date-fuzzy tiers
	DateToleranceDays int `json:"date_tolerance_days"`

	// PartySimilarityThreshold is the minimum similarity for the party-fuzzy
	// tier; candidates at or below it are disqualified
	PartySimilarityThreshold float64 `json:"party_similarity_threshold"`
}

// DefaultConfig returns the production matching configuration
func DefaultConfig() *Config {
	return &Config{
		DateToleranceDays:        7,
		PartySimilarityThreshold: 0.8,
	}
}

// Validate checks if the matching configuration is valid
func (c *Config) Validate() error {
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", c.DateToleranceDays)
	}
	if c.PartySimilarityThreshold < 0.0 || c.PartySimilarityThreshold > 1.0 {
		return fmt.Errorf("party similarity threshold must be between 0.0 and 1.0: %f", c.PartySimilarityThreshold)
	}
	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
