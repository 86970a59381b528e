package reconciler

import (
	"context"

	"ledger-reconciliation-engine/internal/matcher"
	"ledger-reconciliation-engine/internal/models"
	"ledger-reconciliation-engine/internal/storage"
	"ledger-reconciliation-engine/pkg/logger"
)

// RuleLearner derives narration-pattern rules from manual matches. A narration
// without a recognized transfer-rail pattern learns nothing; the caller's
// match still succeeds.
type RuleLearner struct {
	userID string
	logger logger.Logger
}

// NewRuleLearner creates a learner scoped to one user.
func NewRuleLearner(userID string) *RuleLearner {
	return &RuleLearner{
		userID: userID,
		logger: logger.GetGlobalLogger().WithComponent("learner"),
	}
}

// LearnFromManualMatch extracts the narration pattern and upserts the rule
// binding it to the confirmed party name. Repeated confirmations reinforce the
// same rule: its match count grows and the party name tracks the latest
// confirmation.
func (l *RuleLearner) LearnFromManualMatch(ctx context.Context, rules storage.RuleStore, narration, partyName string) error {
	if partyName == "" {
		return nil
	}
	patternType, patternValue, ok := matcher.ExtractPattern(narration)
	if !ok {
		l.logger.WithField("narration", narration).Debug("No learnable pattern in narration")
		return nil
	}

	rule, err := rules.Upsert(ctx, l.userID, patternType, patternValue, partyName, models.ManualRulePriority)
	if err != nil {
		return err
	}

	l.logger.WithFields(logger.Fields{
		"pattern_type":  string(patternType),
		"pattern_value": patternValue,
		"party_name":    partyName,
		"match_count":   rule.MatchCount,
	}).Info("Learned reconciliation rule")
	return nil
}
