// Package config assembles component configurations from CLI flag values.
package config

import (
	"fmt"

	"ledger-reconciliation-engine/internal/matcher"
)

// EngineSettings collects the flag-derived settings needed to assemble the
// reconciliation engine.
type EngineSettings struct {
	DBPath                   string
	UserID                   string
	DateToleranceDays        int
	PartySimilarityThreshold float64
}

// Validate checks that the settings are usable
func (s *EngineSettings) Validate() error {
	if s.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if s.UserID == "" {
		return fmt.Errorf("user cannot be empty")
	}
	return nil
}

// MatcherConfig builds the matcher configuration, starting from defaults and
// applying any explicitly set overrides.
func (s *EngineSettings) MatcherConfig() (*matcher.Config, error) {
	cfg := matcher.DefaultConfig()
	if s.DateToleranceDays > 0 {
		cfg.DateToleranceDays = s.DateToleranceDays
	}
	if s.PartySimilarityThreshold > 0 {
		cfg.PartySimilarityThreshold = s.PartySimilarityThreshold
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matcher configuration: %w", err)
	}
	return cfg, nil
}
