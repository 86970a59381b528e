package config

import "testing"

func TestEngineSettingsValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings EngineSettings
		wantErr  bool
	}{
		{"valid", EngineSettings{DBPath: "books.db", UserID: "u1"}, false},
		{"missing db", EngineSettings{UserID: "u1"}, true},
		{"missing user", EngineSettings{DBPath: "books.db"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMatcherConfigDefaultsAndOverrides(t *testing.T) {
	s := &EngineSettings{DBPath: "books.db", UserID: "u1"}
	cfg, err := s.MatcherConfig()
	if err != nil {
		t.Fatalf("MatcherConfig: %v", err)
	}
	if cfg.DateToleranceDays != 7 || cfg.PartySimilarityThreshold != 0.8 {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	s.DateToleranceDays = 3
	s.PartySimilarityThreshold = 0.9
	cfg, err = s.MatcherConfig()
	if err != nil {
		t.Fatalf("MatcherConfig: %v", err)
	}
	if cfg.DateToleranceDays != 3 || cfg.PartySimilarityThreshold != 0.9 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestMatcherConfigRejectsBadThreshold(t *testing.T) {
	s := &EngineSettings{DBPath: "books.db", UserID: "u1", PartySimilarityThreshold: 1.5}
	if _, err := s.MatcherConfig(); err == nil {
		t.Error("expected error for threshold above 1.0")
	}
}
