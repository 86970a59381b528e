package matcher

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "ACME TRADERS", "ACME TRADERS", 1.0},
		{"case folded", "acme traders", "ACME TRADERS", 1.0},
		{"one edit", "ACME", "ACMF", 0.75},
		{"both empty", "", "", 1.0},
		{"one empty", "", "ACME", 0.0},
		{"disjoint", "ABCD", "WXYZ", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityIsSymmetric(t *testing.T) {
	a, b := "SHARMA TRADERS", "SHARMA TRADING CO"
	if Similarity(a, b) != Similarity(b, a) {
		t.Errorf("Similarity is not symmetric for %q / %q", a, b)
	}
}

func TestExtractPartyName(t *testing.T) {
	tests := []struct {
		name      string
		narration string
		want      string
	}{
		{"rail pattern wins", "UPI/ACMECORP/403912", "ACMECORP"},
		{"generic to prefix", "PAYMENT TO ACME TRADERS", "ACME TRADERS"},
		{"generic from prefix", "RECEIVED FROM GLOBEX LTD", "GLOBEX LTD"},
		{"fallback to narration", "CHEQUE 001234", "CHEQUE 001234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPartyName(tt.narration); got != tt.want {
				t.Errorf("ExtractPartyName(%q) = %q, want %q", tt.narration, got, tt.want)
			}
		})
	}
}
