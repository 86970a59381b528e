package matcher

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Generic transfer prefixes tried after the rail patterns when extracting a
// party name for fuzzy comparison, e.g. "PAYMENT TO ACME TRADERS".
var partyPrefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bTO[:\- ]+([^/\-:]+)`),
	regexp.MustCompile(`(?i)\bFROM[:\- ]+([^/\-:]+)`),
	regexp.MustCompile(`(?i)\bBY[:\- ]+([^/\-:]+)`),
}

// Similarity computes normalized edit-distance similarity between two party
// names: 1 - lev(lower(a), lower(b)) / max(len(a), len(b)). Two empty strings
// are considered identical. Case folding is the only normalization applied.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// ExtractPartyName pulls a comparable party name out of a narration. It tries
// each rail-prefixed pattern first, then the generic TO/FROM/BY prefixes, and
// falls back to the whole narration when nothing matches.
func ExtractPartyName(narration string) string {
	if _, token, ok := ExtractPattern(narration); ok {
		return token
	}
	for _, re := range partyPrefixPatterns {
		if m := re.FindStringSubmatch(narration); m != nil {
			token := strings.TrimSpace(m[1])
			if token != "" {
				return token
			}
		}
	}
	return narration
}
