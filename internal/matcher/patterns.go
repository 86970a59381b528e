package matcher

import (
	"regexp"
	"strings"

	"ledger-reconciliation-engine/internal/models"
)

// railPattern associates a transfer rail marker with the regular expression
// that captures the delimiter-bounded token following it.
type railPattern struct {
	Type models.PatternType
	re   *regexp.Regexp
}

// Rail conventions seen in bank narrations, e.g. "UPI-ACMECORP/1234/Payment"
// or "NEFT/AXIS0001/ACME TRADERS/INV-88". The capture stops at the next
// delimiter so only the counterparty token is taken.
var railPatterns = []railPattern{
	{models.PatternUPIName, regexp.MustCompile(`(?i)\bUPI[/\-: ]+([^/\-:]+)`)},
	{models.PatternIMPSName, regexp.MustCompile(`(?i)\bIMPS[/\-: ]+([^/\-:]+)`)},
	{models.PatternNEFTName, regexp.MustCompile(`(?i)\bNEFT[/\-: ]+([^/\-:]+)`)},
	{models.PatternRTGSName, regexp.MustCompile(`(?i)\bRTGS[/\-: ]+([^/\-:]+)`)},
}

// ExtractPattern parses a free-text transfer narration into a typed pattern
// usable for rule lookup and rule learning. It scans the known rail markers in
// order and returns the first one matched together with the trimmed token that
// follows it, uppercased for comparison. The third return value is false when
// no rail marker is present; such narrations cannot seed or look up rules.
func ExtractPattern(narration string) (models.PatternType, string, bool) {
	for _, rail := range railPatterns {
		if m := rail.re.FindStringSubmatch(narration); m != nil {
			token := strings.ToUpper(strings.TrimSpace(m[1]))
			if token == "" {
				continue
			}
			return rail.Type, token, true
		}
	}
	return "", "", false
}
