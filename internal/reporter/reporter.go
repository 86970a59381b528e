// Package reporter renders proposed matches and apply results for human and
// machine consumption.
//
// Supported output formats:
//   - Console: human-readable tabular output for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: comma-separated rows for spreadsheet applications
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"ledger-reconciliation-engine/internal/matcher"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Summary aggregates a proposal set by tier.
type Summary struct {
	Total         int            `json:"total"`
	ByMatchType   map[string]int `json:"byMatchType"`
	AvgConfidence float64        `json:"avgConfidence"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}

// Report pairs the proposal list with its summary for structured output.
type Report struct {
	Summary Summary                  `json:"summary"`
	Matches []*matcher.ProposedMatch `json:"matches"`
}

// BuildReport computes the summary over a proposal set.
func BuildReport(proposals []*matcher.ProposedMatch) *Report {
	summary := Summary{
		Total:       len(proposals),
		ByMatchType: make(map[string]int),
		GeneratedAt: time.Now().UTC(),
	}
	confidenceSum := 0
	for _, pm := range proposals {
		summary.ByMatchType[string(pm.MatchType)]++
		confidenceSum += pm.Confidence
	}
	if len(proposals) > 0 {
		summary.AvgConfidence = float64(confidenceSum) / float64(len(proposals))
	}
	return &Report{Summary: summary, Matches: proposals}
}

// Write renders the report to w in the requested format.
func (r *Report) Write(w io.Writer, format OutputFormat) error {
	switch format {
	case FormatConsole:
		return r.writeConsole(w)
	case FormatJSON:
		return r.writeJSON(w)
	case FormatCSV:
		return r.writeCSV(w)
	default:
		return fmt.Errorf("invalid output format: %s", format)
	}
}

func (r *Report) writeConsole(w io.Writer) error {
	if r.Summary.Total == 0 {
		_, err := fmt.Fprintln(w, "No matches proposed.")
		return err
	}

	fmt.Fprintf(w, "Proposed matches: %d (avg confidence %.1f)\n", r.Summary.Total, r.Summary.AvgConfidence)

	types := make([]string, 0, len(r.Summary.ByMatchType))
	for t := range r.Summary.ByMatchType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-12s %d\n", t, r.Summary.ByMatchType[t])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-24s %-24s %-12s %5s %12s %12s\n",
		"LEDGER TXN", "COUNTERPARTY TXN", "TYPE", "CONF", "LEDGER DATE", "CP DATE")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, pm := range r.Matches {
		fmt.Fprintf(w, "%-24s %-24s %-12s %5d %12s %12s\n",
			truncate(pm.LedgerTransactionID, 24),
			truncate(pm.CounterpartyTransactionID, 24),
			pm.MatchType,
			pm.Confidence,
			pm.LedgerDate.Format("2006-01-02"),
			pm.CounterpartyDate.Format("2006-01-02"))
	}
	return nil
}

func (r *Report) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r *Report) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"ledger_transaction_id", "counterparty_transaction_id",
		"match_type", "confidence",
		"ledger_amount", "counterparty_amount",
		"ledger_date", "counterparty_date",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, pm := range r.Matches {
		row := []string{
			pm.LedgerTransactionID,
			pm.CounterpartyTransactionID,
			string(pm.MatchType),
			strconv.Itoa(pm.Confidence),
			pm.LedgerAmount.String(),
			pm.CounterpartyAmount.String(),
			pm.LedgerDate.Format("2006-01-02"),
			pm.CounterpartyDate.Format("2006-01-02"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
