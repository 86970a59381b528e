package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"ledger-reconciliation-engine/cmd/reconciler/config"
	"ledger-reconciliation-engine/internal/reconciler"
	"ledger-reconciliation-engine/internal/reporter"
	"ledger-reconciliation-engine/internal/storage/sqlite"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	startDate      string
	endDate        string
	accountIDs     []string
	applyProposals bool
	outputFormat   string
	outputFile     string
	dateTolerance  int
	partyThreshold float64
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Propose matches between account movements and the business ledger",
	Long: `Reconcile fetches the unreconciled bank and card transactions in the date
window, runs the tiered matching algorithm against the unreconciled business
ledger and prints the proposed matches. Nothing is written unless --apply is
given.

Examples:
  # Propose matches for January
  reconciler reconcile --db books.db --start-date 2024-01-01 --end-date 2024-01-31

  # Limit to two accounts and apply the proposals
  reconciler reconcile --db books.db --start-date 2024-01-01 --end-date 2024-01-31 \
    --accounts acc-1,acc-2 --apply

  # Machine-readable output
  reconciler reconcile --db books.db --start-date 2024-01-01 --end-date 2024-01-31 \
    --output-format json --output-file proposals.json`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&startDate, "start-date", "", "window start date, inclusive (YYYY-MM-DD, required)")
	reconcileCmd.Flags().StringVar(&endDate, "end-date", "", "window end date, inclusive (YYYY-MM-DD, required)")
	reconcileCmd.Flags().StringSliceVar(&accountIDs, "accounts", nil, "comma-separated account ids (default: all accounts)")
	reconcileCmd.Flags().BoolVar(&applyProposals, "apply", false, "persist the proposed matches")
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().IntVarP(&dateTolerance, "date-tolerance", "d", 0, "date matching tolerance in days (default 7)")
	reconcileCmd.Flags().Float64Var(&partyThreshold, "party-threshold", 0, "party name similarity threshold (default 0.8)")

	reconcileCmd.MarkFlagRequired("start-date")
	reconcileCmd.MarkFlagRequired("end-date")

	viper.BindPFlag("start-date", reconcileCmd.Flags().Lookup("start-date"))
	viper.BindPFlag("end-date", reconcileCmd.Flags().Lookup("end-date"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("date-tolerance", reconcileCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("party-threshold", reconcileCmd.Flags().Lookup("party-threshold"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	startDate = viper.GetString("start-date")
	endDate = viper.GetString("end-date")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	dateTolerance = viper.GetInt("date-tolerance")
	partyThreshold = viper.GetFloat64("party-threshold")

	if startDate == "" || endDate == "" {
		return fmt.Errorf("start-date and end-date are required")
	}
	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format: %s (expected console, json or csv)", outputFormat)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return fmt.Errorf("invalid start-date %q: expected YYYY-MM-DD", startDate)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return fmt.Errorf("invalid end-date %q: expected YYYY-MM-DD", endDate)
	}

	engine, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	proposals, err := engine.AutoReconcile(ctx, start, end, accountIDs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	report := reporter.BuildReport(proposals)
	if err := report.Write(out, reporter.OutputFormat(outputFormat)); err != nil {
		return err
	}

	if !applyProposals {
		return nil
	}
	result, err := engine.ApplyMatches(ctx, proposals)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d match(es), skipped %d.\n", result.Applied, result.Skipped)
	return nil
}

// openEngine assembles the engine over the SQLite store named by the
// persistent flags. The caller closes the returned store.
func openEngine() (*reconciler.Engine, *sqlite.Store, error) {
	settings := &config.EngineSettings{
		DBPath:                   viper.GetString("db"),
		UserID:                   viper.GetString("user"),
		DateToleranceDays:        dateTolerance,
		PartySimilarityThreshold: partyThreshold,
	}
	if err := settings.Validate(); err != nil {
		return nil, nil, err
	}
	matcherConfig, err := settings.MatcherConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := sqlite.Open(settings.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return reconciler.New(store.Stores(), store, matcherConfig, settings.UserID), store, nil
}
