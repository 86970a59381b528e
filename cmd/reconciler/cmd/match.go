package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// matchCmd reconciles one confirmed pair and learns a rule from it
var matchCmd = &cobra.Command{
	Use:   "match <ledger-txn-id> <counterparty-txn-id>",
	Short: "Manually match a ledger transaction with a business-ledger entry",
	Long: `Match reconciles one user-confirmed pair. If the ledger narration carries a
recognizable transfer pattern (UPI/IMPS/NEFT/RTGS), a reconciliation rule is
learned so future runs can match this counterparty automatically.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, store, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		matched, err := engine.ManualMatch(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		if !matched {
			fmt.Fprintln(cmd.OutOrStdout(), "No match applied: one or both transactions do not exist.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Matched %s with %s.\n", args[0], args[1])
		return nil
	},
}

// Flags for the multimatch command
var (
	multiLedgerIDs       []string
	multiCounterpartyIDs []string
)

// multimatchCmd creates a many-to-many match group
var multimatchCmd = &cobra.Command{
	Use:   "multimatch",
	Short: "Match N ledger transactions against M business-ledger entries",
	Long: `Multimatch reconciles several ledger transactions against several business
ledger entries as one group, for cases like a single bank settlement covering
multiple invoices.

Example:
  reconciler multimatch --db books.db --ledger txn-1,txn-2 --counterparty cp-9`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, store, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		groupID, err := engine.MultiMatch(context.Background(), multiLedgerIDs, multiCounterpartyIDs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created match group %s (%d ledger, %d counterparty).\n",
			groupID, len(multiLedgerIDs), len(multiCounterpartyIDs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(multimatchCmd)

	multimatchCmd.Flags().StringSliceVar(&multiLedgerIDs, "ledger", nil, "comma-separated ledger transaction ids (required)")
	multimatchCmd.Flags().StringSliceVar(&multiCounterpartyIDs, "counterparty", nil, "comma-separated counterparty transaction ids (required)")
	multimatchCmd.MarkFlagRequired("ledger")
	multimatchCmd.MarkFlagRequired("counterparty")
}
