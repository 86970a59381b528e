package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// unmatchCmd reverses the reconciliation of one ledger transaction
var unmatchCmd = &cobra.Command{
	Use:   "unmatch <ledger-txn-id>",
	Short: "Reverse the reconciliation of a ledger transaction",
	Long: `Unmatch reverts a ledger transaction to the unreconciled state. A member of
a match group dissolves the whole group; otherwise the counterparty side is
located through a chain of recovery strategies that tolerates legacy rows with
incomplete back-references.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, store, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		done, err := engine.Unmatch(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !done {
			fmt.Fprintf(cmd.OutOrStdout(), "Transaction %s is not reconciled.\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unmatched %s.\n", args[0])
		return nil
	},
}

// unmatchGroupCmd dissolves a whole match group
var unmatchGroupCmd = &cobra.Command{
	Use:   "unmatch-group <group-id>",
	Short: "Dissolve a match group, unreconciling every member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, store, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		done, err := engine.UnmatchGroup(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !done {
			fmt.Fprintf(cmd.OutOrStdout(), "No match group %s.\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dissolved match group %s.\n", args[0])
		return nil
	},
}

// showGroupCmd prints the membership of a match group
var showGroupCmd = &cobra.Command{
	Use:   "show-group <group-id>",
	Short: "Show the members of a match group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, store, err := openEngine()
		if err != nil {
			return err
		}
		defer store.Close()

		group, err := engine.GetMatchGroup(context.Background(), args[0])
		if err != nil {
			return err
		}
		if group == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No match group %s.\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Group %s\n  ledger:       %s\n  counterparty: %s\n",
			group.GroupID,
			strings.Join(group.LedgerTransactionIDs, ", "),
			strings.Join(group.CounterpartyTransactionIDs, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unmatchCmd)
	rootCmd.AddCommand(unmatchGroupCmd)
	rootCmd.AddCommand(showGroupCmd)
}
