package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/textscore/pkg/textscore"
	"github.com/cognicore/textscore/pkg/textscore/report"
	"github.com/cognicore/textscore/pkg/textscore/store"
)

var errNoStore = errors.New("no run store configured: pass --db or set [database] path")

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	Long: `List runs recorded in the run store, newest first.

Examples:
  textscore runs --db runs.db
  textscore runs --db runs.db --limit 5`,
	RunE: runRuns,
}

var summaryCmd = &cobra.Command{
	Use:   "summary <run-id>",
	Short: "Print the summary of a stored run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummary,
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(summaryCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs (0 for all)")
}

func requireStore(cmd *cobra.Command) (store.Store, error) {
	st, err := openStore(commandContext(cmd))
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errNoStore
	}
	return st, nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	st, err := requireStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(commandContext(cmd), runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return runsTable(cmd.OutOrStdout(), runs)
}

func runSummary(cmd *cobra.Command, args []string) error {
	st, err := requireStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	sum, err := textscore.Summarize(commandContext(cmd), st, args[0])
	if err != nil {
		return err
	}
	return report.WriteSummary(cmd.OutOrStdout(), sum)
}
