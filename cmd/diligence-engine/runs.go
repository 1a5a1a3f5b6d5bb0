// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/diligence-engine/internal/ledger"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the ledger of past package runs",
	Long: `Runs queries the SQLite ledger that fetch records every package run in.
Use list to see recent runs and show to inspect one run in full, including
its per-category download counts.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded package runs, most recent first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, err := ledger.Open(pipelineConfig().Ledger)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	ticker, _ := cmd.Flags().GetString("ticker")

	var runs []ledger.Run
	if ticker != "" {
		runs, err = store.RunsForTicker(cmd.Context(), strings.ToUpper(strings.TrimSpace(ticker)), limit)
	} else {
		runs, err = store.ListRuns(cmd.Context(), limit)
	}
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-5s  %-8s  %-28s  %-17s  %-10s  %s\n",
		"ID", "Ticker", "Company", "Finished", "Downloaded", "Output")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, r := range runs {
		company := r.CompanyName
		if len(company) > 28 {
			company = company[:25] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-5d  %-8s  %-28s  %-17s  %-10s  %s\n",
			r.ID, r.Ticker, company,
			r.FinishedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%d/%d", r.Downloaded, r.TotalCandidates),
			r.OutputDir)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one recorded run in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	store, err := ledger.Open(pipelineConfig().Ledger)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Run(cmd.Context(), id)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("rendering run: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func init() {
	runsListCmd.Flags().String("ticker", "", "only show runs for this ticker")
	runsListCmd.Flags().Int("limit", 20, "maximum runs to list")
	runsListCmd.Flags().Bool("json", false, "output as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
