package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/diligence-engine/internal/shortint"
)

var shortInterestCmd = &cobra.Command{
	Use:   "shortinterest [symbol]",
	Short: "Fetch the latest short interest record for a symbol",
	Long: `Shortinterest fetches the most recent short-interest observation for a
symbol. With OAuth credentials configured (short_interest.client_id and
short_interest.client_secret) the authenticated API is used; without them
the client falls back to the provider's delayed flat-file feed.`,
	Args: cobra.ExactArgs(1),
	RunE: runShortInterest,
}

func init() {
	shortInterestCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(shortInterestCmd)
}

func runShortInterest(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))

	client := shortint.NewClient(pipelineConfig().ShortInterest)
	rec, err := client.FetchShortInterest(cmd.Context(), symbol)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Printf("No short interest data found for %s.\n", symbol)
		return nil
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Printf("%s short interest\n\n", rec.Symbol)
	fmt.Printf("  Shares short        %d\n", rec.ShortInterestShares)
	if rec.PercentOfFloat > 0 {
		fmt.Printf("  Percent of float    %.1f%%\n", rec.PercentOfFloat)
	}
	if rec.DaysToCover > 0 {
		fmt.Printf("  Days to cover       %.1f\n", rec.DaysToCover)
	}
	if rec.ChangePercent != 0 {
		fmt.Printf("  Change from prior   %+.1f%%\n", rec.ChangePercent)
	}
	if !rec.RecordDate.IsZero() {
		fmt.Printf("  Record date         %s (settles %s)\n", rec.RecordDate, rec.SettlementDate)
	}
	return nil
}
