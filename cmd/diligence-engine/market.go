package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/diligence-engine/internal/market"
)

var marketCmd = &cobra.Command{
	Use:   "market [symbol]",
	Short: "Fetch a market data snapshot for a symbol",
	Long: `Market fetches the current quote, moving averages, and 52-week range for
a symbol from the market data provider. An API key is required; set it via
the market_data.api_key config key, the DILIGENCE_ENGINE_MARKET_DATA_API_KEY
environment variable, or a .secrets/market-data-api-key file.`,
	Args: cobra.ExactArgs(1),
	RunE: runMarket,
}

func init() {
	marketCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(marketCmd)
}

func runMarket(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))

	cfg := pipelineConfig()
	if cfg.MarketData.APIKey == "" {
		return fmt.Errorf("no market data API key configured: set market_data.api_key in the config file, DILIGENCE_ENGINE_MARKET_DATA_API_KEY in the environment, or .secrets/market-data-api-key")
	}

	client := market.NewClient(cfg.MarketData)
	snap, err := client.FetchSnapshot(cmd.Context(), symbol)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Printf("%s as of %s\n\n", snap.Symbol, snap.AsOf.Format("2006-01-02 15:04 MST"))
	fmt.Printf("  Current price       $%.2f\n", snap.CurrentPrice)
	fmt.Printf("  Previous close      $%.2f\n", snap.PreviousClose)
	fmt.Printf("  20-day avg volume   %d\n", snap.AverageVolume20d)
	fmt.Printf("  20-day moving avg   $%.2f\n", snap.MovingAverage20)
	fmt.Printf("  50-day moving avg   $%.2f\n", snap.MovingAverage50)
	fmt.Printf("  200-day moving avg  $%.2f\n", snap.MovingAverage200)
	if snap.High52w > 0 {
		fmt.Printf("  52-week range       $%.2f - $%.2f\n", snap.Low52w, snap.High52w)
	}
	return nil
}
