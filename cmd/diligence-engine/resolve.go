package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/diligence-engine/internal/edgar"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [ticker]",
	Short: "Resolve a ticker to its registry identifier",
	Long: `Resolve looks up a ticker symbol in the filings registry and prints the
company's registry identifier (CIK), registered name, and how many filings
are on record.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ticker := strings.ToUpper(strings.TrimSpace(args[0]))

	client := edgar.NewClient(pipelineConfig().Registry)
	cik, err := client.ResolveTicker(cmd.Context(), ticker)
	if err != nil {
		return err
	}
	if cik == "" {
		return fmt.Errorf("ticker %s not found in registry", ticker)
	}

	history, err := client.FetchFilingHistory(cmd.Context(), cik)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Ticker      string `json:"ticker"`
			CIK         string `json:"cik"`
			CompanyName string `json:"company_name"`
			Filings     int    `json:"filings_on_record"`
		}{ticker, cik, history.CompanyName, len(history.Filings)})
	}

	fmt.Printf("Ticker:   %s\n", ticker)
	fmt.Printf("CIK:      %s\n", cik)
	fmt.Printf("Company:  %s\n", history.CompanyName)
	fmt.Printf("Filings:  %d on record\n", len(history.Filings))
	return nil
}
