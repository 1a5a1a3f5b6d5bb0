package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/diligence-engine/internal/classify"
	"github.com/pdiddy/diligence-engine/internal/edgar"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

var filingsCmd = &cobra.Command{
	Use:   "filings [ticker]",
	Short: "List a company's filings without downloading them",
	Long: `Filings retrieves a company's filing history from the registry and prints
the recognized filings, optionally restricted by form type and date range.

With --classified the filings are grouped the way a package run would group
them: the latest annual report, recent quarterly reports, material events,
capital structure filings, ownership filings, and the latest proxy.`,
	Args: cobra.ExactArgs(1),
	RunE: runFilings,
}

func init() {
	filingsCmd.Flags().StringSlice("forms", nil, "form types to include (default: all recognized forms)")
	filingsCmd.Flags().String("from", "", "earliest filing date, YYYY-MM-DD")
	filingsCmd.Flags().String("to", "", "latest filing date, YYYY-MM-DD")
	filingsCmd.Flags().Int("limit", 0, "maximum rows to print (0 = no limit)")
	filingsCmd.Flags().Bool("classified", false, "group filings into package categories")
	filingsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(filingsCmd)
}

func runFilings(cmd *cobra.Command, args []string) error {
	ticker := strings.ToUpper(strings.TrimSpace(args[0]))

	var start, end types.Date
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		d, err := types.ParseDate(s)
		if err != nil {
			return fmt.Errorf("parsing --from: %w", err)
		}
		start = d
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		d, err := types.ParseDate(s)
		if err != nil {
			return fmt.Errorf("parsing --to: %w", err)
		}
		end = d
	}
	forms, _ := cmd.Flags().GetStringSlice("forms")

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

	filtered := edgar.FilterFilings(history.Filings, forms, start, end)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if classified, _ := cmd.Flags().GetBool("classified"); classified {
		cats := classify.Classify(filtered, types.DateOf(time.Now()))
		return formatClassifiedOutput(history.CompanyName, cats, jsonOutput)
	}

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return formatFilingsOutput(history.CompanyName, filtered, jsonOutput)
}

func formatFilingsOutput(company string, filings []types.Filing, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(filings)
	}

	if len(filings) == 0 {
		fmt.Println("No matching filings found.")
		return nil
	}

	fmt.Printf("%s\n\n", company)
	fmt.Fprintf(os.Stdout, "%-10s  %-12s  %-22s  %s\n", "Form", "Filed", "Accession", "Document")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, f := range filings {
		fmt.Fprintf(os.Stdout, "%-10s  %-12s  %-22s  %s\n",
			f.Form, f.FilingDate, f.AccessionNumber, f.PrimaryDocument)
	}
	fmt.Fprintf(os.Stdout, "\n%d filings\n", len(filings))
	return nil
}

func formatClassifiedOutput(company string, cats types.CategorizedFilings, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cats)
	}

	if cats.Total() == 0 {
		fmt.Println("No matching filings found.")
		return nil
	}

	fmt.Printf("%s\n", company)
	byCategory := cats.ByCategory()
	populated := 0
	for _, cat := range types.Categories {
		filings := byCategory[cat]
		if len(filings) == 0 {
			continue
		}
		populated++
		fmt.Printf("\n%s\n", cat.Label())
		for _, f := range filings {
			fmt.Fprintf(os.Stdout, "  %-10s  %-12s  %s\n", f.Form, f.FilingDate, f.PrimaryDocument)
		}
	}
	fmt.Fprintf(os.Stdout, "\n%d filings in %d categories\n", cats.Total(), populated)
	return nil
}
