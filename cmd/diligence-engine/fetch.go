package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/diligence-engine/internal/assemble"
	"github.com/pdiddy/diligence-engine/internal/edgar"
	"github.com/pdiddy/diligence-engine/internal/ledger"
	"github.com/pdiddy/diligence-engine/internal/market"
	"github.com/pdiddy/diligence-engine/internal/render"
	"github.com/pdiddy/diligence-engine/internal/shortint"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [ticker]",
	Short: "Assemble a complete filing package for a company",
	Long: `Fetch runs the full pipeline: it resolves the ticker against the filings
registry, retrieves market data and short interest when enabled, downloads
and classifies the company's filings, and writes a package directory with a
manifest and README.

A request file saved with --save-request can be replayed with --request;
flags passed alongside --request override the file's values.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringSlice("forms", nil, "form types to include (default: all recognized forms)")
	fetchCmd.Flags().String("from", "", "earliest filing date, YYYY-MM-DD (default: unbounded)")
	fetchCmd.Flags().String("to", "", "latest filing date, YYYY-MM-DD (default: unbounded)")
	fetchCmd.Flags().String("output-dir", "", "base directory for package output (default: packages)")
	fetchCmd.Flags().Bool("market", true, "include a market data snapshot")
	fetchCmd.Flags().Bool("short-interest", true, "include a short interest snapshot")
	fetchCmd.Flags().Bool("merge", false, "merge each category's documents into a single file")
	fetchCmd.Flags().Bool("convert", false, "convert HTML documents to PDF")
	fetchCmd.Flags().Bool("keep-originals", false, "keep HTML sources next to converted PDFs")
	fetchCmd.Flags().Int("workers", 0, "parallel downloads per category (default 4)")
	fetchCmd.Flags().Duration("timeout", 0, "per-document download timeout (default 5m)")
	fetchCmd.Flags().String("request", "", "load the run request from a file")
	fetchCmd.Flags().String("save-request", "", "save the run request to a file and exit without running")
	fetchCmd.Flags().Bool("no-ledger", false, "do not record this run in the ledger")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	req, err := fetchRequest(cmd, args)
	if err != nil {
		return err
	}

	if savePath, _ := cmd.Flags().GetString("save-request"); savePath != "" {
		if err := assemble.SaveRequest(savePath, req); err != nil {
			return err
		}
		fmt.Printf("Request saved to %s\n", savePath)
		return nil
	}

	cfg := pipelineConfig()
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Assembly.DownloadWorkers = workers
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.Assembly.DocumentTimeout = timeout
	}

	deps := assemble.Deps{
		Registry: edgar.NewClient(cfg.Registry),
	}

	if req.IncludeMarket {
		if cfg.MarketData.APIKey == "" {
			fmt.Fprintln(os.Stderr, "warning: no market data API key configured (set market_data.api_key); skipping market data")
			req.IncludeMarket = false
		} else {
			deps.Market = market.NewClient(cfg.MarketData)
		}
	}
	if req.IncludeShort {
		deps.ShortInterest = shortint.NewClient(cfg.ShortInterest)
	}
	if req.Convert {
		engine, err := render.DetectEngine(cfg.Render)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v; documents stay in their source format\n", err)
		} else {
			deps.Engine = engine
		}
	}
	if noLedger, _ := cmd.Flags().GetBool("no-ledger"); !noLedger {
		store, err := ledger.Open(cfg.Ledger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: opening run ledger: %v\n", err)
		} else {
			deps.Ledger = store
			defer store.Close()
		}
	}

	progress := func(frac float64, msg string) {
		fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", frac*100, msg)
	}

	asm := assemble.New(deps, cfg.Assembly, os.Stdout, progress)
	if _, err := asm.Run(cmd.Context(), req); err != nil {
		return err
	}
	return nil
}

// fetchRequest builds the run request from flags, optionally seeded from a
// saved request file. With a request file, only flags the user actually set
// override the file; the positional ticker always wins.
func fetchRequest(cmd *cobra.Command, args []string) (assemble.Request, error) {
	flags := cmd.Flags()

	var req assemble.Request
	reqPath, _ := flags.GetString("request")
	fromFile := reqPath != ""
	if fromFile {
		loaded, err := assemble.LoadRequest(reqPath)
		if err != nil {
			return assemble.Request{}, err
		}
		req = loaded
	}

	set := func(name string) bool {
		return !fromFile || flags.Changed(name)
	}

	if len(args) > 0 {
		req.Ticker = args[0]
	}
	if req.Ticker == "" {
		return assemble.Request{}, fmt.Errorf("ticker is required (pass it as an argument or in a request file)")
	}

	if set("forms") {
		req.Forms, _ = flags.GetStringSlice("forms")
	}
	if s, _ := flags.GetString("from"); set("from") && s != "" {
		d, err := types.ParseDate(s)
		if err != nil {
			return assemble.Request{}, fmt.Errorf("parsing --from: %w", err)
		}
		req.Start = d
	}
	if s, _ := flags.GetString("to"); set("to") && s != "" {
		d, err := types.ParseDate(s)
		if err != nil {
			return assemble.Request{}, fmt.Errorf("parsing --to: %w", err)
		}
		req.End = d
	}
	if set("output-dir") {
		req.OutputDir, _ = flags.GetString("output-dir")
	}
	if set("market") {
		req.IncludeMarket, _ = flags.GetBool("market")
	}
	if set("short-interest") {
		req.IncludeShort, _ = flags.GetBool("short-interest")
	}
	if set("merge") {
		req.Merge, _ = flags.GetBool("merge")
	}
	if set("convert") {
		req.Convert, _ = flags.GetBool("convert")
	}
	if set("keep-originals") {
		req.KeepOriginals, _ = flags.GetBool("keep-originals")
	}
	return req, nil
}
