// Package assemble orchestrates package runs: resolve the company, capture
// optional market and short-interest snapshots, classify and download its
// filings, merge and convert them, then write the manifest, README, and run
// ledger entry.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/diligence-engine/internal/classify"
	"github.com/pdiddy/diligence-engine/internal/edgar"
	"github.com/pdiddy/diligence-engine/internal/ledger"
	"github.com/pdiddy/diligence-engine/internal/merge"
	"github.com/pdiddy/diligence-engine/internal/render"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

const (
	filingsDir = "filings"

	defaultOutputDir       = "packages"
	defaultDocumentTimeout = 5 * time.Minute
	defaultWorkers         = 4
)

// Request describes one package assembly.
type Request struct {
	// Ticker is the symbol to assemble a package for.
	Ticker string `yaml:"ticker" json:"ticker"`

	// Forms keeps only filings whose form label contains one of these;
	// empty keeps every form.
	Forms []string `yaml:"forms,omitempty" json:"forms,omitempty"`

	// Start and End bound the filing date range inclusively. A zero date
	// leaves that side of the range open.
	Start types.Date `yaml:"start,omitempty" json:"start,omitempty"`
	End   types.Date `yaml:"end,omitempty" json:"end,omitempty"`

	// OutputDir overrides the configured directory package runs are
	// written under.
	OutputDir string `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`

	// IncludeMarket captures a market snapshot alongside the filings.
	IncludeMarket bool `yaml:"include_market" json:"include_market"`

	// IncludeShort captures a short-interest record alongside the filings.
	IncludeShort bool `yaml:"include_short_interest" json:"include_short_interest"`

	// Merge consolidates each category's documents into one artifact.
	Merge bool `yaml:"merge" json:"merge"`

	// Convert renders HTML documents to PDF.
	Convert bool `yaml:"convert" json:"convert"`

	// KeepOriginals retains HTML sources after successful conversion.
	KeepOriginals bool `yaml:"keep_originals" json:"keep_originals"`
}

// ProgressFunc receives overall progress in [0,1] and a status message.
type ProgressFunc func(fraction float64, message string)

// Registry resolves companies and serves their filings.
type Registry interface {
	ResolveTicker(ctx context.Context, ticker string) (string, error)
	FetchFilingHistory(ctx context.Context, cik string) (*edgar.FilingHistory, error)
	DownloadDocument(ctx context.Context, url, destPath string) error
}

// MarketData supplies market snapshots.
type MarketData interface {
	FetchSnapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error)
}

// ShortInterest supplies short-interest records.
type ShortInterest interface {
	FetchShortInterest(ctx context.Context, symbol string) (*types.ShortInterestRecord, error)
}

// Deps are the assembler's collaborators. Registry is required; the rest
// are optional and a nil field disables the corresponding step.
type Deps struct {
	Registry      Registry
	Market        MarketData
	ShortInterest ShortInterest
	Engine        render.Engine
	Ledger        *ledger.Store
}

// Assembler runs the package pipeline. Construct with New.
type Assembler struct {
	deps     Deps
	cfg      types.AssemblyConfig
	out      io.Writer
	progress ProgressFunc
}

// New returns an assembler writing per-item status lines to out (io.Discard
// when nil) and reporting overall progress through progress (may be nil).
func New(deps Deps, cfg types.AssemblyConfig, out io.Writer, progress ProgressFunc) *Assembler {
	if out == nil {
		out = io.Discard
	}
	return &Assembler{deps: deps, cfg: cfg, out: out, progress: progress}
}

// Result summarizes a completed run. Partial success is success: failed
// documents are counted in Skipped, never surfaced as an error.
type Result struct {
	Company         types.CompanyInfo
	OutputDir       string
	ManifestPath    string
	Downloaded      int
	Skipped         int
	TotalCandidates int
	Merged          bool
	Categories      []ledger.CategoryCount
}

// Stage indices into the progress table.
const (
	stageResolve = iota
	stageMarket
	stageShort
	stageFilings
	stageDownload
	stageFinalize
)

// stageWeights drives overall progress: the fraction reported for
// (stage, frac) is the sum of every earlier stage's weight plus frac times
// the stage's own weight. Weights sum to 1.
var stageWeights = []struct {
	name   string
	weight float64
}{
	{"resolve", 0.05},
	{"market data", 0.10},
	{"short interest", 0.10},
	{"filing history", 0.10},
	{"documents", 0.55},
	{"finalize", 0.10},
}

func (a *Assembler) report(stage int, frac float64, msg string) {
	if a.progress == nil {
		return
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	total := 0.0
	for i := 0; i < stage; i++ {
		total += stageWeights[i].weight
	}
	a.progress(total+frac*stageWeights[stage].weight, "["+stageWeights[stage].name+"] "+msg)
}

// Run executes the pipeline for req. Identifier resolution and filing
// history are fatal when they fail; market data, short interest, and
// individual documents degrade to warnings on a.out.
func (a *Assembler) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	sym := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if sym == "" {
		return nil, errors.New("ticker is required")
	}

	a.report(stageResolve, 0, "resolving "+sym)
	cik, err := a.deps.Registry.ResolveTicker(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("resolving ticker %s: %w", sym, err)
	}
	if cik == "" {
		return nil, fmt.Errorf("ticker %s not found in registry", sym)
	}
	a.report(stageResolve, 1, "resolved "+sym)

	var snap *types.MarketSnapshot
	if req.IncludeMarket && a.deps.Market != nil {
		a.report(stageMarket, 0, "fetching market data")
		snap, err = a.deps.Market.FetchSnapshot(ctx, sym)
		if err != nil {
			fmt.Fprintf(a.out, "warning: market data unavailable: %v\n", err)
			snap = nil
		}
	}
	a.report(stageMarket, 1, "market data done")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var short *types.ShortInterestRecord
	if req.IncludeShort && a.deps.ShortInterest != nil {
		a.report(stageShort, 0, "fetching short interest")
		short, err = a.deps.ShortInterest.FetchShortInterest(ctx, sym)
		if err != nil {
			fmt.Fprintf(a.out, "warning: short interest unavailable: %v\n", err)
			short = nil
		} else if short == nil {
			fmt.Fprintf(a.out, "warning: no short interest data for %s\n", sym)
		}
	}
	a.report(stageShort, 1, "short interest done")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.report(stageFilings, 0, "fetching filing history")
	hist, err := a.deps.Registry.FetchFilingHistory(ctx, cik)
	if err != nil {
		return nil, fmt.Errorf("fetching filing history: %w", err)
	}
	filtered := edgar.FilterFilings(hist.Filings, req.Forms, req.Start, req.End)
	cats := classify.Classify(filtered, types.DateOf(started))
	byCat := cats.ByCategory()
	a.report(stageFilings, 1, fmt.Sprintf("%d filings selected", cats.Total()))

	company := types.CompanyInfo{Ticker: sym, Name: hist.CompanyName, CIK: cik}

	pkgDir, err := a.preparePackageDir(req, sym, started)
	if err != nil {
		return nil, err
	}

	if req.Convert && a.deps.Engine == nil {
		fmt.Fprintln(a.out, "warning: conversion requested but no rendering tool is available")
	}

	t := &tally{total: cats.Total()}
	if t.total == 0 {
		a.report(stageDownload, 1, "no documents to download")
	}
	refsByCat := make(map[types.FilingCategory][]docRef, len(types.Categories))
	anyMerged := false
	for _, cat := range types.Categories {
		filings := byCat[cat]
		if len(filings) == 0 {
			continue
		}
		refs, err := a.downloadCategory(ctx, cik, pkgDir, cat, filings, t)
		if err != nil {
			return nil, fmt.Errorf("downloading %s filings: %w", cat.Dir(), err)
		}
		refs, merged := a.finishCategory(pkgDir, cat, req, sym, refs)
		anyMerged = anyMerged || merged
		refsByCat[cat] = refs
	}

	a.report(stageFinalize, 0, "writing manifest")
	finished := time.Now()
	manifest := buildManifest(company, snap, short, refsByCat, finished)
	manifest.Downloaded = t.downloaded
	manifest.Skipped = t.skipped

	manifestPath := filepath.Join(pkgDir, "manifest.json")
	if err := writeJSONFile(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	if snap != nil {
		if err := writeJSONFile(filepath.Join(pkgDir, "market_data.json"), snap); err != nil {
			fmt.Fprintf(a.out, "warning: writing market data: %v\n", err)
		}
	}
	if short != nil {
		if err := writeJSONFile(filepath.Join(pkgDir, "short_interest.json"), short); err != nil {
			fmt.Fprintf(a.out, "warning: writing short interest: %v\n", err)
		}
	}
	if err := WriteReadme(filepath.Join(pkgDir, "README.txt"), manifest); err != nil {
		return nil, fmt.Errorf("writing README: %w", err)
	}

	counts := categoryCounts(refsByCat)
	if a.deps.Ledger != nil {
		run := ledger.Run{
			Ticker:          sym,
			CIK:             cik,
			CompanyName:     hist.CompanyName,
			OutputDir:       pkgDir,
			Downloaded:      t.downloaded,
			Skipped:         t.skipped,
			TotalCandidates: t.total,
			Merged:          anyMerged,
			StartedAt:       started,
			FinishedAt:      finished,
			Categories:      counts,
		}
		if _, err := a.deps.Ledger.RecordRun(ctx, run); err != nil {
			fmt.Fprintf(a.out, "warning: recording run: %v\n", err)
		}
	}
	a.report(stageFinalize, 1, "package complete")

	fmt.Fprintf(a.out, "\nPackage summary: %d downloaded, %d skipped (total candidates: %d)\n",
		t.downloaded, t.skipped, t.total)
	fmt.Fprintf(a.out, "Package written to %s\n", pkgDir)

	return &Result{
		Company:         company,
		OutputDir:       pkgDir,
		ManifestPath:    manifestPath,
		Downloaded:      t.downloaded,
		Skipped:         t.skipped,
		TotalCandidates: t.total,
		Merged:          anyMerged,
		Categories:      counts,
	}, nil
}

// preparePackageDir creates the run directory and the fixed category
// subdirectories under filings/.
func (a *Assembler) preparePackageDir(req Request, sym string, started time.Time) (string, error) {
	base := req.OutputDir
	if base == "" {
		base = a.cfg.OutputDir
	}
	if base == "" {
		base = defaultOutputDir
	}
	pkgDir := filepath.Join(base, strings.ToLower(sym)+"_"+types.DateOf(started).Compact())
	for _, cat := range types.Categories {
		if err := os.MkdirAll(filepath.Join(pkgDir, filingsDir, cat.Dir()), 0o755); err != nil {
			return "", fmt.Errorf("creating package directory: %w", err)
		}
	}
	return pkgDir, nil
}

// docRef ties a classified filing to its file inside the package, relative
// to the package root. rel is empty when the document was skipped or failed.
type docRef struct {
	filing types.Filing
	rel    string
}

// tally counts document outcomes across categories. Guarded by mu because
// downloads within a category run in parallel.
type tally struct {
	mu         sync.Mutex
	downloaded int
	skipped    int
	done       int
	total      int
}

// noteDoc records one finished document and emits its status line plus a
// progress update.
func (a *Assembler) noteDoc(t *tally, ok bool, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.downloaded++
	} else {
		t.skipped++
	}
	t.done++
	fmt.Fprintln(a.out, msg)
	if t.total > 0 {
		a.report(stageDownload, float64(t.done)/float64(t.total),
			fmt.Sprintf("%d/%d documents", t.done, t.total))
	}
}

// downloadCategory fetches each filing's primary document into the
// category's directory, at most DownloadWorkers at a time. Individual
// failures are counted and logged; only cancellation aborts.
func (a *Assembler) downloadCategory(ctx context.Context, cik, pkgDir string, cat types.FilingCategory, filings []types.Filing, t *tally) ([]docRef, error) {
	dir := filepath.Join(pkgDir, filingsDir, cat.Dir())
	refs := make([]docRef, len(filings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for i, f := range filings {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			refs[i] = docRef{filing: f}
			if !downloadable(f.PrimaryDocument) {
				a.noteDoc(t, false, fmt.Sprintf("skipped: %s (unsupported document type)", f.PrimaryDocument))
				return nil
			}

			name := f.FilingDate.Compact() + "_" + path.Base(f.PrimaryDocument)
			url := edgar.BuildDocumentURL(cik, f.AccessionNumber, f.PrimaryDocument)
			dctx, cancel := context.WithTimeout(gctx, a.documentTimeout())
			err := a.deps.Registry.DownloadDocument(dctx, url, filepath.Join(dir, name))
			cancel()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.noteDoc(t, false, fmt.Sprintf("failed:  %s (%v)", name, err))
				return nil
			}
			refs[i].rel = path.Join(filingsDir, cat.Dir(), name)
			a.noteDoc(t, true, fmt.Sprintf("downloaded: %s", refs[i].rel))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// finishCategory merges and converts a category's downloaded documents per
// the request, rewriting each ref to its final file. Merge and conversion
// failures degrade to warnings. Reports whether a merged artifact was
// produced.
func (a *Assembler) finishCategory(pkgDir string, cat types.FilingCategory, req Request, sym string, refs []docRef) ([]docRef, bool) {
	dir := filepath.Join(pkgDir, filingsDir, cat.Dir())
	convert := req.Convert && a.deps.Engine != nil

	if req.Merge {
		var downloaded []types.Filing
		for _, r := range refs {
			if r.rel != "" {
				downloaded = append(downloaded, r.filing)
			}
		}
		outPath, err := merge.MergeCategory(dir, downloaded, cat, sym)
		if err != nil {
			fmt.Fprintf(a.out, "warning: merging %s filings: %v\n", cat.Dir(), err)
		} else if outPath != "" {
			if convert {
				outPath = a.convertDocument(outPath, req.KeepOriginals)
			}
			rel := path.Join(filingsDir, cat.Dir(), filepath.Base(outPath))
			for i := range refs {
				if refs[i].rel != "" {
					refs[i].rel = rel
				}
			}
			return refs, true
		}
	}

	if convert {
		for i, r := range refs {
			if r.rel == "" || !isHTML(r.rel) {
				continue
			}
			final := a.convertDocument(filepath.Join(pkgDir, filepath.FromSlash(r.rel)), req.KeepOriginals)
			refs[i].rel = path.Join(filingsDir, cat.Dir(), filepath.Base(final))
		}
	}
	return refs, false
}

// convertDocument renders src to a sibling .pdf, removing src on success
// unless retention was requested. Returns the rendered path, or src when
// conversion failed.
func (a *Assembler) convertDocument(src string, keep bool) string {
	dest := strings.TrimSuffix(src, filepath.Ext(src)) + ".pdf"
	if err := a.deps.Engine.Render(src, dest); err != nil {
		fmt.Fprintf(a.out, "warning: converting %s: %v\n", filepath.Base(src), err)
		return src
	}
	if !keep {
		if err := os.Remove(src); err != nil {
			fmt.Fprintf(a.out, "warning: removing %s: %v\n", filepath.Base(src), err)
		}
	}
	return dest
}

func (a *Assembler) workers() int {
	if a.cfg.DownloadWorkers > 0 {
		return a.cfg.DownloadWorkers
	}
	return defaultWorkers
}

func (a *Assembler) documentTimeout() time.Duration {
	if a.cfg.DocumentTimeout > 0 {
		return a.cfg.DocumentTimeout
	}
	return defaultDocumentTimeout
}

// categoryCounts tallies downloads per category in fixed category order,
// omitting categories with no candidates.
func categoryCounts(refsByCat map[types.FilingCategory][]docRef) []ledger.CategoryCount {
	var counts []ledger.CategoryCount
	for _, cat := range types.Categories {
		refs := refsByCat[cat]
		if len(refs) == 0 {
			continue
		}
		cc := ledger.CategoryCount{Category: cat, Candidates: len(refs)}
		for _, r := range refs {
			if r.rel != "" {
				cc.Downloaded++
			}
		}
		counts = append(counts, cc)
	}
	return counts
}

// downloadable reports whether the primary document is a format the
// package carries. The registry also hosts XBRL, XML, and image exhibits;
// those are skipped.
func downloadable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".htm", ".html", ".txt":
		return true
	}
	return false
}

func isHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".htm", ".html":
		return true
	}
	return false
}
