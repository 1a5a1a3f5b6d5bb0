// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package edgar implements the filings registry client: ticker resolution,
// filing history retrieval, archive URL construction, and document download.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/diligence-engine/internal/httputil"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Base URLs for the filings registry. Declared as vars so tests can
// substitute httptest servers.
var (
	tickerIndexURL  = "https://www.sec.gov/files/company_tickers.json"
	submissionsBase = "https://data.sec.gov/submissions/"
	archivesBase    = "https://www.sec.gov/Archives/edgar/data/"
)

const (
	defaultRateLimit  = 10
	defaultRateWindow = time.Second
	defaultTimeout    = 30 * time.Second
	defaultUserAgent  = "diligence-engine/0.1"
)

// Client talks to the filings registry. All requests pass through the
// client's rate limiter and the shared retry layer, and carry an
// identifying User-Agent per the registry's access policy.
type Client struct {
	httpClient *http.Client
	limiter    *httputil.Limiter
	userAgent  string
}

// NewClient constructs a registry client. Zero config fields fall back to
// defaults (10 requests/second, 30s timeout).
func NewClient(cfg types.RegistryConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RateLimit
	if limit == 0 {
		limit = defaultRateLimit
	}
	window := cfg.RateWindow
	if window == 0 {
		window = defaultRateWindow
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	if cfg.ContactEmail != "" {
		ua += " (" + cfg.ContactEmail + ")"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    httputil.NewLimiter(limit, window),
		userAgent:  ua,
	}
}

// PadCIK zero-pads a numeric registry identifier to the canonical 10 digits.
func PadCIK(cik int) string {
	return fmt.Sprintf("%010d", cik)
}

// ResolveTicker looks the ticker up in the registry's bulk index and
// returns its 10-digit zero-padded identifier. The match is
// case-insensitive and exact; an unknown ticker returns the empty string
// with no error, so callers distinguish "no match" from transport failure.
func (c *Client) ResolveTicker(ctx context.Context, ticker string) (string, error) {
	resp, err := c.get(ctx, tickerIndexURL)
	if err != nil {
		return "", fmt.Errorf("fetching ticker index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticker index returned HTTP %d", resp.StatusCode)
	}

	var index map[string]tickerIndexEntry
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return "", fmt.Errorf("parsing ticker index: %w", err)
	}

	want := strings.ToUpper(strings.TrimSpace(ticker))
	for _, entry := range index {
		if strings.ToUpper(entry.Ticker) == want {
			return PadCIK(entry.CIK), nil
		}
	}
	return "", nil
}

// FilingHistory is a company's registry profile with its recent filings.
type FilingHistory struct {
	CIK         string
	CompanyName string
	Tickers     []string
	Filings     []types.Filing
}

// FetchFilingHistory fetches and decodes the registry's recent-filings
// document for a 10-digit identifier. The registry serializes filings as
// parallel arrays whose indices correspond; ragged arrays are tolerated
// by bounds-checking each field.
func (c *Client) FetchFilingHistory(ctx context.Context, cik string) (*FilingHistory, error) {
	resp, err := c.get(ctx, submissionsBase+"CIK"+cik+".json")
	if err != nil {
		return nil, fmt.Errorf("fetching filing history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("filing history for CIK %s returned HTTP %d", cik, resp.StatusCode)
	}

	var sub submissionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("parsing filing history: %w", err)
	}

	recent := sub.Filings.Recent
	filings := make([]types.Filing, 0, len(recent.AccessionNumbers))
	for i := range recent.AccessionNumbers {
		f := types.Filing{AccessionNumber: recent.AccessionNumbers[i]}
		if i < len(recent.Forms) {
			f.Form = recent.Forms[i]
		}
		if i < len(recent.FilingDates) {
			if d, parseErr := types.ParseDate(recent.FilingDates[i]); parseErr == nil {
				f.FilingDate = d
			}
		}
		if i < len(recent.PrimaryDocuments) {
			f.PrimaryDocument = recent.PrimaryDocuments[i]
		}
		if i < len(recent.ReportDates) && recent.ReportDates[i] != "" {
			if d, parseErr := types.ParseDate(recent.ReportDates[i]); parseErr == nil {
				f.ReportDate = d
			}
		}
		filings = append(filings, f)
	}

	return &FilingHistory{
		CIK:         cik,
		CompanyName: sub.Name,
		Tickers:     sub.Tickers,
		Filings:     filings,
	}, nil
}

// BuildDocumentURL returns the archive URL for a filing's primary
// document: {archive}/{10-digit-cik}/{accession-without-dashes}/{document}.
func BuildDocumentURL(cik, accessionNumber, primaryDocument string) string {
	return archivesBase + cik + "/" + strings.ReplaceAll(accessionNumber, "-", "") + "/" + primaryDocument
}

// DownloadDocument fetches url to destPath using a temporary file renamed
// into place on success, so a failed download never leaves a partial
// document behind.
func (c *Client) DownloadDocument(ctx context.Context, url, destPath string) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// get issues a rate-limited, retried GET with the client's User-Agent.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return httputil.DoWithRetry(ctx, c.httpClient, req, 0)
}

// Registry JSON structures.
type tickerIndexEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type submissionsResponse struct {
	CIK     json.Number `json:"cik"`
	Name    string      `json:"name"`
	Tickers []string    `json:"tickers"`
	Filings struct {
		Recent recentFilings `json:"recent"`
	} `json:"filings"`
}

type recentFilings struct {
	AccessionNumbers []string `json:"accessionNumber"`
	Forms            []string `json:"form"`
	FilingDates      []string `json:"filingDate"`
	ReportDates      []string `json:"reportDate"`
	PrimaryDocuments []string `json:"primaryDocument"`
}
