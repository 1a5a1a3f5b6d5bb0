// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// CompanyInfo identifies the company a package was generated for.
type CompanyInfo struct {
	// Ticker is the requested symbol.
	Ticker string `json:"ticker" yaml:"ticker"`

	// Name is the registry's company name.
	Name string `json:"name" yaml:"name"`

	// CIK is the 10-digit zero-padded registry identifier.
	CIK string `json:"cik" yaml:"cik"`
}

// DataSource records provenance for one external data source consulted
// during assembly.
type DataSource struct {
	// Name identifies the source (e.g. "filings registry").
	Name string `json:"name" yaml:"name"`

	// LastUpdated is when the source was queried.
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`

	// Delayed reports whether the source publishes on a delay.
	Delayed bool `json:"delayed" yaml:"delayed"`

	// DelayDays is the typical publication delay in days, 0 when realtime.
	DelayDays int `json:"delay_days" yaml:"delay_days"`
}

// KeyMetrics holds indicators derived from a MarketSnapshot. All values are
// percentages; 0 when the underlying inputs are missing.
type KeyMetrics struct {
	// PercentOffHigh52w is how far the current price sits below the
	// 52-week high (positive when below).
	PercentOffHigh52w float64 `json:"percent_off_high_52w" yaml:"percent_off_high_52w"`

	// PercentOffLow52w is how far the current price sits above the
	// 52-week low (positive when above).
	PercentOffLow52w float64 `json:"percent_off_low_52w" yaml:"percent_off_low_52w"`

	// PriceVsMA50 is the current price relative to the 50-day moving
	// average (positive when above).
	PriceVsMA50 float64 `json:"price_vs_ma_50" yaml:"price_vs_ma_50"`

	// PriceVsMA200 is the current price relative to the 200-day moving
	// average (positive when above).
	PriceVsMA200 float64 `json:"price_vs_ma_200" yaml:"price_vs_ma_200"`
}

// DataSnapshot groups the optional market and short-interest data captured
// alongside the filings.
type DataSnapshot struct {
	// Market is the market snapshot, nil when not requested or unavailable.
	Market *MarketSnapshot `json:"market,omitempty" yaml:"market,omitempty"`

	// ShortInterest is the short-interest record, nil when not requested
	// or not found.
	ShortInterest *ShortInterestRecord `json:"short_interest,omitempty" yaml:"short_interest,omitempty"`

	// KeyMetrics are derived indicators, nil without market data.
	KeyMetrics *KeyMetrics `json:"key_metrics,omitempty" yaml:"key_metrics,omitempty"`
}

// FilingReference is one downloaded filing in the manifest.
type FilingReference struct {
	// Form is the filing's form label.
	Form string `json:"form" yaml:"form"`

	// FilingDate is the filing's calendar date.
	FilingDate Date `json:"filing_date" yaml:"filing_date"`

	// AccessionNumber identifies the submission.
	AccessionNumber string `json:"accession_number" yaml:"accession_number"`

	// File is the document path relative to the package root. Empty when
	// the download was skipped or failed.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// FilingsManifest lists the packaged filings per category.
type FilingsManifest map[FilingCategory][]FilingReference

// PackageManifest is the aggregate description of one generated package.
// It is serialized once at the end of assembly and never mutated after.
type PackageManifest struct {
	// Company identifies the subject company.
	Company CompanyInfo `json:"company" yaml:"company"`

	// Data holds the optional market and short-interest snapshot.
	Data DataSnapshot `json:"data" yaml:"data"`

	// Filings is the per-category breakdown of packaged documents.
	Filings FilingsManifest `json:"filings" yaml:"filings"`

	// Sources records provenance for each consulted data source.
	Sources []DataSource `json:"sources" yaml:"sources"`

	// Downloaded counts documents actually written into the package.
	Downloaded int `json:"downloaded" yaml:"downloaded"`

	// Skipped counts candidate documents that failed or were filtered out.
	Skipped int `json:"skipped" yaml:"skipped"`

	// GeneratedAt is when assembly finished.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}
