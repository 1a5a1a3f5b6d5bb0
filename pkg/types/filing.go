// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the diligence-engine
// pipeline: filings and their categories, market snapshots, short-interest
// records, the package manifest, and per-stage configuration.
package types

import (
	"fmt"
	"time"

	"go.yaml.in/yaml/v3"
)

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component, normalized to UTC
// midnight. It marshals to and from ISO "YYYY-MM-DD" in JSON and YAML.
// Filing and retention comparisons operate on Dates so that two events on
// the same calendar day always compare equal regardless of source timestamps.
type Date struct {
	time.Time
}

// NewDate constructs a Date from year, month, and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses an ISO "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{t}, nil
}

// String returns the date in ISO "YYYY-MM-DD" form.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// Compact returns the date with separators stripped ("YYYYMMDD").
func (d Date) Compact() string {
	return d.Format("20060102")
}

// AddDays returns the date n calendar days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

// AddMonths returns the date n calendar months later (earlier for negative n).
func (d Date) AddMonths(n int) Date {
	return Date{d.AddDate(0, n, 0)}
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes "YYYY-MM-DD", the empty string, or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML encodes the date as "YYYY-MM-DD", or empty when zero.
func (d Date) MarshalYAML() (any, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.String(), nil
}

// UnmarshalYAML decodes "YYYY-MM-DD" or the empty string.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Filing is one regulatory filing from a company's registry history.
// Immutable once constructed; identity is (AccessionNumber, PrimaryDocument).
type Filing struct {
	// Form is the filing's form label (e.g. "10-K", "8-K/A", "424B5").
	Form string `json:"form" yaml:"form"`

	// FilingDate is the calendar date the filing was submitted.
	FilingDate Date `json:"filing_date" yaml:"filing_date"`

	// AccessionNumber uniquely identifies the submission
	// (e.g. "0000320193-23-000106").
	AccessionNumber string `json:"accession_number" yaml:"accession_number"`

	// PrimaryDocument is the filename of the submission's primary document.
	PrimaryDocument string `json:"primary_document" yaml:"primary_document"`

	// ReportDate is the period the filing reports on. Zero when the
	// registry omits it.
	ReportDate Date `json:"report_date,omitempty" yaml:"report_date,omitempty"`
}

// Key returns the filing's identity string, unique per submission document.
func (f Filing) Key() string {
	return f.AccessionNumber + "/" + f.PrimaryDocument
}

// FilingCategory labels one semantic bucket of the classification scheme.
type FilingCategory string

const (
	CategoryFinancials       FilingCategory = "financials"
	CategoryMaterialEvents   FilingCategory = "material_events"
	CategoryCapitalStructure FilingCategory = "capital_structure"
	CategoryOwnership        FilingCategory = "ownership"
	CategoryGovernance       FilingCategory = "governance"
)

// Categories lists all filing categories in classification priority order.
// A filing matching several category predicates lands in the first.
var Categories = []FilingCategory{
	CategoryFinancials,
	CategoryMaterialEvents,
	CategoryCapitalStructure,
	CategoryOwnership,
	CategoryGovernance,
}

// Dir returns the category's subdirectory name under filings/ in the
// output package.
func (c FilingCategory) Dir() string {
	switch c {
	case CategoryFinancials:
		return "financials"
	case CategoryMaterialEvents:
		return "events"
	case CategoryCapitalStructure:
		return "capital"
	case CategoryOwnership:
		return "ownership"
	case CategoryGovernance:
		return "governance"
	default:
		return string(c)
	}
}

// Label returns the category's human-readable name, used in merged-document
// banners and the package README.
func (c FilingCategory) Label() string {
	switch c {
	case CategoryFinancials:
		return "Financial Reports"
	case CategoryMaterialEvents:
		return "Material Events"
	case CategoryCapitalStructure:
		return "Capital Structure"
	case CategoryOwnership:
		return "Ownership"
	case CategoryGovernance:
		return "Governance"
	default:
		return string(c)
	}
}

// CategorizedFilings is the classifier's output: each category's filings
// after window filtering, descending date sort, and truncation. The single
// "latest" slots hold at most one filing each.
type CategorizedFilings struct {
	// LatestTenK is the most recent annual report, if any.
	LatestTenK *Filing `json:"latest_ten_k,omitempty" yaml:"latest_ten_k,omitempty"`

	// RecentTenQs holds the most recent quarterly reports (capped).
	RecentTenQs []Filing `json:"recent_ten_qs,omitempty" yaml:"recent_ten_qs,omitempty"`

	// MaterialEvents holds recent current-event reports (capped, windowed).
	MaterialEvents []Filing `json:"material_events,omitempty" yaml:"material_events,omitempty"`

	// CapitalStructure holds registration and prospectus filings
	// (capped, windowed).
	CapitalStructure []Filing `json:"capital_structure,omitempty" yaml:"capital_structure,omitempty"`

	// InsiderTransactions holds insider ownership forms (capped, windowed).
	InsiderTransactions []Filing `json:"insider_transactions,omitempty" yaml:"insider_transactions,omitempty"`

	// MajorHolders holds beneficial-ownership filings and their amendments
	// (capped, no window).
	MajorHolders []Filing `json:"major_holders,omitempty" yaml:"major_holders,omitempty"`

	// LatestProxy is the most recent proxy statement, if any.
	LatestProxy *Filing `json:"latest_proxy,omitempty" yaml:"latest_proxy,omitempty"`
}

// ByCategory flattens the categorized slots into per-category filing lists,
// preserving each list's descending date order. Single slots contribute
// one-element lists; empty categories map to nil.
func (c CategorizedFilings) ByCategory() map[FilingCategory][]Filing {
	m := make(map[FilingCategory][]Filing, len(Categories))
	if c.LatestTenK != nil {
		m[CategoryFinancials] = append(m[CategoryFinancials], *c.LatestTenK)
	}
	m[CategoryFinancials] = append(m[CategoryFinancials], c.RecentTenQs...)
	m[CategoryMaterialEvents] = append(m[CategoryMaterialEvents], c.MaterialEvents...)
	m[CategoryCapitalStructure] = append(m[CategoryCapitalStructure], c.CapitalStructure...)
	m[CategoryOwnership] = append(m[CategoryOwnership], c.InsiderTransactions...)
	m[CategoryOwnership] = append(m[CategoryOwnership], c.MajorHolders...)
	if c.LatestProxy != nil {
		m[CategoryGovernance] = append(m[CategoryGovernance], *c.LatestProxy)
	}
	return m
}

// Total returns the number of filings across all categories.
func (c CategorizedFilings) Total() int {
	n := 0
	for _, filings := range c.ByCategory() {
		n += len(filings)
	}
	return n
}
