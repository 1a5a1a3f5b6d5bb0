// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify buckets filing histories into the categories a
// diligence package is assembled from.
package classify

import (
	"sort"
	"strings"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Per-category item caps.
const (
	tenQCap          = 2
	materialEventCap = 10
	capitalCap       = 5
	insiderCap       = 20
	majorHolderCap   = 10
)

// Retention windows in months, measured back from the classification date.
const (
	eventWindowMonths   = 12
	capitalWindowMonths = 24
	insiderWindowMonths = 12
)

// Classify partitions filings into package categories. Pure: no I/O and
// no clock; all windows are measured from asOf. A filing whose form
// satisfies more than one predicate lands only in the highest-priority
// category (financials, events, capital, ownership, governance).
func Classify(filings []types.Filing, asOf types.Date) types.CategorizedFilings {
	var out types.CategorizedFilings
	var tenKs, tenQs, proxies []types.Filing

	for _, f := range filings {
		form := normalForm(f.Form)
		switch categoryOf(form) {
		case types.CategoryFinancials:
			if form == "10-K" {
				tenKs = append(tenKs, f)
			} else {
				tenQs = append(tenQs, f)
			}
		case types.CategoryMaterialEvents:
			out.MaterialEvents = append(out.MaterialEvents, f)
		case types.CategoryCapitalStructure:
			out.CapitalStructure = append(out.CapitalStructure, f)
		case types.CategoryOwnership:
			if isInsiderForm(form) {
				out.InsiderTransactions = append(out.InsiderTransactions, f)
			} else {
				out.MajorHolders = append(out.MajorHolders, f)
			}
		case types.CategoryGovernance:
			proxies = append(proxies, f)
		}
	}

	if latest := takeRecent(tenKs, asOf, 0, 1); len(latest) > 0 {
		out.LatestTenK = &latest[0]
	}
	out.RecentTenQs = takeRecent(tenQs, asOf, 0, tenQCap)
	out.MaterialEvents = takeRecent(out.MaterialEvents, asOf, eventWindowMonths, materialEventCap)
	out.CapitalStructure = takeRecent(out.CapitalStructure, asOf, capitalWindowMonths, capitalCap)
	out.InsiderTransactions = takeRecent(out.InsiderTransactions, asOf, insiderWindowMonths, insiderCap)
	out.MajorHolders = takeRecent(out.MajorHolders, asOf, 0, majorHolderCap)
	if latest := takeRecent(proxies, asOf, 0, 1); len(latest) > 0 {
		out.LatestProxy = &latest[0]
	}
	return out
}

// categoryOf returns the first category whose predicate matches, in
// priority order, or "" when none does.
func categoryOf(form string) types.FilingCategory {
	switch {
	case form == "10-K" || form == "10-Q":
		return types.CategoryFinancials
	case strings.Contains(form, "8-K"):
		return types.CategoryMaterialEvents
	case hasAnyPrefix(form, "S-1", "S-3", "424B"):
		return types.CategoryCapitalStructure
	case isInsiderForm(form) || hasAnyPrefix(form, "SC 13D", "SC 13G"):
		return types.CategoryOwnership
	case form == "DEF 14A":
		return types.CategoryGovernance
	default:
		return ""
	}
}

func isInsiderForm(form string) bool {
	return form == "3" || form == "4" || form == "5"
}

func hasAnyPrefix(form string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(form, p) {
			return true
		}
	}
	return false
}

func normalForm(form string) string {
	return strings.ToUpper(strings.TrimSpace(form))
}

// takeRecent drops undated filings and, when windowMonths > 0, filings
// older than asOf minus the window (a filing dated exactly on the
// boundary is kept), then sorts newest-first and truncates to limit.
func takeRecent(filings []types.Filing, asOf types.Date, windowMonths, limit int) []types.Filing {
	var cutoff types.Date
	if windowMonths > 0 {
		cutoff = asOf.AddMonths(-windowMonths)
	}

	var kept []types.Filing
	for _, f := range filings {
		if f.FilingDate.IsZero() {
			continue
		}
		if windowMonths > 0 && f.FilingDate.Before(cutoff.Time) {
			continue
		}
		kept = append(kept, f)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].FilingDate.After(kept[j].FilingDate.Time)
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
