// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// categoryGuide describes each filings/ subdirectory in the README.
var categoryGuide = map[types.FilingCategory]string{
	types.CategoryFinancials:       "annual and quarterly reports",
	types.CategoryMaterialEvents:   "material event reports",
	types.CategoryCapitalStructure: "registration statements and prospectuses",
	types.CategoryOwnership:        "insider and beneficial-ownership filings",
	types.CategoryGovernance:       "proxy statements",
}

// WriteReadme writes the human-readable package summary: company identity,
// captured data, the per-category document list, and source provenance.
func WriteReadme(path string, m types.PackageManifest) error {
	var b strings.Builder

	title := fmt.Sprintf("%s (%s)", m.Company.Name, m.Company.Ticker)
	fmt.Fprintf(&b, "%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	fmt.Fprintf(&b, "Diligence package generated %s\n", m.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Registry identifier (CIK): %s\n\n", m.Company.CIK)

	if snap := m.Data.Market; snap != nil {
		fmt.Fprintf(&b, "MARKET DATA\n")
		fmt.Fprintf(&b, "  Current price        $%.2f\n", snap.CurrentPrice)
		fmt.Fprintf(&b, "  Previous close       $%.2f\n", snap.PreviousClose)
		fmt.Fprintf(&b, "  20-day avg volume    %s\n", groupThousands(snap.AverageVolume20d))
		fmt.Fprintf(&b, "  50-day moving avg    $%.2f\n", snap.MovingAverage50)
		fmt.Fprintf(&b, "  200-day moving avg   $%.2f\n", snap.MovingAverage200)
		if snap.High52w > 0 || snap.Low52w > 0 {
			fmt.Fprintf(&b, "  52-week range        $%.2f - $%.2f\n", snap.Low52w, snap.High52w)
		}
		if km := m.Data.KeyMetrics; km != nil {
			fmt.Fprintf(&b, "  Off 52-week high     %.1f%%\n", km.PercentOffHigh52w)
			fmt.Fprintf(&b, "  Above 52-week low    %.1f%%\n", km.PercentOffLow52w)
		}
		fmt.Fprintln(&b)
	}

	if si := m.Data.ShortInterest; si != nil {
		fmt.Fprintf(&b, "SHORT INTEREST\n")
		fmt.Fprintf(&b, "  Short interest       %s shares\n", groupThousands(si.ShortInterestShares))
		if si.PercentOfFloat > 0 {
			fmt.Fprintf(&b, "  Percent of float     %.1f%%\n", si.PercentOfFloat)
		}
		if si.DaysToCover > 0 {
			fmt.Fprintf(&b, "  Days to cover        %.1f\n", si.DaysToCover)
		}
		if si.ChangePercent != 0 {
			fmt.Fprintf(&b, "  Change vs prior      %+.1f%%\n", si.ChangePercent)
		}
		fmt.Fprintf(&b, "  Record date          %s (settles %s)\n\n", si.RecordDate, si.SettlementDate)
	}

	fmt.Fprintf(&b, "FILINGS (%d downloaded, %d skipped)\n", m.Downloaded, m.Skipped)
	for _, cat := range types.Categories {
		refs := m.Filings[cat]
		if len(refs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s\n", cat.Label())
		for _, r := range refs {
			date := "unknown date"
			if !r.FilingDate.IsZero() {
				date = r.FilingDate.String()
			}
			if r.File == "" {
				fmt.Fprintf(&b, "    %-10s %s  (not downloaded)\n", r.Form, date)
				continue
			}
			fmt.Fprintf(&b, "    %-10s %s  %s\n", r.Form, date, r.File)
		}
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "CONTENTS\n")
	fmt.Fprintf(&b, "  manifest.json        machine-readable inventory of this package\n")
	if m.Data.Market != nil {
		fmt.Fprintf(&b, "  market_data.json     captured market snapshot\n")
	}
	if m.Data.ShortInterest != nil {
		fmt.Fprintf(&b, "  short_interest.json  captured short-interest record\n")
	}
	for _, cat := range types.Categories {
		fmt.Fprintf(&b, "  %-20s %s\n", "filings/"+cat.Dir()+"/", categoryGuide[cat])
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "SOURCES\n")
	for _, src := range m.Sources {
		line := fmt.Sprintf("  %s (queried %s)", src.Name, src.LastUpdated.UTC().Format("2006-01-02 15:04 MST"))
		if src.Delayed {
			line += fmt.Sprintf(", published on a ~%d day delay", src.DelayDays)
		}
		fmt.Fprintln(&b, line)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "This package was assembled automatically from public sources. Verify\n")
	fmt.Fprintf(&b, "figures against the underlying filings before relying on them.\n")

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// groupThousands renders n with comma separators ("62,500,000").
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}
