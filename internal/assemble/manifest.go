// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// shortInterestDelayDays is the typical lag between a short-interest record
// date and its publication.
const shortInterestDelayDays = 10

// buildManifest assembles the package manifest from the run's outputs.
// Downloaded and Skipped are left for the caller to fill from its tally.
func buildManifest(company types.CompanyInfo, snap *types.MarketSnapshot, short *types.ShortInterestRecord, refsByCat map[types.FilingCategory][]docRef, generatedAt time.Time) types.PackageManifest {
	filings := make(types.FilingsManifest, len(refsByCat))
	for cat, refs := range refsByCat {
		list := make([]types.FilingReference, 0, len(refs))
		for _, r := range refs {
			list = append(list, types.FilingReference{
				Form:            r.filing.Form,
				FilingDate:      r.filing.FilingDate,
				AccessionNumber: r.filing.AccessionNumber,
				File:            r.rel,
			})
		}
		filings[cat] = list
	}

	return types.PackageManifest{
		Company: company,
		Data: types.DataSnapshot{
			Market:        snap,
			ShortInterest: short,
			KeyMetrics:    deriveKeyMetrics(snap),
		},
		Filings:     filings,
		Sources:     provenance(snap, short, generatedAt),
		GeneratedAt: generatedAt,
	}
}

// deriveKeyMetrics computes price-position indicators from a snapshot.
// Returns nil without a current price; indicators with a zero denominator
// stay 0.
func deriveKeyMetrics(snap *types.MarketSnapshot) *types.KeyMetrics {
	if snap == nil || snap.CurrentPrice == 0 {
		return nil
	}
	m := &types.KeyMetrics{}
	if snap.High52w > 0 {
		m.PercentOffHigh52w = (snap.High52w - snap.CurrentPrice) / snap.High52w * 100
	}
	if snap.Low52w > 0 {
		m.PercentOffLow52w = (snap.CurrentPrice - snap.Low52w) / snap.Low52w * 100
	}
	if snap.MovingAverage50 > 0 {
		m.PriceVsMA50 = (snap.CurrentPrice - snap.MovingAverage50) / snap.MovingAverage50 * 100
	}
	if snap.MovingAverage200 > 0 {
		m.PriceVsMA200 = (snap.CurrentPrice - snap.MovingAverage200) / snap.MovingAverage200 * 100
	}
	return m
}

// provenance lists the data sources the run consulted. The filings registry
// is always present; market and short-interest entries appear only when
// their data was captured. Short interest publishes on a delay.
func provenance(snap *types.MarketSnapshot, short *types.ShortInterestRecord, t time.Time) []types.DataSource {
	sources := []types.DataSource{
		{Name: "SEC EDGAR", LastUpdated: t},
	}
	if snap != nil {
		sources = append(sources, types.DataSource{Name: "Alpha Vantage", LastUpdated: t})
	}
	if short != nil {
		sources = append(sources, types.DataSource{
			Name:        "FINRA short interest",
			LastUpdated: t,
			Delayed:     true,
			DelayDays:   shortInterestDelayDays,
		})
	}
	return sources
}

// writeJSONFile serializes v as pretty-printed JSON with keys sorted at
// every level, so successive runs diff cleanly.
func writeJSONFile(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	// A decode/encode round trip through unordered values lets the encoder
	// apply its sorted-key ordering to struct fields as well.
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("reordering keys: %w", err)
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
