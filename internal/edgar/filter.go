// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package edgar

import (
	"sort"
	"strings"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// FilterFilings keeps filings whose form label case-insensitively contains
// any of formTypes as a substring and whose filing date falls inside
// [start, end] inclusive by calendar date. Empty formTypes places no form
// restriction; a zero start or end leaves that side of the range open. The
// result is sorted by filing date, newest first.
//
// Containment is deliberately loose: requesting "424B" matches "424B2" and
// "424B5", and "8-K" likewise matches "8-K/A".
func FilterFilings(filings []types.Filing, formTypes []string, start, end types.Date) []types.Filing {
	wanted := make([]string, 0, len(formTypes))
	for _, ft := range formTypes {
		ft = strings.ToUpper(strings.TrimSpace(ft))
		if ft != "" {
			wanted = append(wanted, ft)
		}
	}

	var out []types.Filing
	for _, f := range filings {
		if f.FilingDate.IsZero() || !matchesForm(f.Form, wanted) {
			continue
		}
		if !start.IsZero() && f.FilingDate.Before(start.Time) {
			continue
		}
		if !end.IsZero() && f.FilingDate.After(end.Time) {
			continue
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FilingDate.After(out[j].FilingDate.Time)
	})
	return out
}

func matchesForm(form string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	upper := strings.ToUpper(form)
	for _, w := range wanted {
		if strings.Contains(upper, w) {
			return true
		}
	}
	return false
}
