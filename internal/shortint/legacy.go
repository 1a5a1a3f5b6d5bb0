// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package shortint

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/diligence-engine/internal/httputil"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Base URL is declared as a var so tests can substitute an httptest server.
var legacyFeedBase = "https://cdn.finra.org/equity/regsho/daily/"

// Daily consolidated short-volume files are published under a dated name.
const legacyFilePattern = "CNMSshvol%s.txt"

// fetchLegacy walks the candidate publication dates most-recent-first and
// returns the first record whose symbol field matches exactly. The feed
// carries volumes only, so float percentage, days-to-cover, and
// prior-period fields stay zero.
func (c *Client) fetchLegacy(ctx context.Context, sym string) (*types.ShortInterestRecord, error) {
	for _, day := range candidateDates(time.Now()) {
		rec, err := c.fetchLegacyFile(ctx, sym, day)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (c *Client) fetchLegacyFile(ctx context.Context, sym string, day types.Date) (*types.ShortInterestRecord, error) {
	fileURL := legacyFeedBase + fmt.Sprintf(legacyFilePattern, day.Compact())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // not published for this date
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("short volume feed request failed: HTTP %d", resp.StatusCode)
	}

	// Lines are date|symbol|shortVolume|totalVolume|market.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), "|")
		if len(fields) < 5 || fields[1] != sym {
			continue
		}

		shortVolume := parseNumber(fields[2])
		totalVolume := parseNumber(fields[3])
		var ratio float64
		if totalVolume > 0 {
			ratio = shortVolume / totalVolume
		}

		recordDate := parseDate(fields[0])
		if recordDate.IsZero() {
			recordDate = day
		}
		return &types.ShortInterestRecord{
			Symbol:              sym,
			ShortInterestShares: int64(shortVolume),
			ShortInterestRatio:  ratio,
			RecordDate:          recordDate,
			SettlementDate:      recordDate.AddDays(settlementLagDays),
		}, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading short volume feed: %w", err)
	}
	return nil, nil
}

// candidateDates returns the 15th and last calendar day of each of the
// past three months, excluding future dates, newest first.
func candidateDates(now time.Time) []types.Date {
	today := types.DateOf(now)
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var dates []types.Date
	for i := 0; i < 3; i++ {
		month := firstOfMonth.AddDate(0, -i, 0)
		y, m := month.Year(), month.Month()
		mid := types.NewDate(y, m, 15)
		last := types.DateOf(time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC))
		for _, d := range []types.Date{mid, last} {
			if d.After(today.Time) {
				continue
			}
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j].Time) })
	return dates
}

// parseNumber strips comma separators and returns 0 for anything
// unparseable.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
