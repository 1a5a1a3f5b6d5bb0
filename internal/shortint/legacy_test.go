// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package shortint

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

const sampleLegacyFeed = `Date|Symbol|ShortVolume|TotalVolume|Market
20231115|CAT|1000|4000|Q
20231115|CATO|9999|10000|Q
20231115|GME|2,500|10,000|Q
`

func overrideLegacyFeed(tsURL string) func() {
	orig := legacyFeedBase
	legacyFeedBase = tsURL + "/regsho/daily/"
	return func() { legacyFeedBase = orig }
}

// legacyClient has no credentials, so fetches take the flat-file path.
func legacyClient() *Client {
	return NewClient(types.ShortInterestConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 10 * time.Second},
	})
}

func TestCandidateDates(t *testing.T) {
	now := time.Date(2023, 11, 20, 10, 0, 0, 0, time.UTC)
	got := candidateDates(now)

	want := []string{"2023-11-15", "2023-10-31", "2023-10-15", "2023-09-30", "2023-09-15"}
	if len(got) != len(want) {
		t.Fatalf("got %d dates %v, want %d", len(got), got, len(want))
	}
	for i, d := range got {
		if d.String() != want[i] {
			t.Errorf("date %d = %s, want %s", i, d, want[i])
		}
	}
}

func TestCandidateDatesMonthEnd(t *testing.T) {
	// From the last day of March the walk crosses a leap February.
	now := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	got := candidateDates(now)

	want := []string{"2024-03-31", "2024-03-15", "2024-02-29", "2024-02-15", "2024-01-31", "2024-01-15"}
	if len(got) != len(want) {
		t.Fatalf("got %d dates %v, want %d", len(got), got, len(want))
	}
	for i, d := range got {
		if d.String() != want[i] {
			t.Errorf("date %d = %s, want %s", i, d, want[i])
		}
	}
}

func TestFetchLegacy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleLegacyFeed)
	}))
	defer ts.Close()
	restore := overrideLegacyFeed(ts.URL)
	defer restore()

	rec, err := legacyClient().FetchShortInterest(context.Background(), "cat")
	if err != nil {
		t.Fatalf("FetchShortInterest: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}

	// Exact symbol match: CAT must not pick up the CATO line.
	if rec.Symbol != "CAT" {
		t.Errorf("Symbol = %q", rec.Symbol)
	}
	if rec.ShortInterestShares != 1000 {
		t.Errorf("ShortInterestShares = %d, want 1000", rec.ShortInterestShares)
	}
	if rec.ShortInterestRatio != 0.25 {
		t.Errorf("ShortInterestRatio = %v, want 0.25", rec.ShortInterestRatio)
	}
	if rec.RecordDate.String() != "2023-11-15" {
		t.Errorf("RecordDate = %s", rec.RecordDate)
	}
	if rec.SettlementDate.String() != "2023-11-17" {
		t.Errorf("SettlementDate = %s, want 2023-11-17", rec.SettlementDate)
	}

	// The feed has no position-level fields.
	if rec.PercentOfFloat != 0 || rec.DaysToCover != 0 ||
		rec.PreviousShortInterestShares != 0 || rec.ChangePercent != 0 {
		t.Errorf("position fields should be zero, got %+v", rec)
	}
}

func TestFetchLegacyCommaVolumes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleLegacyFeed)
	}))
	defer ts.Close()
	restore := overrideLegacyFeed(ts.URL)
	defer restore()

	rec, err := legacyClient().FetchShortInterest(context.Background(), "GME")
	if err != nil {
		t.Fatalf("FetchShortInterest: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.ShortInterestShares != 2500 {
		t.Errorf("ShortInterestShares = %d, want 2500", rec.ShortInterestShares)
	}
	if rec.ShortInterestRatio != 0.25 {
		t.Errorf("ShortInterestRatio = %v, want 0.25", rec.ShortInterestRatio)
	}
}

func TestFetchLegacyTriesOlderDates(t *testing.T) {
	candidates := candidateDates(time.Now())
	if len(candidates) < 3 {
		t.Fatalf("unexpectedly few candidate dates: %v", candidates)
	}
	target := candidates[2]

	var mu sync.Mutex
	var requested []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.Path)
		mu.Unlock()
		if !strings.Contains(r.URL.Path, target.Compact()) {
			http.NotFound(w, r)
			return
		}
		// Empty date field: the record date falls back to the file's date.
		fmt.Fprint(w, "|GME|100|400|Q\n")
	}))
	defer ts.Close()
	restore := overrideLegacyFeed(ts.URL)
	defer restore()

	rec, err := legacyClient().FetchShortInterest(context.Background(), "GME")
	if err != nil {
		t.Fatalf("FetchShortInterest: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if !rec.RecordDate.Equal(target.Time) {
		t.Errorf("RecordDate = %s, want %s", rec.RecordDate, target)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requested) != 3 {
		t.Fatalf("requested %d files %v, want 3", len(requested), requested)
	}
	for i, path := range requested {
		if !strings.Contains(path, candidates[i].Compact()) {
			t.Errorf("request %d = %s, want date %s", i, path, candidates[i])
		}
	}
}

func TestFetchLegacyNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	restore := overrideLegacyFeed(ts.URL)
	defer restore()

	rec, err := legacyClient().FetchShortInterest(context.Background(), "GME")
	if err != nil {
		t.Fatalf("FetchShortInterest: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1,234,567", 1234567},
		{" 42 ", 42},
		{"3.5", 3.5},
		{"", 0},
		{"n/a", 0},
	}
	for _, tc := range cases {
		if got := parseNumber(tc.in); got != tc.want {
			t.Errorf("parseNumber(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
