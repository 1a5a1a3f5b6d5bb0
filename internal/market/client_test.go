// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

func testConfig() types.MarketDataConfig {
	return types.MarketDataConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 10 * time.Second},
		APIKey:     "test-key",
		RateLimit:  100,
		RateWindow: time.Second,
	}
}

// queryLog captures the query parameters of every request the mock
// provider received, keyed by function name.
type queryLog struct {
	mu   sync.Mutex
	seen map[string][]string
	keys []string
}

func (l *queryLog) record(function, apikey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = make(map[string][]string)
	}
	l.seen[function] = append(l.seen[function], apikey)
	l.keys = append(l.keys, apikey)
}

func recentDate(daysAgo int) string {
	return time.Now().AddDate(0, 0, -daysAgo).Format("2006-01-02")
}

func newProviderServer(t *testing.T, log *queryLog) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		function := r.URL.Query().Get("function")
		if log != nil {
			log.record(function, r.URL.Query().Get("apikey"))
		}
		w.Header().Set("Content-Type", "application/json")

		switch function {
		case "GLOBAL_QUOTE":
			fmt.Fprint(w, `{"Global Quote": {"05. price": "189.3000", "08. previous close": "187.4400"}}`)

		case "SMA":
			period := r.URL.Query().Get("time_period")
			value := map[string]string{"20": "185.10", "50": "178.55", "200": "162.40"}[period]
			json.NewEncoder(w).Encode(map[string]any{
				"Technical Analysis: SMA": map[string]any{
					recentDate(1): map[string]string{"SMA": value},
					recentDate(2): map[string]string{"SMA": "0.01"},
				},
			})

		case "TIME_SERIES_DAILY":
			series := map[string]any{}
			highs := []string{"190.00", "191.50", "188.20", "187.00", "186.10"}
			lows := []string{"186.00", "187.25", "184.90", "183.50", "182.75"}
			volumes := []string{"100", "200", "300", "400", "500"}
			for i := 0; i < 5; i++ {
				series[recentDate(i+1)] = map[string]string{
					"2. high":   highs[i],
					"3. low":    lows[i],
					"5. volume": volumes[i],
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"Time Series (Daily)": series})

		default:
			fmt.Fprint(w, `{"Error Message": "unknown function"}`)
		}
	}))
}

func overrideQueryBase(tsURL string) func() {
	orig := queryBase
	queryBase = tsURL
	return func() { queryBase = orig }
}

func TestFetchSnapshot(t *testing.T) {
	log := &queryLog{}
	ts := newProviderServer(t, log)
	defer ts.Close()
	restore := overrideQueryBase(ts.URL)
	defer restore()

	snap, err := NewClient(testConfig()).FetchSnapshot(context.Background(), "aapl")
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, "AAPL", snap.Symbol)
	assert.Equal(t, 189.30, snap.CurrentPrice)
	assert.Equal(t, 187.44, snap.PreviousClose)
	assert.Equal(t, 185.10, snap.MovingAverage20)
	assert.Equal(t, 178.55, snap.MovingAverage50)
	assert.Equal(t, 162.40, snap.MovingAverage200)
	assert.Equal(t, int64(300), snap.AverageVolume20d)
	assert.Equal(t, 191.50, snap.High52w)
	assert.Equal(t, 182.75, snap.Low52w)
	assert.False(t, snap.AsOf.IsZero())

	// Every sub-fetch carries the API key.
	for _, key := range log.keys {
		assert.Equal(t, "test-key", key)
	}
	assert.Len(t, log.seen["SMA"], 3)
}

func TestFetchSnapshotQuoteFailureIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Error Message": "Invalid API call"}`)
	}))
	defer ts.Close()
	restore := overrideQueryBase(ts.URL)
	defer restore()

	snap, err := NewClient(testConfig()).FetchSnapshot(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, err.Error(), "Invalid API call")
}

func TestFetchSnapshotToleratesMissingSeries(t *testing.T) {
	// Quote succeeds; SMA and daily series come back empty. The snapshot
	// substitutes zeros rather than failing.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("function") {
		case "GLOBAL_QUOTE":
			fmt.Fprint(w, `{"Global Quote": {"05. price": "42.00", "08. previous close": "41.00"}}`)
		case "SMA":
			fmt.Fprint(w, `{"Technical Analysis: SMA": {}}`)
		default:
			fmt.Fprint(w, `{"Time Series (Daily)": {}}`)
		}
	}))
	defer ts.Close()
	restore := overrideQueryBase(ts.URL)
	defer restore()

	snap, err := NewClient(testConfig()).FetchSnapshot(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Equal(t, 42.00, snap.CurrentPrice)
	assert.Zero(t, snap.MovingAverage20)
	assert.Zero(t, snap.MovingAverage50)
	assert.Zero(t, snap.MovingAverage200)
	assert.Zero(t, snap.AverageVolume20d)
	assert.Zero(t, snap.High52w)
	assert.Zero(t, snap.Low52w)
}

func TestFetchSMANoData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Technical Analysis: SMA": {}}`)
	}))
	defer ts.Close()
	restore := overrideQueryBase(ts.URL)
	defer restore()

	_, err := NewClient(testConfig()).fetchSMA(context.Background(), "AAPL", 50)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestAverageVolumeWindowAndTruncation(t *testing.T) {
	series := map[string]dailyBar{}
	// 25 entries: the 20 most recent all have volume 100; the 5 oldest
	// have huge volumes that must not leak into the average.
	for day := 1; day <= 25; day++ {
		vol := "100"
		if day <= 5 {
			vol = "999999"
		}
		series[fmt.Sprintf("2023-01-%02d", day)] = dailyBar{Volume: vol}
	}
	assert.Equal(t, int64(100), averageVolume(series))

	truncated := map[string]dailyBar{
		"2023-01-01": {Volume: "10"},
		"2023-01-02": {Volume: "10"},
		"2023-01-03": {Volume: "11"},
	}
	assert.Equal(t, int64(10), averageVolume(truncated))

	assert.Zero(t, averageVolume(map[string]dailyBar{}))
}

func TestYearRangeBoundary(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	series := map[string]dailyBar{
		"2024-06-14": {High: "150.00", Low: "140.00"},
		"2023-09-01": {High: "175.00", Low: "120.00"},
		"2023-06-15": {High: "999.00", Low: "1.00"}, // exactly one year ago: excluded
		"2022-01-01": {High: "500.00", Low: "0.50"},
	}

	high, low := yearRange(series, now)
	assert.Equal(t, 175.00, high)
	assert.Equal(t, 120.00, low)

	high, low = yearRange(map[string]dailyBar{
		"2020-01-01": {High: "10.00", Low: "5.00"},
	}, now)
	assert.Zero(t, high)
	assert.Zero(t, low)
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 1234567.89, parseFloat("1,234,567.89"))
	assert.Equal(t, 42.0, parseFloat(" 42 "))
	assert.Zero(t, parseFloat(""))
	assert.Zero(t, parseFloat("n/a"))
}
