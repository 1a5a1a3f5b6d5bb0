// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package market fetches quotes, moving averages, and daily price history
// from the Alpha Vantage query API and derives snapshot statistics.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/diligence-engine/internal/httputil"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Base URL is declared as a var so tests can substitute an httptest server.
var queryBase = "https://www.alphavantage.co/query"

const (
	defaultRateLimit  = 5
	defaultRateWindow = time.Minute
	defaultTimeout    = 30 * time.Second

	volumeWindow = 20
)

// ErrNoData reports that the provider returned an empty series for an
// otherwise successful request.
var ErrNoData = errors.New("market data series is empty")

// Client queries the market data provider. All calls share one rate
// limiter, so a snapshot's sub-fetches count against the same quota.
type Client struct {
	httpClient *http.Client
	limiter    *httputil.Limiter
	apiKey     string
}

func NewClient(cfg types.MarketDataConfig) *Client {
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
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    httputil.NewLimiter(limit, window),
		apiKey:     cfg.APIKey,
	}
}

// FetchSnapshot collects quote, moving-average, and volume statistics for
// symbol. The quote is required; every other sub-fetch degrades to zero
// values on failure so a partial snapshot still comes back usable.
func (c *Client) FetchSnapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error) {
	price, prevClose, err := c.fetchQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}

	snap := &types.MarketSnapshot{
		Symbol:        strings.ToUpper(strings.TrimSpace(symbol)),
		CurrentPrice:  price,
		PreviousClose: prevClose,
		AsOf:          time.Now().UTC(),
	}

	for _, p := range []struct {
		period int
		dest   *float64
	}{
		{20, &snap.MovingAverage20},
		{50, &snap.MovingAverage50},
		{200, &snap.MovingAverage200},
	} {
		v, err := c.fetchSMA(ctx, symbol, p.period)
		if err != nil {
			continue // leave at zero
		}
		*p.dest = v
	}

	series, err := c.fetchDailySeries(ctx, symbol)
	if err != nil {
		return snap, nil
	}
	snap.AverageVolume20d = averageVolume(series)
	snap.High52w, snap.Low52w = yearRange(series, time.Now())
	return snap, nil
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (price, prevClose float64, err error) {
	body, err := c.query(ctx, "GLOBAL_QUOTE", map[string]string{"symbol": symbol})
	if err != nil {
		return 0, 0, err
	}
	var resp globalQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, fmt.Errorf("decoding quote: %w", err)
	}
	if resp.ErrorMessage != "" {
		return 0, 0, fmt.Errorf("provider error: %s", resp.ErrorMessage)
	}
	if resp.Quote.Price == "" && resp.Quote.PreviousClose == "" {
		return 0, 0, fmt.Errorf("empty quote for %s", symbol)
	}
	return parseFloat(resp.Quote.Price), parseFloat(resp.Quote.PreviousClose), nil
}

// fetchSMA returns the most recent simple-moving-average value for the
// given period, or ErrNoData when the provider has no series.
func (c *Client) fetchSMA(ctx context.Context, symbol string, period int) (float64, error) {
	body, err := c.query(ctx, "SMA", map[string]string{
		"symbol":      symbol,
		"interval":    "daily",
		"time_period": strconv.Itoa(period),
		"series_type": "close",
	})
	if err != nil {
		return 0, err
	}
	var resp smaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decoding SMA %d: %w", period, err)
	}
	if resp.ErrorMessage != "" {
		return 0, fmt.Errorf("provider error: %s", resp.ErrorMessage)
	}
	dates := sortedDatesDesc(resp.Analysis)
	if len(dates) == 0 {
		return 0, ErrNoData
	}
	return parseFloat(resp.Analysis[dates[0]].SMA), nil
}

func (c *Client) fetchDailySeries(ctx context.Context, symbol string) (map[string]dailyBar, error) {
	body, err := c.query(ctx, "TIME_SERIES_DAILY", map[string]string{
		"symbol":     symbol,
		"outputsize": "full",
	})
	if err != nil {
		return nil, err
	}
	var resp dailySeriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding daily series: %w", err)
	}
	if resp.ErrorMessage != "" {
		return nil, fmt.Errorf("provider error: %s", resp.ErrorMessage)
	}
	if len(resp.Series) == 0 {
		return nil, ErrNoData
	}
	return resp.Series, nil
}

// query issues one rate-limited GET against the provider and returns the
// raw body. Provider-level errors ride inside a 200 response, so callers
// check the decoded Error Message field themselves.
func (c *Client) query(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("function", function)
	q.Set("apikey", c.apiKey)
	for k, v := range params {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s request failed: HTTP %d", function, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// averageVolume averages the volume of the 20 most recent entries by
// key-sorted date. Integer division, so the result is truncated.
func averageVolume(series map[string]dailyBar) int64 {
	dates := sortedDatesDesc(series)
	if len(dates) > volumeWindow {
		dates = dates[:volumeWindow]
	}
	if len(dates) == 0 {
		return 0
	}
	var sum int64
	for _, d := range dates {
		sum += int64(parseFloat(series[d].Volume))
	}
	return sum / int64(len(dates))
}

// yearRange scans entries dated strictly after now minus one year and
// returns the max high and min low. Both are 0 when nothing qualifies.
func yearRange(series map[string]dailyBar, now time.Time) (high, low float64) {
	cutoff := now.AddDate(-1, 0, 0)
	for date, bar := range series {
		d, err := time.Parse("2006-01-02", date)
		if err != nil || !d.After(cutoff) {
			continue
		}
		h := parseFloat(bar.High)
		l := parseFloat(bar.Low)
		if h > high {
			high = h
		}
		if low == 0 || (l > 0 && l < low) {
			low = l
		}
	}
	return high, low
}

func sortedDatesDesc[V any](m map[string]V) []string {
	dates := make([]string, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// parseFloat tolerates comma thousands separators and returns 0 for
// anything unparseable.
func parseFloat(s string) float64 {
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

type globalQuoteResponse struct {
	Quote        globalQuote `json:"Global Quote"`
	ErrorMessage string      `json:"Error Message"`
}

type globalQuote struct {
	Price         string `json:"05. price"`
	PreviousClose string `json:"08. previous close"`
}

type smaResponse struct {
	Analysis     map[string]smaPoint `json:"Technical Analysis: SMA"`
	ErrorMessage string              `json:"Error Message"`
}

type smaPoint struct {
	SMA string `json:"SMA"`
}

type dailySeriesResponse struct {
	Series       map[string]dailyBar `json:"Time Series (Daily)"`
	ErrorMessage string              `json:"Error Message"`
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}
