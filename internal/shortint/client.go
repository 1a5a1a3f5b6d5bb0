// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package shortint retrieves short-interest positions from the FINRA data
// API, falling back to the public daily short-volume files when no API
// credentials are configured.
package shortint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/diligence-engine/internal/httputil"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// Base URLs are declared as vars so tests can substitute httptest servers.
var (
	tokenURL = "https://ips.finra.org/fip/rest/ews/oauth2/access_token?grant_type=client_credentials"

	// Endpoint variants are tried in order; a 404 means "no data here,
	// try the next one", not a failure.
	dataEndpoints = []string{
		"https://api.finra.org/data/group/otcMarket/name/consolidatedShortInterest",
		"https://api.finra.org/data/group/otcMarket/name/equityShortInterest",
	}
)

const (
	defaultTimeout = 30 * time.Second

	// Cached tokens are refreshed this long before their reported expiry.
	tokenExpiryMargin = 60 * time.Second

	// Short-interest settlement conventionally trails the record date by
	// two calendar days; used when the provider omits the settlement date.
	settlementLagDays = 2
)

// Client fetches short-interest records. With credentials it speaks the
// authenticated REST API; without them it falls back to the public daily
// short-volume feed.
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClient(cfg types.ShortInterestConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

// FetchShortInterest returns the latest short-interest record for symbol,
// or nil (no error) when no source has data for it.
func (c *Client) FetchShortInterest(ctx context.Context, symbol string) (*types.ShortInterestRecord, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("empty symbol")
	}
	if c.clientID == "" || c.clientSecret == "" {
		return c.fetchLegacy(ctx, sym)
	}
	return c.fetchFromAPI(ctx, sym)
}

func (c *Client) fetchFromAPI(ctx context.Context, sym string) (*types.ShortInterestRecord, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	for _, endpoint := range dataEndpoints {
		reqURL := endpoint + "?symbol=" + url.QueryEscape(sym) + "&limit=10"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
		if err != nil {
			return nil, err
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, fmt.Errorf("short interest request rejected: HTTP 401")
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("short interest request failed: HTTP %d", resp.StatusCode)
		case readErr != nil:
			return nil, fmt.Errorf("reading response: %w", readErr)
		}

		for _, rec := range decodeRecords(body) {
			if strings.EqualFold(rec.ticker(), sym) {
				return buildRecord(rec, sym), nil
			}
		}
	}
	return nil, nil
}

// accessToken returns a cached OAuth token, authenticating with client
// credentials when the cache is empty or within the expiry margin.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt.Add(-tokenExpiryMargin)) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return "", fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed: HTTP %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.token = tok.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// decodeRecords tolerates the three response shapes the API serves: a
// bare array, an array wrapped under "data" or "records", or a single
// object. Shapes are tried in that order; first match wins.
func decodeRecords(body []byte) []shortRecord {
	var list []shortRecord
	if err := json.Unmarshal(body, &list); err == nil {
		return list
	}

	var wrapped struct {
		Data    []shortRecord `json:"data"`
		Records []shortRecord `json:"records"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if len(wrapped.Data) > 0 {
			return wrapped.Data
		}
		if len(wrapped.Records) > 0 {
			return wrapped.Records
		}
	}

	var single shortRecord
	if err := json.Unmarshal(body, &single); err == nil && single.ticker() != "" {
		return []shortRecord{single}
	}
	return nil
}

func buildRecord(rec shortRecord, sym string) *types.ShortInterestRecord {
	current := int64(rec.shares())
	previous := int64(rec.PreviousShortPosition)

	var changePercent float64
	if previous > 0 {
		changePercent = float64(current-previous) / float64(previous) * 100
	}

	recordDate := parseDate(rec.RecordDate)
	settlement := parseDate(rec.SettlementDate)
	if settlement.IsZero() && !recordDate.IsZero() {
		settlement = recordDate.AddDays(settlementLagDays)
	}

	// Providers that omit an explicit ratio report it as days-to-cover.
	ratio := float64(rec.ShortInterestRatio)
	if ratio == 0 {
		ratio = float64(rec.DaysToCover)
	}

	return &types.ShortInterestRecord{
		Symbol:                      sym,
		ShortInterestShares:         current,
		ShortInterestRatio:          ratio,
		PercentOfFloat:              float64(rec.PercentOfFloat),
		DaysToCover:                 float64(rec.DaysToCover),
		PreviousShortInterestShares: previous,
		ChangePercent:               changePercent,
		RecordDate:                  recordDate,
		SettlementDate:              settlement,
	}
}

// parseDate accepts ISO-8601 or compact yyyymmdd dates; anything else
// yields the zero date.
func parseDate(s string) types.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.Date{}
	}
	if d, err := types.ParseDate(s); err == nil {
		return d
	}
	if t, err := time.Parse("20060102", s); err == nil {
		return types.DateOf(t)
	}
	return types.Date{}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// shortRecord accepts the field-name variants seen across the endpoint
// generations.
type shortRecord struct {
	Symbol                string     `json:"symbol"`
	SymbolCode            string     `json:"symbolCode"`
	ShortInterest         flexNumber `json:"shortInterest"`
	CurrentShortPosition  flexNumber `json:"currentShortPositionQuantity"`
	PreviousShortPosition flexNumber `json:"previousShortPositionQuantity"`
	ShortInterestRatio    flexNumber `json:"shortInterestRatio"`
	PercentOfFloat        flexNumber `json:"percentOfFloat"`
	DaysToCover           flexNumber `json:"daysToCoverQuantity"`
	RecordDate            string     `json:"recordDate"`
	SettlementDate        string     `json:"settlementDate"`
}

func (r shortRecord) ticker() string {
	if r.Symbol != "" {
		return r.Symbol
	}
	return r.SymbolCode
}

func (r shortRecord) shares() float64 {
	if r.ShortInterest != 0 {
		return float64(r.ShortInterest)
	}
	return float64(r.CurrentShortPosition)
}

// flexNumber decodes JSON values presented as native numbers or as
// strings with optional comma separators. Unparseable input decodes to 0
// rather than failing the record.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*n = 0
		return nil
	}
	switch v := raw.(type) {
	case float64:
		*n = flexNumber(v)
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = flexNumber(f)
	default:
		*n = 0
	}
	return nil
}
