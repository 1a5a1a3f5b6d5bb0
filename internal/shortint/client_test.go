// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package shortint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

const sampleAPIRecord = `{
  "symbolCode": "GME",
  "currentShortPositionQuantity": "62,500,000",
  "previousShortPositionQuantity": 50000000,
  "percentOfFloat": "24.5",
  "daysToCoverQuantity": 3.8,
  "recordDate": "2023-10-31",
  "settlementDate": ""
}`

func overrideAPIEndpoints(tsURL string, paths ...string) func() {
	origToken := tokenURL
	origEndpoints := dataEndpoints

	tokenURL = tsURL + "/oauth2/access_token"
	eps := make([]string, len(paths))
	for i, p := range paths {
		eps[i] = tsURL + p
	}
	dataEndpoints = eps

	return func() {
		tokenURL = origToken
		dataEndpoints = origEndpoints
	}
}

func apiClient() *Client {
	return NewClient(types.ShortInterestConfig{
		HTTPConfig:   types.HTTPConfig{Timeout: 10 * time.Second},
		ClientID:     "test-id",
		ClientSecret: "test-secret",
	})
}

func TestFetchShortInterestFromAPI(t *testing.T) {
	var tokenAuth, dataAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/access_token":
			tokenAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{"access_token": "tok-1", "expires_in": 1800}`)
		case "/data/short":
			dataAuth = r.Header.Get("Authorization")
			fmt.Fprintf(w, `{"data": [%s]}`, sampleAPIRecord)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	restore := overrideAPIEndpoints(ts.URL, "/data/short")
	defer restore()

	rec, err := apiClient().FetchShortInterest(context.Background(), "gme")
	if err != nil {
		t.Fatalf("FetchShortInterest: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}

	wantBasic := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-id:test-secret"))
	if tokenAuth != wantBasic {
		t.Errorf("token Authorization = %q, want %q", tokenAuth, wantBasic)
	}
	if dataAuth != "Bearer tok-1" {
		t.Errorf("data Authorization = %q, want Bearer tok-1", dataAuth)
	}

	if rec.Symbol != "GME" {
		t.Errorf("Symbol = %q", rec.Symbol)
	}
	if rec.ShortInterestShares != 62500000 {
		t.Errorf("ShortInterestShares = %d, want 62500000", rec.ShortInterestShares)
	}
	if rec.PreviousShortInterestShares != 50000000 {
		t.Errorf("PreviousShortInterestShares = %d", rec.PreviousShortInterestShares)
	}
	if rec.ChangePercent != 25.0 {
		t.Errorf("ChangePercent = %v, want 25", rec.ChangePercent)
	}
	if rec.PercentOfFloat != 24.5 {
		t.Errorf("PercentOfFloat = %v", rec.PercentOfFloat)
	}
	if rec.DaysToCover != 3.8 {
		t.Errorf("DaysToCover = %v", rec.DaysToCover)
	}
	// No explicit ratio in the payload: falls back to days-to-cover.
	if rec.ShortInterestRatio != 3.8 {
		t.Errorf("ShortInterestRatio = %v, want 3.8", rec.ShortInterestRatio)
	}
	if rec.RecordDate.String() != "2023-10-31" {
		t.Errorf("RecordDate = %s", rec.RecordDate)
	}
	// Settlement date was absent: defaults to record date plus two days.
	if rec.SettlementDate.String() != "2023-11-02" {
		t.Errorf("SettlementDate = %s, want 2023-11-02", rec.SettlementDate)
	}
}

func TestTokenCaching(t *testing.T) {
	var tokenHits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/access_token" {
			tokenHits.Add(1)
			fmt.Fprint(w, `{"access_token": "tok-1", "expires_in": 1800}`)
			return
		}
		fmt.Fprintf(w, `[%s]`, sampleAPIRecord)
	}))
	defer ts.Close()
	restore := overrideAPIEndpoints(ts.URL, "/data/short")
	defer restore()

	c := apiClient()
	for i := 0; i < 3; i++ {
		if _, err := c.FetchShortInterest(context.Background(), "GME"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if got := tokenHits.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
}

func TestTokenRefreshNearExpiry(t *testing.T) {
	var tokenHits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/access_token" {
			tokenHits.Add(1)
			// Expires inside the refresh margin, so every fetch re-authenticates.
			fmt.Fprint(w, `{"access_token": "tok-1", "expires_in": 30}`)
			return
		}
		fmt.Fprintf(w, `[%s]`, sampleAPIRecord)
	}))
	defer ts.Close()
	restore := overrideAPIEndpoints(ts.URL, "/data/short")
	defer restore()

	c := apiClient()
	for i := 0; i < 2; i++ {
		if _, err := c.FetchShortInterest(context.Background(), "GME"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if got := tokenHits.Load(); got != 2 {
		t.Errorf("token endpoint hit %d times, want 2", got)
	}
}

func TestEndpointFallbackOn404(t *testing.T) {
	var firstHits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/access_token":
			fmt.Fprint(w, `{"access_token": "tok-1", "expires_in": 1800}`)
		case "/data/first":
			firstHits.Add(1)
			http.NotFound(w, r)
		case "/data/second":
			fmt.Fprintf(w, `[%s]`, sampleAPIRecord)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	restore := overrideAPIEndpoints(ts.URL, "/data/first", "/data/second")
	defer restore()

	rec, err := apiClient().FetchShortInterest(context.Background(), "GME")
	if err != nil {
		t.Fatalf("FetchShortInterest: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record from second endpoint")
	}
	if firstHits.Load() != 1 {
		t.Errorf("first endpoint hit %d times, want 1", firstHits.Load())
	}
}

func TestResponseShapes(t *testing.T) {
	shapes := map[string]string{
		"bare array":      fmt.Sprintf(`[%s]`, sampleAPIRecord),
		"data wrapper":    fmt.Sprintf(`{"data": [%s]}`, sampleAPIRecord),
		"records wrapper": fmt.Sprintf(`{"records": [%s]}`, sampleAPIRecord),
		"single object":   sampleAPIRecord,
	}

	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/oauth2/access_token" {
					fmt.Fprint(w, `{"access_token": "tok-1", "expires_in": 1800}`)
					return
				}
				fmt.Fprint(w, body)
			}))
			defer ts.Close()
			restore := overrideAPIEndpoints(ts.URL, "/data/short")
			defer restore()

			rec, err := apiClient().FetchShortInterest(context.Background(), "GME")
			if err != nil {
				t.Fatalf("FetchShortInterest: %v", err)
			}
			if rec == nil {
				t.Fatal("expected a record")
			}
			if rec.ShortInterestShares != 62500000 {
				t.Errorf("ShortInterestShares = %d", rec.ShortInterestShares)
			}
		})
	}
}

func TestSymbolNotFoundReturnsNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/access_token" {
			fmt.Fprint(w, `{"access_token": "tok-1", "expires_in": 1800}`)
			return
		}
		fmt.Fprint(w, `{"data": [{"symbolCode": "OTHER", "shortInterest": 5}]}`)
	}))
	defer ts.Close()
	restore := overrideAPIEndpoints(ts.URL, "/data/first", "/data/second")
	defer restore()

	rec, err := apiClient().FetchShortInterest(context.Background(), "GME")
	if err != nil {
		t.Fatalf("FetchShortInterest: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestAuthFailureIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/access_token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `[%s]`, sampleAPIRecord)
	}))
	defer ts.Close()
	restore := overrideAPIEndpoints(ts.URL, "/data/short")
	defer restore()

	_, err := apiClient().FetchShortInterest(context.Background(), "GME")
	if err == nil {
		t.Fatal("expected authentication error")
	}
}

func TestMalformedTokenResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer ts.Close()
	restore := overrideAPIEndpoints(ts.URL, "/data/short")
	defer restore()

	_, err := apiClient().FetchShortInterest(context.Background(), "GME")
	if err == nil {
		t.Fatal("expected error for token response without access_token")
	}
}

func TestFlexNumber(t *testing.T) {
	var rec struct {
		N flexNumber `json:"n"`
	}
	cases := []struct {
		body string
		want float64
	}{
		{`{"n": 42.5}`, 42.5},
		{`{"n": "1,234,567"}`, 1234567},
		{`{"n": " 12 "}`, 12},
		{`{"n": "n/a"}`, 0},
		{`{"n": null}`, 0},
		{`{"n": true}`, 0},
	}
	for _, tc := range cases {
		rec.N = -1
		if err := json.Unmarshal([]byte(tc.body), &rec); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.body, err)
		}
		if float64(rec.N) != tc.want {
			t.Errorf("flexNumber from %s = %v, want %v", tc.body, rec.N, tc.want)
		}
	}
}
