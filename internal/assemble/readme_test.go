// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

func TestWriteReadme(t *testing.T) {
	filed := types.NewDate(2023, 11, 3)
	m := buildManifest(types.CompanyInfo{Ticker: "ACME", Name: "Acme Corp", CIK: testCIK},
		sampleSnapshot(), sampleShortRecord(),
		map[types.FilingCategory][]docRef{
			types.CategoryFinancials: {
				{filing: mkFiling("10-K", filed, "0000320193-23-000106", "a.htm"), rel: "filings/financials/20231103_a.htm"},
			},
			types.CategoryOwnership: {
				{filing: mkFiling("4", filed, "0000320193-23-000500", "form4.xml")},
			},
		},
		time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	m.Downloaded = 1
	m.Skipped = 1

	path := filepath.Join(t.TempDir(), "README.txt")
	require.NoError(t, WriteReadme(path, m))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, "Acme Corp (ACME)")
	assert.Contains(t, text, "Diligence package generated 2024-01-15 09:30 UTC")
	assert.Contains(t, text, "Registry identifier (CIK): "+testCIK)

	assert.Contains(t, text, "Current price        $100.00")
	assert.Contains(t, text, "20-day avg volume    54,338,000")
	assert.Contains(t, text, "52-week range        $64.00 - $128.00")
	assert.Contains(t, text, "Off 52-week high     21.9%")

	assert.Contains(t, text, "Short interest       62,500,000 shares")
	assert.Contains(t, text, "Record date          2023-10-31 (settles 2023-11-02)")

	assert.Contains(t, text, "FILINGS (1 downloaded, 1 skipped)")
	assert.Contains(t, text, "Financial Reports")
	assert.Contains(t, text, "10-K       2023-11-03  filings/financials/20231103_a.htm")
	assert.Contains(t, text, "4          2023-11-03  (not downloaded)")

	assert.Contains(t, text, "filings/governance/")
	assert.Contains(t, text, "proxy statements")
	assert.Contains(t, text, "SEC EDGAR (queried 2024-01-15 09:30 UTC)")
	assert.Contains(t, text, "published on a ~10 day delay")
	assert.Contains(t, text, "assembled automatically from public sources")
}

func TestWriteReadmeWithoutOptionalData(t *testing.T) {
	m := buildManifest(types.CompanyInfo{Ticker: "ACME", Name: "Acme Corp", CIK: testCIK},
		nil, nil, nil, time.Now())

	path := filepath.Join(t.TempDir(), "README.txt")
	require.NoError(t, WriteReadme(path, m))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	assert.NotContains(t, text, "MARKET DATA")
	assert.NotContains(t, text, "SHORT INTEREST")
	assert.NotContains(t, text, "market_data.json")
	assert.Contains(t, text, "manifest.json")
	assert.Contains(t, text, "FILINGS (0 downloaded, 0 skipped)")
}

func TestGroupThousands(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1,000"},
		{54338000, "54,338,000"},
		{62500000, "62,500,000"},
		{-1234567, "-1,234,567"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, groupThousands(tc.n), "%d", tc.n)
	}
}
