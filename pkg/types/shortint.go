// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ShortInterestRecord is one short-interest observation for a symbol.
// Fields the source cannot supply are 0 rather than absent; the legacy
// flat-file path fills only the share counts and ratio.
type ShortInterestRecord struct {
	// Symbol is the ticker the record describes.
	Symbol string `json:"symbol" yaml:"symbol"`

	// ShortInterestShares is the open short position in shares.
	ShortInterestShares int64 `json:"short_interest_shares" yaml:"short_interest_shares"`

	// ShortInterestRatio is short volume relative to total volume, or the
	// provider's reported ratio where available.
	ShortInterestRatio float64 `json:"short_interest_ratio" yaml:"short_interest_ratio"`

	// PercentOfFloat is the short position as a percentage of floated shares.
	PercentOfFloat float64 `json:"percent_of_float" yaml:"percent_of_float"`

	// DaysToCover is the short position divided by average daily volume.
	DaysToCover float64 `json:"days_to_cover" yaml:"days_to_cover"`

	// PreviousShortInterestShares is the prior period's short position.
	PreviousShortInterestShares int64 `json:"previous_short_interest_shares" yaml:"previous_short_interest_shares"`

	// ChangePercent is the percentage change from the prior period's
	// position, 0 when the prior period is unknown or zero.
	ChangePercent float64 `json:"change_percent" yaml:"change_percent"`

	// RecordDate is the observation's record date.
	RecordDate Date `json:"record_date" yaml:"record_date"`

	// SettlementDate is the settlement date, defaulted to RecordDate plus
	// two calendar days (T+2) when the source omits it.
	SettlementDate Date `json:"settlement_date" yaml:"settlement_date"`
}
