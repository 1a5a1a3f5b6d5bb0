// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// MarketSnapshot summarizes current market data for one symbol, derived
// from independent quote, moving-average, and daily-series fetches. Numeric
// fields default to 0 (never NaN) when the source data is insufficient.
type MarketSnapshot struct {
	// Symbol is the ticker the snapshot describes.
	Symbol string `json:"symbol" yaml:"symbol"`

	// PreviousClose is the prior session's closing price.
	PreviousClose float64 `json:"previous_close" yaml:"previous_close"`

	// CurrentPrice is the latest traded price, when the provider supplies one.
	CurrentPrice float64 `json:"current_price" yaml:"current_price"`

	// AverageVolume20d is the mean daily volume over the 20 most recent
	// sessions, truncated to a whole number of shares.
	AverageVolume20d int64 `json:"average_volume_20d" yaml:"average_volume_20d"`

	// MovingAverage20 is the 20-day simple moving average of the close.
	MovingAverage20 float64 `json:"moving_average_20" yaml:"moving_average_20"`

	// MovingAverage50 is the 50-day simple moving average of the close.
	MovingAverage50 float64 `json:"moving_average_50" yaml:"moving_average_50"`

	// MovingAverage200 is the 200-day simple moving average of the close.
	MovingAverage200 float64 `json:"moving_average_200" yaml:"moving_average_200"`

	// High52w is the highest intraday high over the trailing year.
	High52w float64 `json:"high_52w" yaml:"high_52w"`

	// Low52w is the lowest intraday low over the trailing year.
	Low52w float64 `json:"low_52w" yaml:"low_52w"`

	// AsOf is when the snapshot was assembled.
	AsOf time.Time `json:"as_of" yaml:"as_of"`
}
