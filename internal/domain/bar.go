package domain

import "time"

// Bar is a single OHLCV candle as fetched from a market-data provider.
type Bar struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Series extracts a single field across a slice of bars as a float64 column,
// the unit the expression DSL and cross-validation machinery operate on.
func Series(bars []Bar, field string) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		switch field {
		case "open":
			out[i] = b.Open
		case "high":
			out[i] = b.High
		case "low":
			out[i] = b.Low
		case "close":
			out[i] = b.Close
		case "volume":
			out[i] = b.Volume
		}
	}
	return out
}
