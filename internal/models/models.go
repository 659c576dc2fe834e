// Package models provides domain models for the pattern scanner.
package models

import (
	"time"
)

// Candle represents OHLCV data for one time interval.
// Its position in a slice is its identity; candles are never reordered.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Series is an ordered, densely indexed run of candles for one instrument.
type Series struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"candles"`
}

// Len returns the number of candles in the series.
func (s Series) Len() int {
	return len(s.Candles)
}

// Window returns the candles in [from, to) clipped to the series bounds.
func (s Series) Window(from, to int) []Candle {
	return ClipWindow(s.Candles, from, to)
}

// ClipWindow returns candles[from:to] with both bounds clipped to [0, len].
// An empty slice is returned when the clipped range is empty.
func ClipWindow(candles []Candle, from, to int) []Candle {
	if from < 0 {
		from = 0
	}
	if to > len(candles) {
		to = len(candles)
	}
	if from >= to {
		return nil
	}
	return candles[from:to]
}
