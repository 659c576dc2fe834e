package models

import "time"

// PatternName identifies a detected chart pattern.
type PatternName string

const (
	PatternFlag                PatternName = "FLAG"
	PatternTriangle            PatternName = "TRIANGLE" // any triangle kind
	PatternSymmetricalTriangle PatternName = "SYMMETRICAL_TRIANGLE"
	PatternAscendingTriangle   PatternName = "ASCENDING_TRIANGLE"
	PatternDescendingTriangle  PatternName = "DESCENDING_TRIANGLE"
)

// ScanRun represents one scanner pass over a series.
type ScanRun struct {
	ID          string
	Symbol      string
	Timeframe   string
	Pattern     PatternName
	Backcandles int
	Window      int
	Candles     int
	Hits        int
	StartedAt   time.Time
	Duration    time.Duration
}

// Detection represents a pattern found at a target candle.
type Detection struct {
	ID          int64
	RunID       string
	Symbol      string
	Timeframe   string
	Pattern     PatternName
	TargetIndex int
	Timestamp   time.Time // timestamp of the target candle
	MinSlope    float64
	MinR        float64
	MaxSlope    float64
	MaxR        float64
	CreatedAt   time.Time
}
