// Package analysis provides the shared types of chart pattern detection.
package analysis

import (
	"pattern-scanner/internal/models"
)

// Pattern represents a chart pattern found at a target candle.
type Pattern struct {
	Name       models.PatternName `json:"name"`
	Direction  PatternDirection   `json:"direction"`
	StartIndex int                `json:"start_index"`
	EndIndex   int                `json:"end_index"` // the target candle
	Strength   float64            `json:"strength"`  // weaker of the two trendline r² values
	MinSlope   float64            `json:"min_slope"`
	MinR       float64            `json:"min_r"`
	MaxSlope   float64            `json:"max_slope"`
	MaxR       float64            `json:"max_r"`
}

// PatternDirection represents the expected breakout direction of a pattern.
type PatternDirection string

const (
	PatternBullish PatternDirection = "bullish"
	PatternBearish PatternDirection = "bearish"
	PatternNeutral PatternDirection = "neutral"
)

// Targets returns the EndIndex of each pattern.
func Targets(patterns []Pattern) []int {
	out := make([]int, len(patterns))
	for i, p := range patterns {
		out[i] = p.EndIndex
	}
	return out
}
