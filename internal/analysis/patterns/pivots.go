// Package patterns provides pivot annotation and chart pattern detection.
package patterns

import (
	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// MarkerOffset separates a pivot marker from its candle.
const MarkerOffset = 1e-3

// PivotLabel classifies a candle against its neighborhood.
type PivotLabel string

const (
	PivotNone PivotLabel = "NONE"
	PivotLow  PivotLabel = "SWING_LOW"
	PivotHigh PivotLabel = "SWING_HIGH"
	PivotBoth PivotLabel = "BOTH"
)

// PivotAnnotation is the derived pivot data for one candle.
type PivotAnnotation struct {
	Label     PivotLabel `json:"label"`
	Marker    float64    `json:"marker,omitempty"`
	HasMarker bool       `json:"has_marker"`
}

// Annotations holds one PivotAnnotation per candle, indexed like the candles.
type Annotations []PivotAnnotation

// Label returns the label at i, or PivotNone when i is out of range.
func (a Annotations) Label(i int) PivotLabel {
	if i < 0 || i >= len(a) {
		return PivotNone
	}
	return a[i].Label
}

// Count returns the number of annotations carrying the given label.
func (a Annotations) Count(label PivotLabel) int {
	n := 0
	for _, p := range a {
		if p.Label == label {
			n++
		}
	}
	return n
}

// PivotDetector classifies candles as swing lows/highs over the closed
// window [i-left, i+right].
type PivotDetector struct {
	left  int
	right int
}

// NewPivotDetector creates a pivot detector with the given window half-widths.
func NewPivotDetector(left, right int) (*PivotDetector, error) {
	if err := apperrors.NonNegative("left", left); err != nil {
		return nil, err
	}
	if err := apperrors.NonNegative("right", right); err != nil {
		return nil, err
	}
	return &PivotDetector{left: left, right: right}, nil
}

// DefaultPivotDetector returns a detector using three bars on each side.
func DefaultPivotDetector() *PivotDetector {
	return &PivotDetector{left: 3, right: 3}
}

func (d *PivotDetector) Name() string {
	return "PivotDetector"
}

// Left returns the number of bars examined before the candidate.
func (d *PivotDetector) Left() int { return d.left }

// Right returns the number of bars examined after the candidate.
func (d *PivotDetector) Right() int { return d.right }

// Classify labels the candle at i. Candles without a full window on both
// sides are PivotNone.
func (d *PivotDetector) Classify(candles []models.Candle, i int) PivotLabel {
	if i-d.left < 0 || i+d.right >= len(candles) {
		return PivotNone
	}

	isLow, isHigh := true, true
	for j := i - d.left; j <= i+d.right; j++ {
		if candles[j].Low < candles[i].Low {
			isLow = false
		}
		if candles[j].High > candles[i].High {
			isHigh = false
		}
		if !isLow && !isHigh {
			return PivotNone
		}
	}

	switch {
	case isLow && isHigh:
		return PivotBoth
	case isLow:
		return PivotLow
	default:
		return PivotHigh
	}
}

// Annotate classifies every candle and attaches a marker price to single-sided
// pivots. PivotBoth candles get no marker.
func (d *PivotDetector) Annotate(candles []models.Candle) Annotations {
	out := make(Annotations, len(candles))
	for i := range candles {
		label := d.Classify(candles, i)
		out[i] = PivotAnnotation{Label: label}

		switch label {
		case PivotLow:
			out[i].Marker = candles[i].Low - MarkerOffset
			out[i].HasMarker = true
		case PivotHigh:
			out[i].Marker = candles[i].High + MarkerOffset
			out[i].HasMarker = true
		}
	}
	return out
}
