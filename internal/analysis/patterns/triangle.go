package patterns

import (
	"math"

	"github.com/rs/zerolog"

	"pattern-scanner/internal/analysis"
	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// TriangleKind is the shape of a triangle pattern.
type TriangleKind string

const (
	TriangleNone        TriangleKind = ""
	TriangleSymmetrical TriangleKind = "symmetrical"
	TriangleAscending   TriangleKind = "ascending"
	TriangleDescending  TriangleKind = "descending"
)

// ParseTriangleKind parses a kind name. An empty name matches any kind.
func ParseTriangleKind(s string) (TriangleKind, error) {
	switch k := TriangleKind(s); k {
	case TriangleNone, TriangleSymmetrical, TriangleAscending, TriangleDescending:
		return k, nil
	default:
		return TriangleNone, apperrors.NewValidationError("kind", s, "must be symmetrical, ascending or descending")
	}
}

// PatternName returns the pattern name reported for the kind.
func (k TriangleKind) PatternName() models.PatternName {
	switch k {
	case TriangleAscending:
		return models.PatternAscendingTriangle
	case TriangleDescending:
		return models.PatternDescendingTriangle
	default:
		return models.PatternSymmetricalTriangle
	}
}

// Direction returns the breakout bias of the kind.
func (k TriangleKind) Direction() analysis.PatternDirection {
	switch k {
	case TriangleAscending:
		return analysis.PatternBullish
	case TriangleDescending:
		return analysis.PatternBearish
	default:
		return analysis.PatternNeutral
	}
}

// TriangleConfig holds the triangle detector parameters.
type TriangleConfig struct {
	Backcandles int          // Candles before the target included in the fit
	MinPivots   int          // Minimum swing points per side
	MinR2       float64      // Minimum r² for both trendlines
	MinSlope    float64      // Slope magnitude counted as rising/falling
	FlatSlope   float64      // Slope magnitude counted as flat
	Kind        TriangleKind // Kind to report, TriangleNone for any
}

// DefaultTriangleConfig returns the reference triangle parameters.
func DefaultTriangleConfig() TriangleConfig {
	return TriangleConfig{
		Backcandles: 20,
		MinPivots:   3,
		MinR2:       0.9,
		MinSlope:    0.0001,
		FlatSlope:   0.00001,
	}
}

// TriangleResult is the outcome of a triangle classification.
type TriangleResult struct {
	Kind    TriangleKind `json:"kind"`
	Target  int          `json:"target"`
	Highs   []Point      `json:"highs,omitempty"`
	Lows    []Point      `json:"lows,omitempty"`
	MinLine TrendLine    `json:"min_line"`
	MaxLine TrendLine    `json:"max_line"`
}

// TriangleDetector fits lines through every swing point in the range
// [target-backcandles, target] and classifies their slopes.
type TriangleDetector struct {
	cfg    TriangleConfig
	logger zerolog.Logger
}

// NewTriangleDetector creates a triangle detector.
func NewTriangleDetector(cfg TriangleConfig, logger zerolog.Logger) (*TriangleDetector, error) {
	if err := apperrors.NonNegative("backcandles", cfg.Backcandles); err != nil {
		return nil, err
	}
	if cfg.MinPivots < 2 {
		return nil, apperrors.NewValidationError("min_pivots", cfg.MinPivots, "must be at least 2")
	}
	if _, err := ParseTriangleKind(string(cfg.Kind)); err != nil {
		return nil, err
	}
	return &TriangleDetector{cfg: cfg, logger: logger}, nil
}

func (d *TriangleDetector) Name() string {
	return string(d.Pattern())
}

// Pattern returns the pattern name a scan with this detector is recorded
// under. Detectors accepting any kind report PatternTriangle.
func (d *TriangleDetector) Pattern() models.PatternName {
	if d.cfg.Kind == TriangleNone {
		return models.PatternTriangle
	}
	return d.cfg.Kind.PatternName()
}

// FirstTarget returns the first candle index worth scanning.
func (d *TriangleDetector) FirstTarget() int {
	return d.cfg.Backcandles + 10
}

// Classify fits both trendlines at target and returns the triangle kind, or
// TriangleNone.
func (d *TriangleDetector) Classify(candles []models.Candle, ann Annotations, target int) (TriangleResult, error) {
	result := TriangleResult{Target: target}

	from := target - d.cfg.Backcandles
	if from < 0 {
		from = 0
	}
	to := target + 1
	if to > len(candles) {
		to = len(candles)
	}
	if to > len(ann) {
		to = len(ann)
	}

	for i := from; i < to; i++ {
		switch ann[i].Label {
		case PivotLow:
			result.Lows = append(result.Lows, Point{Index: i, Price: candles[i].Low})
		case PivotHigh:
			result.Highs = append(result.Highs, Point{Index: i, Price: candles[i].High})
		}
	}
	if len(result.Lows) < d.cfg.MinPivots || len(result.Highs) < d.cfg.MinPivots {
		return result, nil
	}

	minLine, err := FitTrendLine(result.Lows)
	if err != nil {
		return result, apperrors.NewPatternError(d.Name(), target, err)
	}
	maxLine, err := FitTrendLine(result.Highs)
	if err != nil {
		return result, apperrors.NewPatternError(d.Name(), target, err)
	}
	result.MinLine, result.MaxLine = minLine, maxLine

	if minLine.R2() < d.cfg.MinR2 || maxLine.R2() < d.cfg.MinR2 {
		return result, nil
	}

	lowRising := minLine.Slope >= d.cfg.MinSlope
	highFalling := maxLine.Slope <= -d.cfg.MinSlope
	switch {
	case lowRising && highFalling:
		result.Kind = TriangleSymmetrical
	case lowRising && math.Abs(maxLine.Slope) <= d.cfg.FlatSlope:
		result.Kind = TriangleAscending
	case highFalling && math.Abs(minLine.Slope) <= d.cfg.FlatSlope:
		result.Kind = TriangleDescending
	}

	return result, nil
}

// DetectAt implements TargetDetector.
func (d *TriangleDetector) DetectAt(candles []models.Candle, ann Annotations, target int) (*analysis.Pattern, error) {
	res, err := d.Classify(candles, ann, target)
	if err != nil {
		d.logger.Error().Err(err).Int("target", target).Msg("Triangle trendline fit failed")
		return nil, err
	}
	if res.Kind == TriangleNone || (d.cfg.Kind != TriangleNone && res.Kind != d.cfg.Kind) {
		return nil, nil
	}

	start := target - d.cfg.Backcandles
	if start < 0 {
		start = 0
	}
	return &analysis.Pattern{
		Name:       res.Kind.PatternName(),
		Direction:  res.Kind.Direction(),
		StartIndex: start,
		EndIndex:   target,
		Strength:   minFloat(res.MinLine.R2(), res.MaxLine.R2()),
		MinSlope:   res.MinLine.Slope,
		MinR:       res.MinLine.R,
		MaxSlope:   res.MaxLine.Slope,
		MaxR:       res.MaxLine.R,
	}, nil
}
