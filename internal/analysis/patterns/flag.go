package patterns

import (
	"github.com/rs/zerolog"

	"pattern-scanner/internal/analysis"
	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// flagPivots is the number of swing highs and swing lows a flag is built from.
const flagPivots = 3

// FlagConfig holds the flag detector parameters.
type FlagConfig struct {
	Backcandles  int     // Candles in the lookback range
	Window       int     // Most recent candles excluded before the target
	MinR2        float64 // Minimum r² for both trendlines
	MinLowSlope  float64 // Lows must rise at least this much per candle
	MaxHighSlope float64 // Highs must fall at least this much per candle
	PivotRight   int     // Right half-width used to annotate pivots, 0 if unknown
}

// DefaultFlagConfig returns the reference flag parameters.
func DefaultFlagConfig() FlagConfig {
	return FlagConfig{
		Backcandles:  35,
		Window:       3,
		MinR2:        0.9,
		MinLowSlope:  0.0001,
		MaxHighSlope: -0.0001,
		PivotRight:   3,
	}
}

// Validate checks the configuration.
func (c FlagConfig) Validate() error {
	if err := apperrors.NonNegative("backcandles", c.Backcandles); err != nil {
		return err
	}
	if err := apperrors.NonNegative("window", c.Window); err != nil {
		return err
	}
	return apperrors.NonNegative("pivot_right", c.PivotRight)
}

// FlagResult is the outcome of a flag detection at one target candle.
type FlagResult struct {
	Present bool      `json:"present"`
	Target  int       `json:"target"`
	Highs   []Point   `json:"highs,omitempty"`
	Lows    []Point   `json:"lows,omitempty"`
	MinLine TrendLine `json:"min_line"`
	MaxLine TrendLine `json:"max_line"`
}

// FlagOption configures a FlagDetector.
type FlagOption func(*FlagDetector)

// WithFlagLogger sets the detector logger.
func WithFlagLogger(logger zerolog.Logger) FlagOption {
	return func(d *FlagDetector) {
		d.logger = logger
	}
}

// WithFlagSink sets where diagnostics go when a caller asks for them.
func WithFlagSink(sink DiagnosticSink) FlagOption {
	return func(d *FlagDetector) {
		d.sink = sink
	}
}

// FlagDetector finds converging flags: a rising line through the last three
// swing lows and a falling line through the last three swing highs.
type FlagDetector struct {
	cfg    FlagConfig
	logger zerolog.Logger
	sink   DiagnosticSink
}

// NewFlagDetector creates a flag detector.
func NewFlagDetector(cfg FlagConfig, opts ...FlagOption) (*FlagDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &FlagDetector{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	// Pivots inside the lookback are confirmed by PivotRight later candles.
	if cfg.PivotRight > 0 && cfg.Window <= cfg.PivotRight {
		d.logger.Warn().
			Int("window", cfg.Window).
			Int("pivot_right", cfg.PivotRight).
			Msg("Flag window does not exceed pivot width, detections may use look-ahead data")
	}

	return d, nil
}

func (d *FlagDetector) Name() string {
	return string(models.PatternFlag)
}

// Config returns the detector configuration.
func (d *FlagDetector) Config() FlagConfig {
	return d.cfg
}

// LookbackRange returns the half-open candle range searched for target,
// clipped at zero.
func (d *FlagDetector) LookbackRange(target int) (from, to int) {
	from = target - d.cfg.Backcandles - d.cfg.Window
	to = target - d.cfg.Window
	if from < 0 {
		from = 0
	}
	return from, to
}

// Detect checks for a flag ending before target. Diagnostics are emitted
// only for positive results and only when emitDiagnostics is set.
func (d *FlagDetector) Detect(candles []models.Candle, ann Annotations, target int, emitDiagnostics bool) (FlagResult, error) {
	result := FlagResult{Target: target}

	from, to := d.LookbackRange(target)
	if to > len(candles) {
		to = len(candles)
	}
	if to > len(ann) {
		to = len(ann)
	}

	highs := lastPivots(candles, ann, from, to, PivotHigh, flagPivots)
	lows := lastPivots(candles, ann, from, to, PivotLow, flagPivots)
	if len(highs) < flagPivots || len(lows) < flagPivots {
		return result, nil
	}
	result.Highs, result.Lows = highs, lows

	if !alternates(lows, highs) && !alternates(highs, lows) {
		return result, nil
	}

	minLine, err := FitTrendLine(lows)
	if err != nil {
		return result, d.fail(target, err)
	}
	maxLine, err := FitTrendLine(highs)
	if err != nil {
		return result, d.fail(target, err)
	}
	result.MinLine, result.MaxLine = minLine, maxLine

	if minLine.R2() < d.cfg.MinR2 || maxLine.R2() < d.cfg.MinR2 {
		return result, nil
	}
	if minLine.Slope < d.cfg.MinLowSlope || maxLine.Slope > d.cfg.MaxHighSlope {
		return result, nil
	}

	result.Present = true
	d.logger.Debug().
		Int("target", target).
		Float64("min_slope", minLine.Slope).
		Float64("max_slope", maxLine.Slope).
		Msg("Flag detected")

	if emitDiagnostics && d.sink != nil {
		diag := newDiagnostic(models.PatternFlag, candles, ann, target, from, to, highs, lows, minLine, maxLine)
		if err := d.sink.Emit(diag); err != nil {
			d.logger.Warn().Err(err).Int("target", target).Msg("Failed to emit flag diagnostics")
		}
	}

	return result, nil
}

// DetectAt implements TargetDetector.
func (d *FlagDetector) DetectAt(candles []models.Candle, ann Annotations, target int) (*analysis.Pattern, error) {
	res, err := d.Detect(candles, ann, target, false)
	if err != nil || !res.Present {
		return nil, err
	}

	from, _ := d.LookbackRange(target)
	return &analysis.Pattern{
		Name:       models.PatternFlag,
		Direction:  analysis.PatternNeutral,
		StartIndex: from,
		EndIndex:   target,
		Strength:   minFloat(res.MinLine.R2(), res.MaxLine.R2()),
		MinSlope:   res.MinLine.Slope,
		MinR:       res.MinLine.R,
		MaxSlope:   res.MaxLine.Slope,
		MaxR:       res.MaxLine.R,
	}, nil
}

// fail reports a fit failure. Pivot indices are distinct by construction, so
// this only happens when the annotations do not belong to the candles.
func (d *FlagDetector) fail(target int, err error) error {
	err = apperrors.NewPatternError(d.Name(), target, err)
	d.logger.Error().Err(err).Int("target", target).Msg("Flag trendline fit failed")
	return err
}

// lastPivots returns up to n of the most recent candles in [from, to) carrying
// exactly label, in ascending index order.
func lastPivots(candles []models.Candle, ann Annotations, from, to int, label PivotLabel, n int) []Point {
	pts := make([]Point, 0, n)
	for i := to - 1; i >= from && len(pts) < n; i-- {
		if ann[i].Label != label {
			continue
		}
		price := candles[i].Low
		if label == PivotHigh {
			price = candles[i].High
		}
		pts = append(pts, Point{Index: i, Price: price})
	}

	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
	return pts
}

// alternates reports whether first[0] < second[0] < first[1] < second[1] < ...
// holds strictly across both sequences.
func alternates(first, second []Point) bool {
	if len(first) != len(second) {
		return false
	}
	for i := range first {
		if first[i].Index >= second[i].Index {
			return false
		}
		if i+1 < len(first) && second[i].Index >= first[i+1].Index {
			return false
		}
	}
	return true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
