package patterns

import (
	"pattern-scanner/internal/models"
)

// Diagnostic is the evidence behind a positive detection, for visual
// inspection by an external renderer.
type Diagnostic struct {
	Pattern     models.PatternName `json:"pattern"`
	Target      int                `json:"target"`
	From        int                `json:"from"` // first lookback index, inclusive
	To          int                `json:"to"`   // last lookback index, exclusive
	Candles     []models.Candle    `json:"candles"`
	Annotations Annotations        `json:"annotations"`
	Highs       []Point            `json:"highs"`
	Lows        []Point            `json:"lows"`
	MinLine     TrendLine          `json:"min_line"`
	MaxLine     TrendLine          `json:"max_line"`
	MinFit      []Point            `json:"min_fit"` // MinLine evaluated at the low indices
	MaxFit      []Point            `json:"max_fit"` // MaxLine evaluated at the high indices
}

// DiagnosticSink receives diagnostics. Implementations live outside the
// detection code.
type DiagnosticSink interface {
	Emit(d Diagnostic) error
}

// DiagnosticSinkFunc adapts a function to a DiagnosticSink.
type DiagnosticSinkFunc func(d Diagnostic) error

// Emit calls f(d).
func (f DiagnosticSinkFunc) Emit(d Diagnostic) error {
	return f(d)
}

func fitPoints(line TrendLine, pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{Index: p.Index, Price: line.At(float64(p.Index))}
	}
	return out
}

func newDiagnostic(name models.PatternName, candles []models.Candle, ann Annotations, target, from, to int, highs, lows []Point, minLine, maxLine TrendLine) Diagnostic {
	if from < 0 {
		from = 0
	}
	if to > len(candles) {
		to = len(candles)
	}
	d := Diagnostic{
		Pattern: name,
		Target:  target,
		From:    from,
		To:      to,
		Candles: models.ClipWindow(candles, from, to),
		Highs:   highs,
		Lows:    lows,
		MinLine: minLine,
		MaxLine: maxLine,
		MinFit:  fitPoints(minLine, lows),
		MaxFit:  fitPoints(maxLine, highs),
	}
	if from < to && to <= len(ann) {
		d.Annotations = ann[from:to]
	}
	return d
}
