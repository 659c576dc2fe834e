package patterns

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	apperrors "pattern-scanner/internal/errors"
)

func newTestFlagDetector(t *testing.T, cfg FlagConfig, opts ...FlagOption) *FlagDetector {
	t.Helper()
	d, err := NewFlagDetector(cfg, opts...)
	if err != nil {
		t.Fatalf("NewFlagDetector: %v", err)
	}
	return d
}

func TestNewFlagDetector_RejectsNegativeParameters(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*FlagConfig)
	}{
		{"backcandles", func(c *FlagConfig) { c.Backcandles = -1 }},
		{"window", func(c *FlagConfig) { c.Window = -3 }},
		{"pivot right", func(c *FlagConfig) { c.PivotRight = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFlagConfig()
			tt.mod(&cfg)
			if _, err := NewFlagDetector(cfg); !errors.Is(err, apperrors.ErrInvalidParameter) {
				t.Errorf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestNewFlagDetector_WarnsOnLookAhead(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	cfg := DefaultFlagConfig() // window 3, pivot right 3
	newTestFlagDetector(t, cfg, WithFlagLogger(logger))
	if !strings.Contains(buf.String(), "look-ahead") {
		t.Errorf("expected look-ahead warning, got %q", buf.String())
	}

	buf.Reset()
	cfg.Window = 4
	newTestFlagDetector(t, cfg, WithFlagLogger(logger))
	if buf.Len() != 0 {
		t.Errorf("unexpected log output for window > pivot width: %q", buf.String())
	}
}

// End-to-end: a wedge annotated with 3/3 pivots is found at target 28.
func TestFlagDetector_WedgeScenario(t *testing.T) {
	candles := wedgeSeries()
	ann := DefaultPivotDetector().Annotate(candles)

	d := newTestFlagDetector(t, DefaultFlagConfig())

	res, err := d.Detect(candles, ann, 28, false)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !res.Present {
		t.Fatalf("expected flag at 28, got %+v", res)
	}
	if res.MinLine.Slope <= 0 {
		t.Errorf("min slope = %v, want > 0", res.MinLine.Slope)
	}
	if res.MaxLine.Slope >= 0 {
		t.Errorf("max slope = %v, want < 0", res.MaxLine.Slope)
	}

	wantLows := []int{10, 16, 21}
	wantHighs := []int{13, 19, 24}
	for i := range wantLows {
		if res.Lows[i].Index != wantLows[i] {
			t.Errorf("lows[%d] = %d, want %d", i, res.Lows[i].Index, wantLows[i])
		}
		if res.Highs[i].Index != wantHighs[i] {
			t.Errorf("highs[%d] = %d, want %d", i, res.Highs[i].Index, wantHighs[i])
		}
	}

	// One candle earlier the swing high at 24 falls inside the excluded window.
	res, err = d.Detect(candles, ann, 27, false)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if res.Present {
		t.Errorf("unexpected flag at 27")
	}
}

func TestFlagDetector_InsufficientData(t *testing.T) {
	candles := wedgeSeries()[:10]
	ann := DefaultPivotDetector().Annotate(candles)
	d := newTestFlagDetector(t, DefaultFlagConfig())

	for target := -5; target < 60; target++ {
		res, err := d.Detect(candles, ann, target, true)
		if err != nil {
			t.Fatalf("Detect(%d): %v", target, err)
		}
		if res.Present {
			t.Fatalf("unexpected flag at %d in a 10 candle series", target)
		}
	}
}

func TestFlagDetector_AlternationRejected(t *testing.T) {
	tests := []struct {
		name    string
		lows    []Point
		highs   []Point
		present bool
	}{
		{
			name:    "low first alternation",
			lows:    []Point{{10, 1.0}, {14, 1.2}, {18, 1.4}},
			highs:   []Point{{12, 3.0}, {16, 2.8}, {20, 2.6}},
			present: true,
		},
		{
			name:    "high first alternation",
			lows:    []Point{{12, 1.0}, {16, 1.2}, {20, 1.4}},
			highs:   []Point{{10, 3.0}, {14, 2.8}, {18, 2.6}},
			present: true,
		},
		{
			name:    "two lows then three highs then a low",
			lows:    []Point{{10, 1.0}, {12, 1.2}, {20, 1.4}},
			highs:   []Point{{14, 3.0}, {16, 2.8}, {18, 2.6}},
			present: false,
		},
		{
			name:    "partial interleave",
			lows:    []Point{{10, 1.0}, {14, 1.2}, {16, 1.4}},
			highs:   []Point{{12, 3.0}, {18, 2.8}, {20, 2.6}},
			present: false,
		},
	}

	d := newTestFlagDetector(t, DefaultFlagConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := flatCandles(40)
			ann := placePivots(candles, tt.lows, tt.highs)

			res, err := d.Detect(candles, ann, 30, false)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if res.Present != tt.present {
				t.Errorf("Present = %v, want %v (min %+v, max %+v)", res.Present, tt.present, res.MinLine, res.MaxLine)
			}
		})
	}
}

func TestFlagDetector_UsesMostRecentThree(t *testing.T) {
	candles := flatCandles(40)
	// An older, badly placed low pair must be ignored.
	ann := placePivots(candles,
		[]Point{{2, 5.0}, {4, 0.1}, {10, 1.0}, {14, 1.2}, {18, 1.4}},
		[]Point{{12, 3.0}, {16, 2.8}, {20, 2.6}},
	)

	d := newTestFlagDetector(t, DefaultFlagConfig())
	res, err := d.Detect(candles, ann, 30, false)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !res.Present {
		t.Fatalf("expected flag using lows 10, 14, 18")
	}
	if res.Lows[0].Index != 10 {
		t.Errorf("lows[0] = %d, want 10", res.Lows[0].Index)
	}
}

func TestFlagDetector_BothLabelIgnored(t *testing.T) {
	candles := flatCandles(40)
	ann := placePivots(candles,
		[]Point{{10, 1.0}, {14, 1.2}, {18, 1.4}},
		[]Point{{12, 3.0}, {16, 2.8}, {20, 2.6}},
	)
	ann[18].Label = PivotBoth

	d := newTestFlagDetector(t, DefaultFlagConfig())
	res, err := d.Detect(candles, ann, 30, false)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if res.Present {
		t.Errorf("BOTH bar must not count as a swing low")
	}
}

func TestFlagDetector_SlopeThresholds(t *testing.T) {
	// Lows at 2, 6, 10 around 10, 11, 12 give slope 0.25 and r = 1 exactly.
	lows := []Point{{2, 10}, {6, 11}, {10, 12}}
	// Highs at 4, 8, 12 around 20, 19, 18 give slope -0.25 and r = -1 exactly.
	highs := []Point{{4, 20}, {8, 19}, {12, 18}}

	tests := []struct {
		name    string
		mod     func(*FlagConfig)
		present bool
	}{
		{"default thresholds", func(c *FlagConfig) {}, true},
		{"low slope at threshold", func(c *FlagConfig) { c.MinLowSlope = 0.25 }, true},
		{"low slope below threshold", func(c *FlagConfig) { c.MinLowSlope = 0.2500001 }, false},
		{"high slope at threshold", func(c *FlagConfig) { c.MaxHighSlope = -0.25 }, true},
		{"high slope above threshold", func(c *FlagConfig) { c.MaxHighSlope = -0.2500001 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := flatCandles(30)
			ann := placePivots(candles, lows, highs)

			cfg := DefaultFlagConfig()
			cfg.Backcandles, cfg.Window = 20, 4
			tt.mod(&cfg)
			d := newTestFlagDetector(t, cfg)

			res, err := d.Detect(candles, ann, 20, false)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if res.Present != tt.present {
				t.Errorf("Present = %v, want %v (min %+v, max %+v)", res.Present, tt.present, res.MinLine, res.MaxLine)
			}
		})
	}
}

func TestFlagDetector_FitThresholds(t *testing.T) {
	highs := []Point{{4, 20}, {8, 19}, {12, 18}}

	tests := []struct {
		name    string
		lows    []Point
		minR2   float64
		present bool
	}{
		// r = 0.5 exactly, r² = 0.25.
		{"r2 at threshold", []Point{{2, 10}, {6, 12}, {10, 11}}, 0.25, true},
		{"r2 below threshold", []Point{{2, 10}, {6, 12}, {10, 11}}, 0.2500001, false},
		{"collinear lows pass default", []Point{{2, 10}, {6, 10.0008}, {10, 10.0016}}, 0.9, true},
		{"perturbed low fails default", []Point{{2, 10}, {6, 10.0024}, {10, 10.0016}}, 0.9, false},
		{"slope under 0.0001 fails", []Point{{2, 10}, {6, 10.0002}, {10, 10.0004}}, 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := flatCandles(30)
			ann := placePivots(candles, tt.lows, highs)

			cfg := DefaultFlagConfig()
			cfg.Backcandles, cfg.Window, cfg.MinR2 = 20, 4, tt.minR2
			d := newTestFlagDetector(t, cfg)

			res, err := d.Detect(candles, ann, 20, false)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if res.Present != tt.present {
				t.Errorf("Present = %v, want %v (min r2 %v slope %v)", res.Present, tt.present, res.MinLine.R2(), res.MinLine.Slope)
			}
		})
	}
}

func TestFlagDetector_DefaultSlopeBoundaryRounding(t *testing.T) {
	// Collinear lows rising exactly 0.0001 per bar fit to a slope a hair
	// below 0.0001, so the default minimum low slope rejects them.
	lows := []Point{{2, 10}, {6, 10.0004}, {10, 10.0008}}
	highs := []Point{{4, 20}, {8, 19}, {12, 18}}

	candles := flatCandles(30)
	ann := placePivots(candles, lows, highs)

	cfg := DefaultFlagConfig()
	cfg.Backcandles, cfg.Window = 20, 4
	d := newTestFlagDetector(t, cfg)

	res, err := d.Detect(candles, ann, 20, false)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if res.MinLine.Slope >= 0.0001 || 0.0001-res.MinLine.Slope > 1e-12 {
		t.Fatalf("slope = %v, want just under 0.0001", res.MinLine.Slope)
	}
	if res.MinLine.R2() < 0.9 {
		t.Fatalf("r2 = %v, want a near perfect fit", res.MinLine.R2())
	}
	if res.Present {
		t.Errorf("Present = true, want false at the rounded boundary")
	}

	cfg.MinLowSlope = 0.0001 - 1e-12
	d = newTestFlagDetector(t, cfg)
	res, err = d.Detect(candles, ann, 20, false)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !res.Present {
		t.Errorf("Present = false, want true once the threshold absorbs the rounding")
	}
}

func TestFlagDetector_Diagnostics(t *testing.T) {
	candles := wedgeSeries()
	ann := DefaultPivotDetector().Annotate(candles)

	var got []Diagnostic
	sink := DiagnosticSinkFunc(func(d Diagnostic) error {
		got = append(got, d)
		return nil
	})
	d := newTestFlagDetector(t, DefaultFlagConfig(), WithFlagSink(sink))

	// No diagnostics unless asked for.
	if _, err := d.Detect(candles, ann, 28, false); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("diagnostics emitted without request")
	}

	// No diagnostics for negative results.
	if _, err := d.Detect(candles, ann, 27, true); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("diagnostics emitted for a negative result")
	}

	if _, err := d.Detect(candles, ann, 28, true); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(got))
	}

	diag := got[0]
	if diag.From != 0 || diag.To != 25 {
		t.Errorf("range = [%d, %d), want [0, 25)", diag.From, diag.To)
	}
	if len(diag.Candles) != 25 || len(diag.Annotations) != 25 {
		t.Errorf("got %d candles / %d annotations, want 25", len(diag.Candles), len(diag.Annotations))
	}
	if len(diag.Highs) != 3 || len(diag.Lows) != 3 || len(diag.MinFit) != 3 || len(diag.MaxFit) != 3 {
		t.Errorf("unexpected evidence sizes: %+v", diag)
	}
	if diag.MinFit[0].Index != 10 || diag.MinFit[0].Price != diag.MinLine.At(10) {
		t.Errorf("min fit not evaluated at pivot index: %+v", diag.MinFit[0])
	}
}

func TestFlagDetector_SinkErrorIsNotFatal(t *testing.T) {
	candles := wedgeSeries()
	ann := DefaultPivotDetector().Annotate(candles)

	sink := DiagnosticSinkFunc(func(Diagnostic) error { return errors.New("renderer down") })
	d := newTestFlagDetector(t, DefaultFlagConfig(), WithFlagSink(sink))

	res, err := d.Detect(candles, ann, 28, true)
	if err != nil || !res.Present {
		t.Errorf("Detect = %+v, %v; want present without error", res, err)
	}
}

func TestFlagDetector_DetectAt(t *testing.T) {
	candles := wedgeSeries()
	ann := DefaultPivotDetector().Annotate(candles)
	d := newTestFlagDetector(t, DefaultFlagConfig())

	p, err := d.DetectAt(candles, ann, 28)
	if err != nil || p == nil {
		t.Fatalf("DetectAt = %v, %v", p, err)
	}
	if p.EndIndex != 28 || p.StartIndex != 0 {
		t.Errorf("pattern range = [%d, %d], want [0, 28]", p.StartIndex, p.EndIndex)
	}
	if p.Strength < 0.9 {
		t.Errorf("Strength = %v, want >= 0.9", p.Strength)
	}

	if p, err := d.DetectAt(candles, ann, 20); err != nil || p != nil {
		t.Errorf("DetectAt(20) = %v, %v; want nil", p, err)
	}
}
