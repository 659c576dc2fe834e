package patterns

import (
	"errors"
	"testing"

	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

func TestNewPivotDetector_RejectsNegativeWidths(t *testing.T) {
	for _, tc := range []struct{ left, right int }{{-1, 3}, {3, -1}} {
		if _, err := NewPivotDetector(tc.left, tc.right); !errors.Is(err, apperrors.ErrInvalidParameter) {
			t.Errorf("NewPivotDetector(%d, %d) err = %v, want ErrInvalidParameter", tc.left, tc.right, err)
		}
	}
}

func TestPivotDetector_ClassifyWedge(t *testing.T) {
	candles := wedgeSeries()
	d := DefaultPivotDetector()

	want := map[int]PivotLabel{
		10: PivotLow,
		13: PivotHigh,
		16: PivotLow,
		19: PivotHigh,
		21: PivotLow,
		24: PivotHigh,
		28: PivotLow,
	}

	for i := range candles {
		got := d.Classify(candles, i)
		exp, ok := want[i]
		if !ok {
			exp = PivotNone
		}
		if got != exp {
			t.Errorf("Classify(%d) = %s, want %s", i, got, exp)
		}
	}
}

func TestPivotDetector_Boundaries(t *testing.T) {
	candles := wedgeSeries()
	d, err := NewPivotDetector(3, 3)
	if err != nil {
		t.Fatal(err)
	}

	for _, i := range []int{-1, 0, 1, 2, 47, 48, 49, 50} {
		if got := d.Classify(candles, i); got != PivotNone {
			t.Errorf("Classify(%d) = %s, want NONE near the boundary", i, got)
		}
	}
}

func TestPivotDetector_ZeroWidthIsBoth(t *testing.T) {
	candles := wedgeSeries()
	d, err := NewPivotDetector(0, 0)
	if err != nil {
		t.Fatal(err)
	}

	ann := d.Annotate(candles)
	for i, a := range ann {
		if a.Label != PivotBoth {
			t.Fatalf("bar %d labeled %s, want BOTH", i, a.Label)
		}
		if a.HasMarker {
			t.Fatalf("bar %d has a marker, BOTH must not", i)
		}
	}
}

func TestPivotDetector_TiesDoNotDisqualify(t *testing.T) {
	candles := flatCandles(7)
	d := DefaultPivotDetector()

	// Every bar in the window has the same high and low.
	if got := d.Classify(candles, 3); got != PivotBoth {
		t.Errorf("Classify on flat window = %s, want BOTH", got)
	}

	// A lower low elsewhere removes the low side only.
	candles[5].Low = 0.5
	if got := d.Classify(candles, 3); got != PivotHigh {
		t.Errorf("Classify = %s, want SWING_HIGH", got)
	}

	// A higher high removes the high side too.
	candles[1].High = 3
	if got := d.Classify(candles, 3); got != PivotNone {
		t.Errorf("Classify = %s, want NONE", got)
	}
}

func TestPivotDetector_AnnotateMarkers(t *testing.T) {
	candles := wedgeSeries()
	ann := DefaultPivotDetector().Annotate(candles)

	if len(ann) != len(candles) {
		t.Fatalf("len(ann) = %d, want %d", len(ann), len(candles))
	}

	tests := []struct {
		idx    int
		label  PivotLabel
		marker float64
	}{
		{10, PivotLow, 99.5 - MarkerOffset},
		{13, PivotHigh, 110.5 + MarkerOffset},
		{24, PivotHigh, 108.5 + MarkerOffset},
	}
	for _, tt := range tests {
		a := ann[tt.idx]
		if a.Label != tt.label || !a.HasMarker || a.Marker != tt.marker {
			t.Errorf("ann[%d] = %+v, want %s with marker %v", tt.idx, a, tt.label, tt.marker)
		}
	}

	if ann[5].HasMarker {
		t.Errorf("unlabeled bar carries a marker: %+v", ann[5])
	}
	if got := ann.Count(PivotLow); got != 4 {
		t.Errorf("Count(SWING_LOW) = %d, want 4", got)
	}
	if got := ann.Label(100); got != PivotNone {
		t.Errorf("Label out of range = %s, want NONE", got)
	}
}

func TestPivotDetector_AnnotateDoesNotMutate(t *testing.T) {
	candles := wedgeSeries()
	before := make([]models.Candle, len(candles))
	copy(before, candles)

	DefaultPivotDetector().Annotate(candles)

	for i := range candles {
		if candles[i] != before[i] {
			t.Fatalf("candle %d mutated: %+v -> %+v", i, before[i], candles[i])
		}
	}
}
