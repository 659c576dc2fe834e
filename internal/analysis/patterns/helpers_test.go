package patterns

import (
	"time"

	"pattern-scanner/internal/models"
)

// anchor is a (index, mid price) turning point of a zigzag series.
type anchor struct {
	idx int
	mid float64
}

// zigzag builds n candles whose mid price is linearly interpolated between
// anchors. Segments are strictly monotone, so the only extrema are the
// anchors themselves. High and low sit half a point around the mid.
func zigzag(n int, anchors []anchor) []models.Candle {
	t0 := time.Date(2023, 7, 3, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		mid := interpolate(anchors, i)
		candles[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      mid,
			High:      mid + 0.5,
			Low:       mid - 0.5,
			Close:     mid,
			Volume:    1000,
		}
	}
	return candles
}

func interpolate(anchors []anchor, i int) float64 {
	if i <= anchors[0].idx {
		return anchors[0].mid
	}
	for k := 1; k < len(anchors); k++ {
		a, b := anchors[k-1], anchors[k]
		if i <= b.idx {
			frac := float64(i-a.idx) / float64(b.idx-a.idx)
			return a.mid + frac*(b.mid-a.mid)
		}
	}
	return anchors[len(anchors)-1].mid
}

// wedgeSeries is a 50 candle series with swing lows at 10, 16, 21 rising,
// swing highs at 13, 19, 24 falling, and one more swing low at 28.
func wedgeSeries() []models.Candle {
	return zigzag(50, []anchor{
		{0, 106},
		{10, 100},
		{13, 110},
		{16, 101},
		{19, 109},
		{21, 102},
		{24, 108},
		{28, 104},
		{49, 115},
	})
}

// flatCandles returns n candles with high 2 and low 1 and no volume gaps.
func flatCandles(n int) []models.Candle {
	t0 := time.Date(2023, 7, 3, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      1.5,
			High:      2,
			Low:       1,
			Close:     1.5,
			Volume:    1,
		}
	}
	return candles
}

// placePivots labels the given indices and sets their prices, leaving every
// other candle unlabeled.
func placePivots(candles []models.Candle, lows, highs []Point) Annotations {
	ann := make(Annotations, len(candles))
	for i := range ann {
		ann[i].Label = PivotNone
	}
	for _, p := range lows {
		candles[p.Index].Low = p.Price
		ann[p.Index] = PivotAnnotation{Label: PivotLow, Marker: p.Price - MarkerOffset, HasMarker: true}
	}
	for _, p := range highs {
		candles[p.Index].High = p.Price
		ann[p.Index] = PivotAnnotation{Label: PivotHigh, Marker: p.Price + MarkerOffset, HasMarker: true}
	}
	return ann
}
