package patterns

import (
	"math"

	apperrors "pattern-scanner/internal/errors"
)

// Point is a pivot position and its price.
type Point struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
}

// TrendLine is a least-squares line of price on candle index.
type TrendLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R         float64 `json:"r"` // Pearson correlation, not r²
}

// R2 returns the coefficient of determination of the fit.
func (l TrendLine) R2() float64 {
	return l.R * l.R
}

// At evaluates the line at x.
func (l TrendLine) At(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// FitTrendLine fits an ordinary least-squares line through the points.
// At least two distinct indices are required.
func FitTrendLine(points []Point) (TrendLine, error) {
	n := float64(len(points))
	if len(points) < 2 {
		return TrendLine{}, apperrors.NewDegenerateInputError(len(points), distinctIndices(points))
	}

	var meanX, meanY float64
	for _, p := range points {
		meanX += float64(p.Index)
		meanY += p.Price
	}
	meanX /= n
	meanY /= n

	var sxx, syy, sxy float64
	for _, p := range points {
		dx := float64(p.Index) - meanX
		dy := p.Price - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	if sxx == 0 {
		return TrendLine{}, apperrors.NewDegenerateInputError(len(points), distinctIndices(points))
	}

	slope := sxy / sxx
	line := TrendLine{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
	}

	// Flat prices have no defined correlation; report zero.
	if den := math.Sqrt(sxx * syy); den != 0 {
		line.R = math.Max(-1, math.Min(1, sxy/den))
	}

	return line, nil
}

func distinctIndices(points []Point) int {
	seen := make(map[int]struct{}, len(points))
	for _, p := range points {
		seen[p.Index] = struct{}{}
	}
	return len(seen)
}
