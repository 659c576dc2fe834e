package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"pattern-scanner/internal/analysis/patterns"
)

// DefaultChartHeight is the number of price rows in a chart.
const DefaultChartHeight = 20

// ChartSink draws each diagnostic as a text chart: candle ranges, pivot
// markers and both fitted trendlines.
type ChartSink struct {
	writer  io.Writer
	height  int
	colored bool
}

// NewChartSink creates a chart sink. A height below 2 uses
// DefaultChartHeight.
func NewChartSink(w io.Writer, height int, colored bool) *ChartSink {
	if height < 2 {
		height = DefaultChartHeight
	}
	return &ChartSink{writer: w, height: height, colored: colored}
}

// Emit implements patterns.DiagnosticSink.
func (s *ChartSink) Emit(d patterns.Diagnostic) error {
	_, err := io.WriteString(s.writer, Chart(d, s.height, s.colored))
	return err
}

type cell struct {
	ch    byte
	paint *color.Color
}

// Chart renders a diagnostic. Each column is one candle of the lookback
// range; rows are evenly spaced price levels from high to low.
func Chart(d patterns.Diagnostic, height int, colored bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %d  range [%d, %d)  lows %.6f/r=%.3f  highs %.6f/r=%.3f\n",
		d.Pattern, d.Target, d.From, d.To, d.MinLine.Slope, d.MinLine.R, d.MaxLine.Slope, d.MaxLine.R)
	if len(d.Candles) == 0 || height < 2 {
		return b.String()
	}

	up := color.New(color.FgGreen)
	down := color.New(color.FgRed)
	lowLine := color.New(color.FgCyan)
	highLine := color.New(color.FgMagenta)
	marker := color.New(color.FgYellow, color.Bold)
	for _, c := range []*color.Color{up, down, lowLine, highLine, marker} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	top, bottom := math.Inf(-1), math.Inf(1)
	for i, c := range d.Candles {
		x := float64(d.From + i)
		for _, p := range []float64{c.High, c.Low, d.MinLine.At(x), d.MaxLine.At(x)} {
			top = math.Max(top, p)
			bottom = math.Min(bottom, p)
		}
	}
	if top == bottom {
		top, bottom = top+1, bottom-1
	}
	step := (top - bottom) / float64(height-1)
	rowOf := func(p float64) int {
		return int(math.Round((top - p) / step))
	}

	grid := make([][]cell, height)
	for r := range grid {
		grid[r] = make([]cell, len(d.Candles))
		for c := range grid[r] {
			grid[r][c] = cell{ch: ' '}
		}
	}

	put := func(row, col int, ch byte, paint *color.Color) {
		if row >= 0 && row < height {
			grid[row][col] = cell{ch: ch, paint: paint}
		}
	}

	for col, c := range d.Candles {
		paint := up
		if c.Close < c.Open {
			paint = down
		}
		for r := rowOf(c.High); r <= rowOf(c.Low); r++ {
			put(r, col, '|', paint)
		}

		x := float64(d.From + col)
		put(rowOf(d.MinLine.At(x)), col, '*', lowLine)
		put(rowOf(d.MaxLine.At(x)), col, '*', highLine)

		if col < len(d.Annotations) && d.Annotations[col].HasMarker {
			put(rowOf(d.Annotations[col].Marker), col, 'o', marker)
		}
	}

	for r, row := range grid {
		fmt.Fprintf(&b, "%12.5f ", top-float64(r)*step)
		for _, c := range row {
			if c.paint == nil {
				b.WriteByte(c.ch)
				continue
			}
			b.WriteString(c.paint.Sprint(string(c.ch)))
		}
		b.WriteByte('\n')
	}

	return b.String()
}
