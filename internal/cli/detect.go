package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/ingest"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/internal/render"
)

func addDetectionCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPivotsCmd(app))
	rootCmd.AddCommand(newFlagCmd(app))
	rootCmd.AddCommand(newTriangleCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
}

func addSeriesFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("symbol", "s", "", "symbol name (reads from the store when no CSV is given)")
	cmd.Flags().StringP("timeframe", "t", "1h", "series timeframe")
	cmd.Flags().String("from", "", "first stored candle time to load (with --symbol)")
	cmd.Flags().String("to", "", "last stored candle time to load (with --symbol)")
}

// loadSeries reads the series named by a CSV argument or by --symbol.
func loadSeries(ctx context.Context, cmd *cobra.Command, app *App, args []string) (*models.Series, error) {
	symbol, _ := cmd.Flags().GetString("symbol")
	timeframe, _ := cmd.Flags().GetString("timeframe")

	if len(args) > 0 {
		path := args[0]
		if symbol == "" {
			symbol = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		loader := ingest.NewLoader(app.Config.Data.DropZeroVolume, app.Logger)
		return loader.LoadFile(path, symbol, timeframe)
	}

	if symbol == "" {
		return nil, apperrors.NewValidationError("symbol", "", "a CSV file or --symbol is required")
	}
	st, err := app.Store()
	if err != nil {
		return nil, err
	}

	fromArg, _ := cmd.Flags().GetString("from")
	toArg, _ := cmd.Flags().GetString("to")
	if fromArg == "" && toArg == "" {
		return st.GetSeries(ctx, symbol, timeframe)
	}

	from, to := time.Time{}, time.Now().UTC()
	if fromArg != "" {
		if from, err = ingest.ParseTime(fromArg); err != nil {
			return nil, apperrors.NewValidationError("from", fromArg, err.Error())
		}
	}
	if toArg != "" {
		if to, err = ingest.ParseTime(toArg); err != nil {
			return nil, apperrors.NewValidationError("to", toArg, err.Error())
		}
	}
	candles, err := st.GetCandles(ctx, symbol, timeframe, from, to)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s between %s and %s", apperrors.ErrDataNotFound, symbol, timeframe, FormatDateTime(from), FormatDateTime(to))
	}
	return &models.Series{Symbol: symbol, Timeframe: timeframe, Candles: candles}, nil
}

func (a *App) pivotDetector(cmd *cobra.Command) (*patterns.PivotDetector, error) {
	left, right := a.Config.Pivot.Left, a.Config.Pivot.Right
	if cmd.Flags().Changed("left") {
		left, _ = cmd.Flags().GetInt("left")
	}
	if cmd.Flags().Changed("right") {
		right, _ = cmd.Flags().GetInt("right")
	}
	return patterns.NewPivotDetector(left, right)
}

type pivotRow struct {
	Index     int                 `json:"index"`
	Timestamp time.Time           `json:"timestamp"`
	Low       float64             `json:"low"`
	High      float64             `json:"high"`
	Volume    float64             `json:"volume"`
	Label     patterns.PivotLabel `json:"label"`
	Marker    *float64            `json:"marker,omitempty"`
}

func newPivotsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pivots [csv]",
		Short: "Label swing highs and lows",
		Long: `Label every candle as a swing low, swing high, both or neither.

A candle is a swing low when no candle within --left bars before it or
--right bars after it has a strictly lower low. Swing highs are the mirror.
Candles without a full window on both sides are never pivots.`,
		Example: `  scanner pivots EURUSD_1h.csv
  scanner pivots --symbol EURUSD --timeframe 1h --left 5 --right 5 --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			series, err := loadSeries(ctx, cmd, app, args)
			if err != nil {
				return err
			}
			det, err := app.pivotDetector(cmd)
			if err != nil {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")

			ann := det.Annotate(series.Candles)

			var rows []pivotRow
			for i, a := range ann {
				if !all && a.Label == patterns.PivotNone {
					continue
				}
				c := series.Candles[i]
				row := pivotRow{Index: i, Timestamp: c.Timestamp, Low: c.Low, High: c.High, Volume: c.Volume, Label: a.Label}
				if a.HasMarker {
					m := a.Marker
					row.Marker = &m
				}
				rows = append(rows, row)
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}

			output.Bold("Pivots: %s %s (%d candles, window %d/%d)", series.Symbol, series.Timeframe, series.Len(), det.Left(), det.Right())
			table := NewTable(output, "Index", "Time", "Low", "High", "Volume", "Label", "Marker")
			for _, r := range rows {
				marker := ""
				if r.Marker != nil {
					marker = FormatPrice(*r.Marker)
				}
				table.AddRow(strconv.Itoa(r.Index), FormatDateTime(r.Timestamp), FormatPrice(r.Low), FormatPrice(r.High), FormatVolume(r.Volume), output.formatLabel(r.Label), marker)
			}
			table.Render()
			output.Dim("%d swing lows, %d swing highs, %d both", ann.Count(patterns.PivotLow), ann.Count(patterns.PivotHigh), ann.Count(patterns.PivotBoth))
			return nil
		},
	}

	addSeriesFlags(cmd)
	cmd.Flags().Int("left", 3, "bars compared before each candle")
	cmd.Flags().Int("right", 3, "bars compared after each candle")
	cmd.Flags().Bool("all", false, "list every candle, not only pivots")
	return cmd
}

func (o *Output) formatLabel(label patterns.PivotLabel) string {
	switch label {
	case patterns.PivotLow:
		return o.Green(string(label))
	case patterns.PivotHigh:
		return o.Red(string(label))
	case patterns.PivotBoth:
		return o.Yellow(string(label))
	}
	return o.DimText(string(label))
}

// diagnosticSink builds the sinks requested on the command line, or nil.
// The returned close function must be called when detection is done.
func diagnosticSink(cmd *cobra.Command, app *App, output *Output) (patterns.DiagnosticSink, func() error, error) {
	path, _ := cmd.Flags().GetString("diagnostics")
	chart, _ := cmd.Flags().GetBool("chart")
	closeFn := func() error { return nil }

	var sinks render.MultiSink
	switch path {
	case "":
	case "-":
		sinks = append(sinks, render.NewJSONSink(output.Writer(), true))
	default:
		f, err := os.Create(path)
		if err != nil {
			return nil, closeFn, apperrors.NewDataError(path, 0, "failed to create diagnostics file", err)
		}
		closeFn = f.Close
		sinks = append(sinks, render.NewJSONSink(f, false))
	}
	if chart && !output.IsJSON() {
		sinks = append(sinks, render.NewChartSink(output.Writer(), render.DefaultChartHeight, output.ColorEnabled()))
	}
	if len(sinks) == 0 {
		return nil, closeFn, nil
	}
	sinks = append(sinks, render.NewLogSink(app.Logger))
	return sinks, closeFn, nil
}

func newFlagCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flag [csv]",
		Short: "Check for a flag at one candle",
		Long: `Check whether a converging flag is present at a target candle.

The lookback covers [target-backcandles-window, target-window). The last
three swing lows and swing highs in it must strictly alternate, the lows must
fit a rising line and the highs a falling line, both with r² >= min_r2.`,
		Example: `  scanner flag EURUSD_1h.csv --target 420
  scanner flag --symbol EURUSD --target 420 --chart
  scanner flag EURUSD_1h.csv --target 420 --diagnostics flag.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			series, err := loadSeries(ctx, cmd, app, args)
			if err != nil {
				return err
			}
			pivots, err := app.pivotDetector(cmd)
			if err != nil {
				return err
			}

			target, _ := cmd.Flags().GetInt("target")
			if !cmd.Flags().Changed("target") {
				target = series.Len() - 1
			}

			sink, closeSink, err := diagnosticSink(cmd, app, output)
			if err != nil {
				return err
			}
			defer closeSink()

			cfg := app.Config.FlagDetectorConfig()
			cfg.PivotRight = pivots.Right()
			det, err := patterns.NewFlagDetector(cfg,
				patterns.WithFlagLogger(logging.WithSymbol(app.Logger, series.Symbol)),
				patterns.WithFlagSink(sink))
			if err != nil {
				return err
			}

			ann := pivots.Annotate(series.Candles)
			res, err := det.Detect(series.Candles, ann, target, sink != nil)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if path, _ := cmd.Flags().GetString("diagnostics"); path == "-" {
					return nil
				}
				return output.JSON(res)
			}

			from, to := det.LookbackRange(target)
			output.Bold("Flag: %s %s at candle %d (lookback [%d, %d))", series.Symbol, series.Timeframe, target, from, to)
			if res.Present {
				output.Success("✓ Flag present")
			} else {
				output.Dim("No flag")
			}
			if len(res.Lows) > 0 || len(res.Highs) > 0 {
				output.Printf("  Swing lows:  %s\n", formatPoints(res.Lows))
				output.Printf("  Swing highs: %s\n", formatPoints(res.Highs))
			}
			if res.MinLine != (patterns.TrendLine{}) || res.MaxLine != (patterns.TrendLine{}) {
				output.Printf("  Lows line:   slope %s  r %s\n", output.FormatSlope(res.MinLine.Slope), FormatR(res.MinLine.R))
				output.Printf("  Highs line:  slope %s  r %s\n", output.FormatSlope(res.MaxLine.Slope), FormatR(res.MaxLine.R))
			}
			return nil
		},
	}

	addSeriesFlags(cmd)
	cmd.Flags().Int("target", 0, "target candle index (default: last candle)")
	cmd.Flags().Int("left", 3, "pivot bars compared before each candle")
	cmd.Flags().Int("right", 3, "pivot bars compared after each candle")
	cmd.Flags().String("diagnostics", "", "write diagnostics for a positive result to a file, or - for stdout")
	cmd.Flags().Bool("chart", false, "draw a text chart for a positive result")
	return cmd
}

func formatPoints(pts []patterns.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fmt.Sprintf("%d@%s", p.Index, FormatPrice(p.Price))
	}
	return strings.Join(parts, "  ")
}

func newTriangleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triangle [csv]",
		Short: "Find triangle patterns across a series",
		Long: `Fit lines through every swing low and swing high in the backcandles
before each candle and report symmetrical, ascending and descending triangles.`,
		Example: `  scanner triangle EURUSD_1h.csv
  scanner triangle --symbol EURUSD --kind ascending`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, app, args, models.PatternSymmetricalTriangle)
		},
	}

	addScanFlags(cmd)
	return cmd
}

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [csv]",
		Short: "Scan every candle of a series for flags",
		Long: `Evaluate the flag detector at every candle of a series in parallel and
list the hits in candle order. Use --save to record the run in the store.`,
		Example: `  scanner scan EURUSD_1h.csv
  scanner scan --symbol EURUSD --timeframe 1h --save
  scanner scan EURUSD_1h.csv --pattern triangle --kind descending`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, _ := cmd.Flags().GetString("pattern")
			switch strings.ToLower(pattern) {
			case "flag":
				return runScan(cmd, app, args, models.PatternFlag)
			case "triangle":
				return runScan(cmd, app, args, models.PatternSymmetricalTriangle)
			}
			return apperrors.NewValidationError("pattern", pattern, "must be flag or triangle")
		},
	}

	addScanFlags(cmd)
	cmd.Flags().String("pattern", "flag", "pattern to scan for: flag or triangle")
	return cmd
}

func addScanFlags(cmd *cobra.Command) {
	addSeriesFlags(cmd)
	cmd.Flags().Int("left", 3, "pivot bars compared before each candle")
	cmd.Flags().Int("right", 3, "pivot bars compared after each candle")
	cmd.Flags().String("kind", "", "triangle kind: symmetrical, ascending or descending (default: any)")
	cmd.Flags().Int("workers", 0, "parallel workers (default: from config)")
	cmd.Flags().Bool("save", false, "record the run and its detections in the store")
}

type scanReport struct {
	RunID     string             `json:"run_id,omitempty"`
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Pattern   string             `json:"pattern"`
	Candles   int                `json:"candles"`
	Duration  string             `json:"duration"`
	Hits      []analysis.Pattern `json:"hits"`
}

// runScan scans a series for flags, or for triangles when pattern is any
// triangle name.
func runScan(cmd *cobra.Command, app *App, args []string, pattern models.PatternName) error {
	output := NewOutput(cmd)
	ctx := cmd.Context()

	series, err := loadSeries(ctx, cmd, app, args)
	if err != nil {
		return err
	}
	pivots, err := app.pivotDetector(cmd)
	if err != nil {
		return err
	}

	workers := app.Config.Scan.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}
	logger := logging.WithOperation(logging.WithSymbol(app.Logger, series.Symbol), "scan")
	scanner := patterns.NewScanner(workers, logger)
	ann := pivots.Annotate(series.Candles)

	run := &models.ScanRun{
		Symbol:    series.Symbol,
		Timeframe: series.Timeframe,
		Candles:   series.Len(),
		StartedAt: time.Now(),
	}

	var hits []analysis.Pattern
	var detectorName string
	if pattern == models.PatternFlag {
		cfg := app.Config.FlagDetectorConfig()
		cfg.PivotRight = pivots.Right()
		det, err := patterns.NewFlagDetector(cfg, patterns.WithFlagLogger(logger))
		if err != nil {
			return err
		}
		run.Pattern, run.Backcandles, run.Window = models.PatternFlag, cfg.Backcandles, cfg.Window
		detectorName = det.Name()
		hits, err = scanner.ScanFlags(ctx, det, series.Candles, ann)
		if err != nil {
			return err
		}
	} else {
		kindName, _ := cmd.Flags().GetString("kind")
		kind, err := patterns.ParseTriangleKind(strings.ToLower(kindName))
		if err != nil {
			return err
		}
		cfg := app.Config.TriangleDetectorConfig(kind)
		det, err := patterns.NewTriangleDetector(cfg, logger)
		if err != nil {
			return err
		}
		run.Pattern, run.Backcandles = det.Pattern(), cfg.Backcandles
		detectorName = det.Name()
		hits, err = scanner.FindTriangles(ctx, det, series.Candles, ann)
		if err != nil {
			return err
		}
	}
	run.Duration = time.Since(run.StartedAt)
	run.Hits = len(hits)

	if save, _ := cmd.Flags().GetBool("save"); save {
		if err := saveRun(ctx, app, run, series, hits); err != nil {
			return err
		}
	}

	if output.IsJSON() {
		return output.JSON(scanReport{
			RunID:     run.ID,
			Symbol:    series.Symbol,
			Timeframe: series.Timeframe,
			Pattern:   detectorName,
			Candles:   series.Len(),
			Duration:  run.Duration.String(),
			Hits:      hits,
		})
	}

	output.Bold("Scan: %s %s for %s (%d candles)", series.Symbol, series.Timeframe, detectorName, series.Len())
	if len(hits) == 0 {
		output.Dim("No patterns found")
	} else {
		table := NewTable(output, "Target", "Time", "Pattern", "Low slope", "Low r", "High slope", "High r")
		for _, h := range hits {
			table.AddRow(
				strconv.Itoa(h.EndIndex),
				FormatDateTime(series.Candles[h.EndIndex].Timestamp),
				string(h.Name),
				output.FormatSlope(h.MinSlope),
				FormatR(h.MinR),
				output.FormatSlope(h.MaxSlope),
				FormatR(h.MaxR),
			)
		}
		table.Render()
	}
	output.Dim("%d hits in %s", len(hits), FormatDuration(run.Duration))
	if run.ID != "" {
		output.Success("✓ Saved run %s", run.ID)
	}
	return nil
}

func saveRun(ctx context.Context, app *App, run *models.ScanRun, series *models.Series, hits []analysis.Pattern) error {
	st, err := app.Store()
	if err != nil {
		return err
	}

	detections := make([]models.Detection, len(hits))
	for i, h := range hits {
		detections[i] = models.Detection{
			Symbol:      series.Symbol,
			Timeframe:   series.Timeframe,
			Pattern:     h.Name,
			TargetIndex: h.EndIndex,
			Timestamp:   series.Candles[h.EndIndex].Timestamp,
			MinSlope:    h.MinSlope,
			MinR:        h.MinR,
			MaxSlope:    h.MaxSlope,
			MaxR:        h.MaxR,
		}
	}
	return st.SaveScanRun(ctx, run, detections)
}
