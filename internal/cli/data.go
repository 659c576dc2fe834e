package cli

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/ingest"
	"pattern-scanner/internal/models"
	"pattern-scanner/internal/store"
)

func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newSeriesCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Import a CSV series into the store",
		Long: `Import OHLCV candles from a CSV file into the local SQLite store.

The file must have six columns: time, open, high, low, close and volume.
Candles already stored for the same symbol, timeframe and time are replaced.`,
		Example: `  scanner import EURUSD_Candlestick_1_Hour_BID.csv --symbol EURUSD --timeframe 1h`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			path := args[0]
			symbol, _ := cmd.Flags().GetString("symbol")
			timeframe, _ := cmd.Flags().GetString("timeframe")
			if symbol == "" {
				symbol = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			loader := ingest.NewLoader(app.Config.Data.DropZeroVolume, app.Logger)
			series, err := loader.LoadFile(path, symbol, timeframe)
			if err != nil {
				return err
			}
			if series.Len() == 0 {
				return apperrors.NewDataError(path, 0, "no candles to import", apperrors.ErrInsufficientData)
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.SaveCandles(ctx, symbol, timeframe, series.Candles); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    symbol,
					"timeframe": timeframe,
					"candles":   series.Len(),
					"first":     series.Candles[0].Timestamp,
					"last":      series.Candles[series.Len()-1].Timestamp,
				})
			}
			output.Success("✓ Imported %d candles for %s %s", series.Len(), symbol, timeframe)
			output.Dim("  %s to %s", FormatDateTime(series.Candles[0].Timestamp), FormatDateTime(series.Candles[series.Len()-1].Timestamp))
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol name (default: file name)")
	cmd.Flags().StringP("timeframe", "t", "1h", "series timeframe")
	return cmd
}

func newSeriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "series",
		Short: "List stored series",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.Store()
			if err != nil {
				return err
			}
			infos, err := st.ListSeries(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if infos == nil {
					infos = []store.SeriesInfo{}
				}
				return output.JSON(infos)
			}
			if len(infos) == 0 {
				output.Dim("No series stored. Use 'scanner import' to add one.")
				return nil
			}

			table := NewTable(output, "Symbol", "Timeframe", "Candles", "First", "Last")
			for _, s := range infos {
				table.AddRow(s.Symbol, s.Timeframe, strconv.Itoa(s.Candles), FormatDateTime(s.First), FormatDateTime(s.Last))
			}
			table.Render()
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show saved scan runs or the detections of one run",
		Example: `  scanner history
  scanner history --symbol EURUSD --pattern FLAG
  scanner history 3f1c2a9e-8d7b-4f5e-9a60-1b2c3d4e5f60`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			symbol, _ := cmd.Flags().GetString("symbol")
			pattern, _ := cmd.Flags().GetString("pattern")
			limit, _ := cmd.Flags().GetInt("limit")

			st, err := app.Store()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				detections, err := st.GetDetections(ctx, store.DetectionFilter{
					RunID:   args[0],
					Pattern: models.PatternName(strings.ToUpper(pattern)),
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				if output.IsJSON() {
					if detections == nil {
						detections = []models.Detection{}
					}
					return output.JSON(detections)
				}
				if len(detections) == 0 {
					output.Dim("No detections for run %s", args[0])
					return nil
				}
				table := NewTable(output, "Target", "Time", "Pattern", "Low slope", "Low r", "High slope", "High r")
				for _, d := range detections {
					table.AddRow(strconv.Itoa(d.TargetIndex), FormatDateTime(d.Timestamp), string(d.Pattern),
						output.FormatSlope(d.MinSlope), FormatR(d.MinR), output.FormatSlope(d.MaxSlope), FormatR(d.MaxR))
				}
				table.Render()
				return nil
			}

			runs, err := st.GetScanRuns(ctx, store.RunFilter{
				Symbol:  symbol,
				Pattern: models.PatternName(strings.ToUpper(pattern)),
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if runs == nil {
					runs = []models.ScanRun{}
				}
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Dim("No saved scans. Use 'scanner scan --save' to record one.")
				return nil
			}

			table := NewTable(output, "Run", "Started", "Series", "Pattern", "Candles", "Hits", "Duration")
			for _, r := range runs {
				table.AddRow(r.ID, FormatDateTime(r.StartedAt), r.Symbol+" "+r.Timeframe, string(r.Pattern),
					strconv.Itoa(r.Candles), strconv.Itoa(r.Hits), FormatDuration(r.Duration))
			}
			table.Render()
			output.Info("Use 'scanner history <run-id>' to list the detections of a run.")
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "filter runs by symbol")
	cmd.Flags().String("pattern", "", "filter by pattern name")
	cmd.Flags().Int("limit", 20, "maximum rows")
	return cmd
}
