// Package ingest loads OHLCV candles from CSV exports.
package ingest

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// Columns is the canonical header. Input columns are renamed positionally,
// whatever their original names.
var Columns = []string{"time", "open", "high", "low", "close", "volume"}

// timeLayouts are tried in order when parsing the time column.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05.000",
	"02.01.2006 15:04:05",
	"02.01.2006",
}

type csvRow struct {
	Time   string  `csv:"time"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// Loader reads candle CSVs.
type Loader struct {
	dropZeroVolume bool
	logger         zerolog.Logger
}

// NewLoader creates a loader. When dropZeroVolume is set, rows with zero
// volume are removed and the remaining candles re-indexed densely.
func NewLoader(dropZeroVolume bool, logger zerolog.Logger) *Loader {
	return &Loader{
		dropZeroVolume: dropZeroVolume,
		logger:         logger,
	}
}

// LoadFile reads a CSV file into a series.
func (l *Loader) LoadFile(path, symbol, timeframe string) (*models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError(path, 0, "failed to open file", err)
	}
	defer f.Close()

	candles, err := l.Load(f, path)
	if err != nil {
		return nil, err
	}

	return &models.Series{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   candles,
	}, nil
}

// Load reads candles from r. source names the input in errors.
func (l *Loader) Load(r io.Reader, source string) ([]models.Candle, error) {
	br := bufio.NewReader(r)

	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, apperrors.NewDataError(source, 1, "failed to read header", err)
	}
	header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	if header == "" {
		return nil, apperrors.NewDataError(source, 1, "empty input", apperrors.ErrInsufficientData)
	}
	if n := len(strings.Split(header, ",")); n != len(Columns) {
		return nil, apperrors.NewDataError(source, 1, "expected "+strconv.Itoa(len(Columns))+" columns, got "+strconv.Itoa(n), nil)
	}

	var rows []*csvRow
	in := io.MultiReader(strings.NewReader(strings.Join(Columns, ",")+"\n"), br)
	if err := gocsv.Unmarshal(in, &rows); err != nil {
		return nil, apperrors.NewDataError(source, 0, "failed to parse rows", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	dropped := 0
	for i, row := range rows {
		line := i + 2
		ts, err := ParseTime(row.Time)
		if err != nil {
			return nil, apperrors.NewDataError(source, line, "invalid time "+strconv.Quote(row.Time), err)
		}
		if l.dropZeroVolume && row.Volume == 0 {
			dropped++
			continue
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	l.logger.Debug().
		Str("source", source).
		Int("rows", len(rows)).
		Int("dropped", dropped).
		Int("candles", len(candles)).
		Msg("Loaded candles")

	return candles, nil
}

// ParseTime parses a candle timestamp. Unix seconds are accepted as well as
// the layouts commonly found in broker exports. Times without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
