// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"pattern-scanner/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	GetSeries(ctx context.Context, symbol, timeframe string) (*models.Series, error)
	GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)
	ListSeries(ctx context.Context) ([]SeriesInfo, error)

	// Scan history
	SaveScanRun(ctx context.Context, run *models.ScanRun, detections []models.Detection) error
	GetScanRuns(ctx context.Context, filter RunFilter) ([]models.ScanRun, error)
	GetDetections(ctx context.Context, filter DetectionFilter) ([]models.Detection, error)

	// Lifecycle
	Close() error
}

// SeriesInfo summarizes a stored series.
type SeriesInfo struct {
	Symbol    string
	Timeframe string
	Candles   int
	First     time.Time
	Last      time.Time
}

// RunFilter represents filters for querying scan runs.
type RunFilter struct {
	Symbol  string
	Pattern models.PatternName
	Limit   int
}

// DetectionFilter represents filters for querying detections.
type DetectionFilter struct {
	RunID     string
	Symbol    string
	Timeframe string
	Pattern   models.PatternName
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
