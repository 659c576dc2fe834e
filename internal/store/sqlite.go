// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu        sync.RWMutex
	freshness map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, dbError("failed to open database", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		freshness: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, dbError("failed to initialize schema", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- One row per scanner pass
	CREATE TABLE IF NOT EXISTS scan_runs (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		pattern TEXT NOT NULL,
		backcandles INTEGER NOT NULL,
		window_size INTEGER NOT NULL,
		candles INTEGER NOT NULL,
		hits INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	-- Pattern hits, one per target candle
	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		pattern TEXT NOT NULL,
		target_index INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		min_slope REAL NOT NULL,
		min_r REAL NOT NULL,
		max_slope REAL NOT NULL,
		max_r REAL NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES scan_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_candles_series ON candles(symbol, timeframe, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_symbol ON scan_runs(symbol, started_at);
	CREATE INDEX IF NOT EXISTS idx_detections_run ON detections(run_id, target_index);
	CREATE INDEX IF NOT EXISTS idx_detections_symbol ON detections(symbol, pattern, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func dbError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrDatabaseError, msg, err)
}

func seriesKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

// parseTimestamp parses a timestamp returned by an aggregate, where the driver
// has no column type to convert from.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database. Candles with an existing
// timestamp replace the stored row.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return dbError("failed to prepare statement", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return dbError("failed to insert candle", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError("failed to commit transaction", err)
	}

	s.mu.Lock()
	delete(s.freshness, seriesKey(symbol, timeframe))
	s.mu.Unlock()

	return nil
}

// GetCandles retrieves candles in [from, to] ordered by timestamp.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, dbError("failed to query candles", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetSeries retrieves every stored candle of a series.
func (s *SQLiteStore) GetSeries(ctx context.Context, symbol, timeframe string) (*models.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp ASC
	`, symbol, timeframe)
	if err != nil {
		return nil, dbError("failed to query candles", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", apperrors.ErrDataNotFound, symbol, timeframe)
	}

	return &models.Series{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   candles,
	}, nil
}

func scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, dbError("failed to scan candle", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating candles", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle, or the
// zero time when the series is empty.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	key := seriesKey(symbol, timeframe)

	s.mu.RLock()
	if t, ok := s.freshness[key]; ok {
		s.mu.RUnlock()
		return t, nil
	}
	s.mu.RUnlock()

	var last sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, dbError("failed to get candles freshness", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}

	t, err := parseTimestamp(last.String)
	if err != nil {
		return time.Time{}, dbError("failed to parse freshness", err)
	}

	s.mu.Lock()
	s.freshness[key] = t
	s.mu.Unlock()

	return t, nil
}

// ListSeries returns a summary of every stored series.
func (s *SQLiteStore) ListSeries(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM candles
		GROUP BY symbol, timeframe
		ORDER BY symbol, timeframe
	`)
	if err != nil {
		return nil, dbError("failed to list series", err)
	}
	defer rows.Close()

	var out []SeriesInfo
	for rows.Next() {
		var info SeriesInfo
		var first, last string
		if err := rows.Scan(&info.Symbol, &info.Timeframe, &info.Candles, &first, &last); err != nil {
			return nil, dbError("failed to scan series", err)
		}
		if info.First, err = parseTimestamp(first); err != nil {
			return nil, dbError("failed to parse series start", err)
		}
		if info.Last, err = parseTimestamp(last); err != nil {
			return nil, dbError("failed to parse series end", err)
		}
		out = append(out, info)
	}

	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating series", err)
	}
	return out, nil
}

// ============================================================================
// Scan History Methods
// ============================================================================

// SaveScanRun records a scan and its detections in one transaction. A run
// without an ID is assigned a new one, which is also set on each detection.
func (s *SQLiteStore) SaveScanRun(ctx context.Context, run *models.ScanRun, detections []models.Detection) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_runs (id, symbol, timeframe, pattern, backcandles, window_size, candles, hits, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Symbol, run.Timeframe, string(run.Pattern), run.Backcandles, run.Window,
		run.Candles, run.Hits, run.StartedAt.UTC(), run.Duration.Milliseconds())
	if err != nil {
		return dbError("failed to insert scan run", err)
	}

	if len(detections) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO detections (run_id, symbol, timeframe, pattern, target_index, timestamp,
				min_slope, min_r, max_slope, max_r, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return dbError("failed to prepare statement", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for i := range detections {
			d := &detections[i]
			d.RunID = run.ID
			if d.CreatedAt.IsZero() {
				d.CreatedAt = now
			}
			res, err := stmt.ExecContext(ctx, d.RunID, d.Symbol, d.Timeframe, string(d.Pattern), d.TargetIndex,
				d.Timestamp.UTC(), d.MinSlope, d.MinR, d.MaxSlope, d.MaxR, d.CreatedAt.UTC())
			if err != nil {
				return dbError("failed to insert detection", err)
			}
			if id, err := res.LastInsertId(); err == nil {
				d.ID = id
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError("failed to commit transaction", err)
	}
	return nil
}

// GetScanRuns retrieves scan runs, most recent first.
func (s *SQLiteStore) GetScanRuns(ctx context.Context, filter RunFilter) ([]models.ScanRun, error) {
	query := "SELECT id, symbol, timeframe, pattern, backcandles, window_size, candles, hits, started_at, duration_ms FROM scan_runs WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Pattern != "" {
		query += " AND pattern = ?"
		args = append(args, string(filter.Pattern))
	}

	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("failed to query scan runs", err)
	}
	defer rows.Close()

	var runs []models.ScanRun
	for rows.Next() {
		var r models.ScanRun
		var pattern string
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Timeframe, &pattern, &r.Backcandles, &r.Window,
			&r.Candles, &r.Hits, &r.StartedAt, &durationMs); err != nil {
			return nil, dbError("failed to scan run", err)
		}
		r.Pattern = models.PatternName(pattern)
		r.StartedAt = r.StartedAt.UTC()
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating scan runs", err)
	}
	return runs, nil
}

// GetDetections retrieves detections ordered by target candle time.
func (s *SQLiteStore) GetDetections(ctx context.Context, filter DetectionFilter) ([]models.Detection, error) {
	query := "SELECT id, run_id, symbol, timeframe, pattern, target_index, timestamp, min_slope, min_r, max_slope, max_r, created_at FROM detections WHERE 1=1"
	args := []interface{}{}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Timeframe != "" {
		query += " AND timeframe = ?"
		args = append(args, filter.Timeframe)
	}
	if filter.Pattern != "" {
		query += " AND pattern = ?"
		args = append(args, string(filter.Pattern))
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY timestamp ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("failed to query detections", err)
	}
	defer rows.Close()

	var out []models.Detection
	for rows.Next() {
		var d models.Detection
		var pattern string
		if err := rows.Scan(&d.ID, &d.RunID, &d.Symbol, &d.Timeframe, &pattern, &d.TargetIndex, &d.Timestamp,
			&d.MinSlope, &d.MinR, &d.MaxSlope, &d.MaxR, &d.CreatedAt); err != nil {
			return nil, dbError("failed to scan detection", err)
		}
		d.Pattern = models.PatternName(pattern)
		d.Timestamp = d.Timestamp.UTC()
		d.CreatedAt = d.CreatedAt.UTC()
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating detections", err)
	}
	return out, nil
}
