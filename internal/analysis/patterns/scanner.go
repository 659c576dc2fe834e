package patterns

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
)

// TargetDetector evaluates a pattern at a single target candle.
type TargetDetector interface {
	Name() string
	DetectAt(candles []models.Candle, ann Annotations, target int) (*analysis.Pattern, error)
}

// Scanner runs a TargetDetector over many targets in parallel. Candles and
// annotations are shared read-only between workers.
type Scanner struct {
	workers int
	logger  zerolog.Logger
}

// NewScanner creates a scanner with the given number of workers.
// If workers is 0, it defaults to runtime.NumCPU().
func NewScanner(workers int, logger zerolog.Logger) *Scanner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{workers: workers, logger: logger}
}

// Scan evaluates det at every index from start to the end of the series and
// returns the hits in index order. The first detector error cancels the
// remaining work.
func (s *Scanner) Scan(ctx context.Context, det TargetDetector, candles []models.Candle, ann Annotations, start int) ([]analysis.Pattern, error) {
	began := time.Now()
	if start < 0 {
		start = 0
	}

	var hits []*analysis.Pattern
	if start < len(candles) {
		hits = make([]*analysis.Pattern, len(candles)-start)
	}

	p := pool.New().
		WithMaxGoroutines(s.workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for target := start; target < len(candles); target++ {
		target := target
		p.Go(func(taskCtx context.Context) error {
			// Skipped targets report nothing so the failing target's error
			// is the one returned.
			if taskCtx.Err() != nil {
				return nil
			}
			pattern, err := det.DetectAt(candles, ann, target)
			if err != nil {
				return err
			}
			hits[target-start] = pattern
			return nil
		})
	}

	err := p.Wait()
	if err == nil {
		err = ctx.Err()
	}

	var out []analysis.Pattern
	for _, h := range hits {
		if h != nil {
			out = append(out, *h)
		}
	}

	logging.LogScan(s.logger, det.Name(), len(candles), len(out), time.Since(began), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanFlags evaluates the flag detector at every candle of the series.
func (s *Scanner) ScanFlags(ctx context.Context, det *FlagDetector, candles []models.Candle, ann Annotations) ([]analysis.Pattern, error) {
	return s.Scan(ctx, det, candles, ann, 0)
}

// FindTriangles evaluates the triangle detector from its first meaningful
// target to the end of the series.
func (s *Scanner) FindTriangles(ctx context.Context, det *TriangleDetector, candles []models.Candle, ann Annotations) ([]analysis.Pattern, error) {
	return s.Scan(ctx, det, candles, ann, det.FirstTarget())
}
