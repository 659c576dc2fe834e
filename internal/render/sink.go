// Package render turns pattern diagnostics into output for visual inspection.
package render

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/logging"
)

// JSONSink writes each diagnostic as a JSON document. Compact output is one
// document per line.
type JSONSink struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
}

// NewJSONSink creates a sink writing to w.
func NewJSONSink(w io.Writer, pretty bool) *JSONSink {
	return &JSONSink{writer: w, pretty: pretty}
}

// Emit implements patterns.DiagnosticSink.
func (s *JSONSink) Emit(d patterns.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoder := json.NewEncoder(s.writer)
	if s.pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(d)
}

// LogSink records a one-line summary of each diagnostic.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements patterns.DiagnosticSink.
func (s *LogSink) Emit(d patterns.Diagnostic) error {
	logging.LogDetection(s.logger.With().
		Int("from", d.From).
		Int("to", d.To).
		Float64("min_r", d.MinLine.R).
		Float64("max_r", d.MaxLine.R).
		Logger(), string(d.Pattern), d.Target, d.MinLine.Slope, d.MaxLine.Slope)
	return nil
}

// MultiSink fans a diagnostic out to several sinks. Every sink is called even
// when an earlier one fails.
type MultiSink []patterns.DiagnosticSink

// Emit implements patterns.DiagnosticSink.
func (m MultiSink) Emit(d patterns.Diagnostic) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
