package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pattern-scanner/internal/analysis/patterns"
	apperrors "pattern-scanner/internal/errors"
)

func TestLoad_CreatesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template not written: %v", err)
	}

	if cfg.FlagDetectorConfig() != patterns.DefaultFlagConfig() {
		t.Errorf("flag config = %+v, want defaults", cfg.FlagDetectorConfig())
	}
	if cfg.TriangleDetectorConfig(patterns.TriangleNone) != patterns.DefaultTriangleConfig() {
		t.Errorf("triangle config = %+v, want defaults", cfg.TriangleDetectorConfig(patterns.TriangleNone))
	}
	if cfg.Data.DBPath != filepath.Join(dir, "scanner.db") || !cfg.Data.DropZeroVolume {
		t.Errorf("unexpected data config: %+v", cfg.Data)
	}
	if cfg.Logging.Level != "info" || cfg.LogConfig().FilePath != filepath.Join(dir, "logs", "scanner.log") {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoad_TemplateMatchesDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(Template()), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	def := Default(dir)
	if *cfg != *def {
		t.Errorf("template config differs from defaults:\n%+v\n%+v", cfg, def)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[pivot]
left = 5
right = 2

[flag]
backcandles = 50
window = 4
min_r2 = 0.8

[scan]
workers = 3
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	fc := cfg.FlagDetectorConfig()
	if fc.Backcandles != 50 || fc.Window != 4 || fc.MinR2 != 0.8 || fc.PivotRight != 2 {
		t.Errorf("unexpected flag config %+v", fc)
	}
	if fc.MinLowSlope != 0.0001 {
		t.Errorf("unset key lost its default: %v", fc.MinLowSlope)
	}
	if cfg.Pivot.Left != 5 || cfg.Scan.Workers != 3 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCANNER_DB_PATH", "/tmp/other.db")
	t.Setenv("SCANNER_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Data.DBPath != "/tmp/other.db" || cfg.Logging.Level != "debug" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Data, cfg.Logging)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative window", "[flag]\nwindow = -1\n"},
		{"r2 above one", "[triangle]\nmin_r2 = 1.5\n"},
		{"negative pivot", "[pivot]\nleft = -2\n"},
		{"bad toml", "[flag\nwindow = 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(dir)
			if !errors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("err = %v, want ErrConfigInvalid", err)
			}
		})
	}
}
