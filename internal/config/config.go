// Package config provides configuration management for the pattern scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"pattern-scanner/internal/analysis/patterns"
	apperrors "pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Pivot    PivotConfig    `mapstructure:"pivot"`
	Flag     FlagConfig     `mapstructure:"flag"`
	Triangle TriangleConfig `mapstructure:"triangle"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Data     DataConfig     `mapstructure:"data"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PivotConfig holds the pivot window half-widths.
type PivotConfig struct {
	Left  int `mapstructure:"left"`
	Right int `mapstructure:"right"`
}

// FlagConfig holds flag detection thresholds.
type FlagConfig struct {
	Backcandles  int     `mapstructure:"backcandles"`
	Window       int     `mapstructure:"window"`
	MinR2        float64 `mapstructure:"min_r2"`
	MinLowSlope  float64 `mapstructure:"min_low_slope"`
	MaxHighSlope float64 `mapstructure:"max_high_slope"`
}

// TriangleConfig holds triangle detection thresholds.
type TriangleConfig struct {
	Backcandles int     `mapstructure:"backcandles"`
	MinPivots   int     `mapstructure:"min_pivots"`
	MinR2       float64 `mapstructure:"min_r2"`
	MinSlope    float64 `mapstructure:"min_slope"`
	FlatSlope   float64 `mapstructure:"flat_slope"`
}

// ScanConfig holds scanner settings.
type ScanConfig struct {
	Workers int `mapstructure:"workers"` // 0 uses every CPU
}

// DataConfig holds data source settings.
type DataConfig struct {
	DBPath         string `mapstructure:"db_path"`
	DropZeroVolume bool   `mapstructure:"drop_zero_volume"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/pattern-scanner"
	}
	return filepath.Join(home, ".config", "pattern-scanner")
}

// ConfigPath returns the path of config.toml inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("%w: loading config.toml: %w", apperrors.ErrConfigInvalid, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Default returns the built-in configuration for configDir.
func Default(configDir string) *Config {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	v := viper.New()
	setDefaults(v, configDir)

	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	flag := patterns.DefaultFlagConfig()
	tri := patterns.DefaultTriangleConfig()
	log := logging.DefaultLogConfig()

	v.SetDefault("pivot.left", 3)
	v.SetDefault("pivot.right", 3)

	v.SetDefault("flag.backcandles", flag.Backcandles)
	v.SetDefault("flag.window", flag.Window)
	v.SetDefault("flag.min_r2", flag.MinR2)
	v.SetDefault("flag.min_low_slope", flag.MinLowSlope)
	v.SetDefault("flag.max_high_slope", flag.MaxHighSlope)

	v.SetDefault("triangle.backcandles", tri.Backcandles)
	v.SetDefault("triangle.min_pivots", tri.MinPivots)
	v.SetDefault("triangle.min_r2", tri.MinR2)
	v.SetDefault("triangle.min_slope", tri.MinSlope)
	v.SetDefault("triangle.flat_slope", tri.FlatSlope)

	v.SetDefault("scan.workers", 0)

	v.SetDefault("data.db_path", filepath.Join(configDir, "scanner.db"))
	v.SetDefault("data.drop_zero_volume", true)

	v.SetDefault("logging.level", log.Level)
	v.SetDefault("logging.console", log.Console)
	v.SetDefault("logging.file", log.File)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "scanner.log"))
	v.SetDefault("logging.max_size", log.MaxSize)
	v.SetDefault("logging.max_backups", log.MaxBackups)
	v.SetDefault("logging.max_age", log.MaxAge)
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCANNER_DB_PATH"); v != "" {
		cfg.Data.DBPath = v
	}
	if v := os.Getenv("SCANNER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := apperrors.NonNegative("pivot.left", c.Pivot.Left); err != nil {
		return err
	}
	if err := apperrors.NonNegative("pivot.right", c.Pivot.Right); err != nil {
		return err
	}
	if err := apperrors.NonNegative("flag.backcandles", c.Flag.Backcandles); err != nil {
		return err
	}
	if err := apperrors.NonNegative("flag.window", c.Flag.Window); err != nil {
		return err
	}
	if err := apperrors.NonNegative("triangle.backcandles", c.Triangle.Backcandles); err != nil {
		return err
	}
	if c.Triangle.MinPivots < 2 {
		return apperrors.NewValidationError("triangle.min_pivots", c.Triangle.MinPivots, "must be at least 2")
	}
	if c.Flag.MinR2 < 0 || c.Flag.MinR2 > 1 {
		return apperrors.NewValidationError("flag.min_r2", c.Flag.MinR2, "must be between 0 and 1")
	}
	if c.Triangle.MinR2 < 0 || c.Triangle.MinR2 > 1 {
		return apperrors.NewValidationError("triangle.min_r2", c.Triangle.MinR2, "must be between 0 and 1")
	}
	if err := apperrors.NonNegative("scan.workers", c.Scan.Workers); err != nil {
		return err
	}
	if c.Data.DBPath == "" {
		return apperrors.NewValidationError("data.db_path", c.Data.DBPath, "must not be empty")
	}
	return nil
}

// FlagDetectorConfig converts the flag section for the detector. Pivots
// come from the [pivot] section so the look-ahead check can see them.
func (c *Config) FlagDetectorConfig() patterns.FlagConfig {
	return patterns.FlagConfig{
		Backcandles:  c.Flag.Backcandles,
		Window:       c.Flag.Window,
		MinR2:        c.Flag.MinR2,
		MinLowSlope:  c.Flag.MinLowSlope,
		MaxHighSlope: c.Flag.MaxHighSlope,
		PivotRight:   c.Pivot.Right,
	}
}

// TriangleDetectorConfig converts the triangle section for the detector.
func (c *Config) TriangleDetectorConfig(kind patterns.TriangleKind) patterns.TriangleConfig {
	return patterns.TriangleConfig{
		Backcandles: c.Triangle.Backcandles,
		MinPivots:   c.Triangle.MinPivots,
		MinR2:       c.Triangle.MinR2,
		MinSlope:    c.Triangle.MinSlope,
		FlatSlope:   c.Triangle.FlatSlope,
		Kind:        kind,
	}
}

// LogConfig converts the logging section.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
