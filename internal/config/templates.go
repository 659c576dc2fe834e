package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Pattern Scanner Configuration

[pivot]
# Candles compared on each side of a pivot candidate
left = 3
right = 3

[flag]
# Candles in the lookback range
backcandles = 35
# Most recent candles excluded before the target; keep above pivot.right
window = 3
# Minimum r² for both trendlines
min_r2 = 0.9
# Swing lows must rise at least this much per candle
min_low_slope = 0.0001
# Swing highs must fall at least this much per candle
max_high_slope = -0.0001

[triangle]
backcandles = 20
min_pivots = 3
min_r2 = 0.9
# Slope magnitude counted as rising or falling
min_slope = 0.0001
# Slope magnitude counted as flat
flat_slope = 0.00001

[scan]
# Parallel workers, 0 uses every CPU
workers = 0

[data]
# SQLite database for imported candles and scan history
# db_path = "~/.config/pattern-scanner/scanner.db"
# Drop candles with zero volume when importing CSV files
drop_zero_volume = true

[logging]
# debug, info, warn, error
level = "info"
console = true
file = false
max_size = 50
max_backups = 5
max_age = 30
`

// createTemplateConfig writes the template unless the file already exists.
func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

// Template returns the default config.toml contents.
func Template() string {
	return configTemplate
}
