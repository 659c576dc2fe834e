package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pattern-scanner/internal/config"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger

	store store.DataStore
}

// Store opens the SQLite store on first use.
func (a *App) Store() (store.DataStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	dbPath := a.Config.Data.DBPath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// NewRootCmd creates the root command for the CLI. Configuration and logging
// are set up before any subcommand runs.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "scanner",
		Short: "Chart pattern scanner for OHLCV series",
		Long: `Scanner finds swing pivots and converging chart patterns in OHLCV data.

It labels swing highs and lows, fits trendlines through the most recent
pivots, and reports flags and triangles at each candle of a series. Series
are read from CSV files or from the local SQLite store.

Use 'scanner help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			if configDir == "" {
				configDir = config.DefaultConfigDir()
			}

			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.ConfigDir = configDir
			app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			app.Logger.Debug().Str("config_dir", configDir).Msg("Configuration loaded")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/pattern-scanner)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addDetectionCommands(rootCmd, app)
	addDataCommands(rootCmd, app)

	return rootCmd
}

func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Pattern Scanner v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View the active configuration and where it is read from.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Pivots")
	output.Printf("  left / right:      %d / %d\n", cfg.Pivot.Left, cfg.Pivot.Right)
	output.Println()

	output.Bold("Flag")
	output.Printf("  backcandles:       %d\n", cfg.Flag.Backcandles)
	output.Printf("  window:            %d\n", cfg.Flag.Window)
	output.Printf("  min r²:            %.3f\n", cfg.Flag.MinR2)
	output.Printf("  min low slope:     %s\n", FormatSlope(cfg.Flag.MinLowSlope))
	output.Printf("  max high slope:    %s\n", FormatSlope(cfg.Flag.MaxHighSlope))
	if cfg.Flag.Window <= cfg.Pivot.Right {
		output.Warning("  window does not exceed pivot right width, detections may use look-ahead data")
	}
	output.Println()

	output.Bold("Triangle")
	output.Printf("  backcandles:       %d\n", cfg.Triangle.Backcandles)
	output.Printf("  min pivots:        %d\n", cfg.Triangle.MinPivots)
	output.Printf("  min r²:            %.3f\n", cfg.Triangle.MinR2)
	output.Printf("  min / flat slope:  %g / %g\n", cfg.Triangle.MinSlope, cfg.Triangle.FlatSlope)
	output.Println()

	output.Bold("Data")
	output.Printf("  database:          %s\n", cfg.Data.DBPath)
	output.Printf("  drop zero volume:  %t\n", cfg.Data.DropZeroVolume)
	output.Printf("  scan workers:      %d\n", cfg.Scan.Workers)
	output.Printf("  log level:         %s\n", cfg.Logging.Level)
}
