// Package cli provides the command-line interface for the strategy analyzer.
package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"delta-spread/internal/aggregation"
	"delta-spread/internal/config"
	"delta-spread/internal/logging"
	"delta-spread/internal/quotes"
	"delta-spread/internal/store"
	"delta-spread/internal/strategy"
	"delta-spread/internal/trades"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Source  quotes.Upstream
	Engine  *aggregation.Engine
	Manager *strategy.Manager
	Today   time.Time

	trades *trades.Service
	store  *store.SQLiteStore
}

// NewRootCmd creates the root command for the CLI. Configuration, logging
// and the quote source are set up once flags are parsed.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "deltaspread",
		Short: "delta-spread - multi-leg options strategy analyzer",
		Long: `delta-spread evaluates multi-leg options strategies on a single underlier.

It prices legs with Black-Scholes, computes net debit/credit, max profit and
loss, breakevens, portfolio Greeks and probability of profit, and draws
payoff curves at expiration or today.

Strategies can be given as leg specs, TOML files, templates or saved trades.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return app.init(cmd, path)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/delta-spread/config.toml)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addPricingCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addStrategyCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)
	addChainCommands(rootCmd, app)

	return rootCmd
}

func (app *App) init(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	app.Config = cfg

	logCfg := cfg.LogConfig()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logCfg.Level = "debug"
		logCfg.Console = true
	}
	app.Logger = logging.NewLoggerWithConfig(logCfg)

	if !cfg.UI.ColorEnabled {
		color.NoColor = true
	}

	if app.Today.IsZero() {
		y, m, d := time.Now().Date()
		app.Today = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if app.Source == nil {
		mock := quotes.NewMockSource(cfg.MockConfig(app.Today))
		app.Source = quotes.NewGuardedSource(cfg.Data.Source, mock, cfg.GuardConfig(), app.Logger)
	}
	app.Engine = aggregation.NewEngine(cfg.EngineConfig()).WithLogger(app.Logger)
	app.Manager = strategy.NewManager(logging.WithOperation(app.Logger, cmd.Name()))

	app.Logger.Debug().Str("config", cfg.Path).Str("command", cmd.CommandPath()).Msg("Initialized")
	return nil
}

// Trades opens the trade database on first use.
func (app *App) Trades() (*trades.Service, error) {
	if app.trades != nil {
		return app.trades, nil
	}
	st, err := store.NewSQLiteStore(app.Config.Data.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening trade database: %w", err)
	}
	app.store = st
	app.trades = trades.NewService(st, app.Logger)
	app.Logger.Debug().Str("path", app.Config.Data.DBPath).Msg("SQLite store initialized")
	return app.trades, nil
}

// Close releases resources opened by commands.
func (app *App) Close() error {
	if app.store == nil {
		return nil
	}
	err := app.store.Close()
	app.store, app.trades = nil, nil
	return err
}

// addCoreCommands adds core utility commands.
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
			output.Printf("delta-spread v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
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
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Path})
			}
			output.Println(app.Config.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Pricing")
	output.Printf("  Risk-free rate:     %s\n", FormatRate(cfg.Pricing.RiskFreeRate))
	output.Printf("  Default volatility: %s\n", FormatIV(cfg.Pricing.DefaultVolatility))
	output.Printf("  Use as fallback:    %v\n", cfg.Pricing.UseFallbackVolatility)
	output.Println()

	output.Bold("Analysis")
	output.Printf("  Domain sigmas:      %.1f\n", cfg.Analysis.DomainSigmas)
	output.Printf("  Domain padding:     %.0f%%\n", cfg.Analysis.DomainPadding*100)
	output.Printf("  Breakeven samples:  %d\n", cfg.Analysis.BreakevenSamples)
	output.Printf("  Precision:          %g\n", cfg.Analysis.BreakevenPrecision)
	output.Printf("  Curve samples:      %d\n", cfg.Analysis.CurveSamples)
	output.Println()

	output.Bold("Data")
	output.Printf("  Source:             %s\n", cfg.Data.Source)
	output.Printf("  Expiries:           %d\n", cfg.Data.MaxExpiries)
	output.Printf("  Retries:            %d (circuit opens after %d failures)\n", cfg.Data.RetryAttempts, cfg.Data.BreakerFailures)
	output.Printf("  Database:           %s\n", cfg.Data.DBPath)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:              %s\n", cfg.Logging.Level)
	output.Printf("  File:               %s\n", cfg.Logging.FilePath)
}
