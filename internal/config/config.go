// Package config provides configuration management for the strategy analyzer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"delta-spread/internal/aggregation"
	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/logging"
	"delta-spread/internal/payoff"
	"delta-spread/internal/quotes"
	"delta-spread/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Data     DataConfig     `mapstructure:"data"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	UI       UIConfig       `mapstructure:"ui"`

	// Path is the file the configuration was read from, or where the
	// template was written on first run.
	Path string `mapstructure:"-"`
}

// PricingConfig holds market assumptions.
type PricingConfig struct {
	RiskFreeRate          float64 `mapstructure:"risk_free_rate"`
	DefaultVolatility     float64 `mapstructure:"default_volatility"`
	UseFallbackVolatility bool    `mapstructure:"use_fallback_volatility"`
}

// AnalysisConfig holds aggregation engine settings.
type AnalysisConfig struct {
	DomainSigmas       float64 `mapstructure:"domain_sigmas"`
	DomainPadding      float64 `mapstructure:"domain_padding"`
	BreakevenSamples   int     `mapstructure:"breakeven_samples"`
	BreakevenPrecision float64 `mapstructure:"breakeven_precision"`
	CurveSamples       int     `mapstructure:"curve_samples"`
}

// DataConfig holds quote source and storage settings.
type DataConfig struct {
	Source          string             `mapstructure:"source"` // only "mock" is built in
	MaxExpiries     int                `mapstructure:"max_expiries"`
	MaxConcurrency  int                `mapstructure:"max_concurrency"`
	RetryAttempts   int                `mapstructure:"retry_attempts"`
	BreakerFailures int                `mapstructure:"breaker_failures"`
	DBPath          string             `mapstructure:"db_path"`
	Spots           map[string]float64 `mapstructure:"spots"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/delta-spread"
	}
	return filepath.Join(home, ".config", "delta-spread")
}

// DefaultConfigPath returns the default configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.toml")
}

// Load loads configuration from path. If path is empty the default path is
// used. A missing file is replaced by the commented template and defaults
// apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createTemplateConfig(path); err != nil {
			return nil, err
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Path = path

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pricing.risk_free_rate", 0.05)
	v.SetDefault("pricing.default_volatility", 0.20)
	v.SetDefault("pricing.use_fallback_volatility", false)

	v.SetDefault("analysis.domain_sigmas", aggregation.DefaultDomainSigmas)
	v.SetDefault("analysis.domain_padding", aggregation.DefaultDomainPadding)
	v.SetDefault("analysis.breakeven_samples", payoff.DefaultSamples)
	v.SetDefault("analysis.breakeven_precision", payoff.DefaultPrecision)
	v.SetDefault("analysis.curve_samples", aggregation.DefaultCurveSamples)

	v.SetDefault("data.source", "mock")
	v.SetDefault("data.max_expiries", quotes.DefaultMockExpiries)
	v.SetDefault("data.max_concurrency", 8)
	v.SetDefault("data.retry_attempts", 3)
	v.SetDefault("data.breaker_failures", 5)
	v.SetDefault("data.db_path", store.DefaultDBPath())

	log := logging.DefaultLogConfig()
	v.SetDefault("logging.level", log.Level)
	v.SetDefault("logging.console", log.Console)
	v.SetDefault("logging.file", log.File)
	v.SetDefault("logging.file_path", log.FilePath)
	v.SetDefault("logging.max_size", log.MaxSize)
	v.SetDefault("logging.max_backups", log.MaxBackups)
	v.SetDefault("logging.max_age", log.MaxAge)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DELTASPREAD_RISK_FREE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return apperrors.NewValidationError("DELTASPREAD_RISK_FREE_RATE", v, "not a number")
		}
		cfg.Pricing.RiskFreeRate = f
	}

	// Setting a volatility implies it should be used as the fallback.
	if v := os.Getenv("DELTASPREAD_VOLATILITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return apperrors.NewValidationError("DELTASPREAD_VOLATILITY", v, "not a number")
		}
		cfg.Pricing.DefaultVolatility = f
		cfg.Pricing.UseFallbackVolatility = true
	}

	if v := os.Getenv("DELTASPREAD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv("DELTASPREAD_DB_PATH"); v != "" {
		cfg.Data.DBPath = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(field string, value interface{}, msg string) error {
		return errors.Join(apperrors.ErrConfigInvalid, apperrors.NewValidationError(field, value, msg))
	}

	if c.Pricing.RiskFreeRate < -0.05 || c.Pricing.RiskFreeRate > 0.5 {
		return invalid("pricing.risk_free_rate", c.Pricing.RiskFreeRate, "must be between -0.05 and 0.5")
	}
	if c.Pricing.DefaultVolatility <= 0 || c.Pricing.DefaultVolatility > 5 {
		return invalid("pricing.default_volatility", c.Pricing.DefaultVolatility, "must be in (0, 5]")
	}

	if c.Analysis.DomainSigmas <= 0 {
		return invalid("analysis.domain_sigmas", c.Analysis.DomainSigmas, "must be positive")
	}
	if c.Analysis.DomainPadding < 0 || c.Analysis.DomainPadding > 1 {
		return invalid("analysis.domain_padding", c.Analysis.DomainPadding, "must be between 0 and 1")
	}
	if c.Analysis.BreakevenSamples < 2 {
		return invalid("analysis.breakeven_samples", c.Analysis.BreakevenSamples, "must be at least 2")
	}
	if c.Analysis.BreakevenPrecision <= 0 {
		return invalid("analysis.breakeven_precision", c.Analysis.BreakevenPrecision, "must be positive")
	}
	if c.Analysis.CurveSamples < 2 {
		return invalid("analysis.curve_samples", c.Analysis.CurveSamples, "must be at least 2")
	}

	if c.Data.Source != "mock" {
		return invalid("data.source", c.Data.Source, "only \"mock\" is supported")
	}
	if c.Data.MaxExpiries < 1 {
		return invalid("data.max_expiries", c.Data.MaxExpiries, "must be at least 1")
	}
	if c.Data.MaxConcurrency < 0 {
		return invalid("data.max_concurrency", c.Data.MaxConcurrency, "must be non-negative")
	}
	if c.Data.RetryAttempts < 1 {
		return invalid("data.retry_attempts", c.Data.RetryAttempts, "must be at least 1")
	}
	if c.Data.BreakerFailures < 1 {
		return invalid("data.breaker_failures", c.Data.BreakerFailures, "must be at least 1")
	}
	for sym, spot := range c.Data.Spots {
		if spot <= 0 {
			return invalid("data.spots."+sym, spot, "must be positive")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}

	return nil
}

// EngineConfig returns the aggregation engine settings.
func (c *Config) EngineConfig() aggregation.Config {
	return aggregation.Config{
		DomainSigmas:  c.Analysis.DomainSigmas,
		DomainPadding: c.Analysis.DomainPadding,
		Breakeven: payoff.Options{
			Samples:   c.Analysis.BreakevenSamples,
			Precision: c.Analysis.BreakevenPrecision,
		},
		CurveSamples: c.Analysis.CurveSamples,
	}
}

// ResolveOptions returns market resolution settings for a valuation date.
func (c *Config) ResolveOptions(valuation time.Time) quotes.ResolveOptions {
	opts := quotes.ResolveOptions{
		RiskFreeRate:   c.Pricing.RiskFreeRate,
		ValuationDate:  valuation,
		MaxConcurrency: c.Data.MaxConcurrency,
	}
	if c.Pricing.UseFallbackVolatility {
		vol := c.Pricing.DefaultVolatility
		opts.FallbackVolatility = &vol
	}
	return opts
}

// MockConfig returns the mock quote source settings.
func (c *Config) MockConfig(today time.Time) quotes.MockConfig {
	return quotes.MockConfig{
		Spots:        c.Data.Spots,
		Today:        today,
		RiskFreeRate: c.Pricing.RiskFreeRate,
		Expiries:     c.Data.MaxExpiries,
	}
}

// GuardConfig returns the retry and circuit breaker settings for the quote source.
func (c *Config) GuardConfig() quotes.GuardConfig {
	g := quotes.DefaultGuardConfig()
	g.Retry.MaxAttempts = c.Data.RetryAttempts
	g.Breaker.FailureThreshold = c.Data.BreakerFailures
	return g
}

// LogConfig returns the logger settings.
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
