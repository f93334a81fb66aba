package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "delta-spread/internal/errors"
)

func TestLoadWritesTemplateOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Pricing.RiskFreeRate != 0.05 || cfg.Analysis.BreakevenSamples != 400 {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if len(cfg.Data.Spots) != 2 {
		t.Errorf("Spots = %v, want 2 entries", cfg.Data.Spots)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[pricing]
risk_free_rate = 0.03
use_fallback_volatility = true
default_volatility = 0.35

[analysis]
curve_samples = 50

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pricing.RiskFreeRate != 0.03 {
		t.Errorf("RiskFreeRate = %v", cfg.Pricing.RiskFreeRate)
	}
	if cfg.Analysis.CurveSamples != 50 || cfg.Analysis.BreakevenSamples != 400 {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if cfg.Data.Source != "mock" {
		t.Errorf("Source = %q, want default mock", cfg.Data.Source)
	}

	opts := cfg.ResolveOptions(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	if opts.FallbackVolatility == nil || *opts.FallbackVolatility != 0.35 {
		t.Errorf("FallbackVolatility = %v", opts.FallbackVolatility)
	}
	if ec := cfg.EngineConfig(); ec.CurveSamples != 50 || ec.Breakeven.Samples != 400 {
		t.Errorf("EngineConfig = %+v", ec)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("DELTASPREAD_RISK_FREE_RATE", "0.02")
	t.Setenv("DELTASPREAD_VOLATILITY", "0.5")
	t.Setenv("DELTASPREAD_LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pricing.RiskFreeRate != 0.02 {
		t.Errorf("RiskFreeRate = %v", cfg.Pricing.RiskFreeRate)
	}
	if !cfg.Pricing.UseFallbackVolatility || cfg.Pricing.DefaultVolatility != 0.5 {
		t.Errorf("Pricing = %+v", cfg.Pricing)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestEnvOverrideRejectsGarbage(t *testing.T) {
	t.Setenv("DELTASPREAD_RISK_FREE_RATE", "five")
	if _, err := Load(filepath.Join(t.TempDir(), "config.toml")); err == nil {
		t.Fatal("expected error for non-numeric rate")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative volatility", func(c *Config) { c.Pricing.DefaultVolatility = -0.1 }},
		{"huge rate", func(c *Config) { c.Pricing.RiskFreeRate = 1 }},
		{"zero sigmas", func(c *Config) { c.Analysis.DomainSigmas = 0 }},
		{"padding above one", func(c *Config) { c.Analysis.DomainPadding = 1.5 }},
		{"one sample", func(c *Config) { c.Analysis.BreakevenSamples = 1 }},
		{"zero precision", func(c *Config) { c.Analysis.BreakevenPrecision = 0 }},
		{"unknown source", func(c *Config) { c.Data.Source = "kite" }},
		{"no retry attempts", func(c *Config) { c.Data.RetryAttempts = 0 }},
		{"bad spot", func(c *Config) { c.Data.Spots = map[string]float64{"spy": 0} }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}
