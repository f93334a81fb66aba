package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# delta-spread configuration

[pricing]
# Continuously compounded risk-free rate
risk_free_rate = 0.05
# Flat volatility used when a quote has no implied volatility
default_volatility = 0.20
# Use default_volatility for legs without an IV instead of failing
use_fallback_volatility = false

[analysis]
# Price domain half-width in standard deviations around spot
domain_sigmas = 4.0
# Extra room around the outermost strike, as a fraction of the domain
domain_padding = 0.10
# Number of intervals scanned for breakevens
breakeven_samples = 400
# Breakeven precision in price units
breakeven_precision = 0.01
# Points in a payoff curve
curve_samples = 200

[data]
# Quote source: "mock"
source = "mock"
# Number of weekly expiries listed by the mock source
max_expiries = 6
# Parallel quote requests (0 = one per leg)
max_concurrency = 8
# Attempts per quote request before giving up
retry_attempts = 3
# Consecutive source failures before quote requests are rejected for 30s
breaker_failures = 5
# Saved trades database (defaults to ~/.local/share/delta-spread/trades.db)
# db_path = ""

# Spot prices for the mock source; other symbols get a seeded price
[data.spots]
SPY = 450.0
QQQ = 380.0

[logging]
# debug, info, warn, error
level = "info"
console = false
file = true
max_size = 10
max_backups = 5
max_age = 30

[ui]
# Enable colored output
color_enabled = true
date_format = "2006-01-02"
`

func createTemplateConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
