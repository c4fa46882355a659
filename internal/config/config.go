// Package config defines all configuration for the rebalancing bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via REBAL_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Simulate  bool            `mapstructure:"simulate"`
	Pair      PairConfig      `mapstructure:"pair"`
	Venue     VenueConfig     `mapstructure:"venue"`
	API       APIConfig       `mapstructure:"api"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// PairConfig names the traded pair. Volumes are in Base, prices are
// Quote-per-Base (spec §3).
type PairConfig struct {
	Base  string `mapstructure:"base"`
	Quote string `mapstructure:"quote"`
}

// VenueConfig selects which of the three signing schemes (spec §4.A) and
// venue-specific protocol quirks apply.
type VenueConfig struct {
	Name             string        `mapstructure:"name"` // "mtgox" | "kraken" | "poloniex"
	RESTBaseURL      string        `mapstructure:"rest_base_url"`
	StreamURL        string        `mapstructure:"stream_url"`
	MinRequestDelay  time.Duration `mapstructure:"min_request_delay"`
	BaseSubunits     int64         `mapstructure:"base_subunits"`  // e.g. 1e8 for BTC
	QuoteSubunits    int64         `mapstructure:"quote_subunits"` // e.g. 1e5 for USD at 5dp
	SatoshiDustUnits int64         `mapstructure:"satoshi_dust_units"`
}

// APIConfig holds the venue credentials used for signed calls (§4.A).
type APIConfig struct {
	Key        string `mapstructure:"key"`
	Secret     string `mapstructure:"secret"`
	Passphrase string `mapstructure:"passphrase"` // unused by mtgox/kraken/poloniex, reserved
}

// StrategyConfig tunes the rebalancer's pricing engine and halt thresholds
// (spec §6 enumerated configuration).
type StrategyConfig struct {
	Distance         float64 `mapstructure:"distance"`      // buy-side step % from center
	DistanceSell     float64 `mapstructure:"distance_sell"` // sell-side step % from center
	QuoteCold        float64 `mapstructure:"quote_cold"`
	BaseCold         float64 `mapstructure:"base_cold"`
	QuoteLimit       float64 `mapstructure:"quote_limit"`
	BaseLimit        float64 `mapstructure:"base_limit"`
	Marker           int     `mapstructure:"marker"`
	CompensateFees   bool    `mapstructure:"compensate_fees"`
	FeeRate          float64 `mapstructure:"fee_rate"` // round-trip fee rate, e.g. 0.002 for 0.2%
	CorrectionMargin float64 `mapstructure:"correction_margin"`
	MinOrderVolume   float64 `mapstructure:"min_order_volume"`

	SimulateQuote float64 `mapstructure:"simulate_quote"`
	SimulateBase  float64 `mapstructure:"simulate_base"`
	SimulateFee   float64 `mapstructure:"simulate_fee"`

	ForcedPriceDir     string `mapstructure:"forced_price_dir"`
	ForcedPricePattern string `mapstructure:"forced_price_pattern"`
}

// StoreConfig sets where strategy state is persisted (JSON file).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the health/status/control/metrics HTTP server.
// The CSV trade log is written to the store directory whether or not the
// server is enabled.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: REBAL_API_KEY, REBAL_API_SECRET, REBAL_API_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("REBAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("REBAL_API_KEY"); key != "" {
		cfg.API.Key = key
	}
	if secret := os.Getenv("REBAL_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("REBAL_API_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if os.Getenv("REBAL_SIMULATE") == "true" || os.Getenv("REBAL_SIMULATE") == "1" {
		cfg.Simulate = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Pair.Base == "" || c.Pair.Quote == "" {
		return fmt.Errorf("pair.base and pair.quote are required")
	}
	switch c.Venue.Name {
	case "mtgox", "kraken", "poloniex":
	default:
		return fmt.Errorf("venue.name must be one of: mtgox, kraken, poloniex")
	}
	if c.Venue.RESTBaseURL == "" {
		return fmt.Errorf("venue.rest_base_url is required")
	}
	if !c.Simulate {
		if c.API.Key == "" {
			return fmt.Errorf("api.key is required (set REBAL_API_KEY)")
		}
		if c.API.Secret == "" {
			return fmt.Errorf("api.secret is required (set REBAL_API_SECRET)")
		}
	}
	if c.Strategy.Distance <= 0 {
		return fmt.Errorf("strategy.distance must be > 0")
	}
	if c.Strategy.DistanceSell <= 0 {
		return fmt.Errorf("strategy.distance_sell must be > 0")
	}
	if c.Strategy.CorrectionMargin < 0 {
		return fmt.Errorf("strategy.correction_margin must be >= 0")
	}
	if c.Strategy.MinOrderVolume <= 0 {
		return fmt.Errorf("strategy.min_order_volume must be > 0")
	}
	if c.Venue.BaseSubunits <= 0 || c.Venue.QuoteSubunits <= 0 {
		return fmt.Errorf("venue.base_subunits and venue.quote_subunits must be > 0")
	}
	return nil
}
