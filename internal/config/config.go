// Package config defines the engine's configuration. Config is loaded
// from a TOML file with sensitive fields overridable via TRADING_* env
// vars, following the same defaults-then-decode-then-env-override shape
// the rest of this corpus uses for TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration. Maps directly to the TOML file
// structure described by the engine's external-interfaces contract.
type Config struct {
	Network   NetworkConfig   `toml:"network"`
	Trading   TradingConfig   `toml:"trading"`
	Risk      RiskConfig      `toml:"risk"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Logging   LoggingConfig   `toml:"logging"`
	Storage   StorageConfig   `toml:"storage"`
}

// NetworkConfig names the venue and its endpoints.
type NetworkConfig struct {
	Name    string `toml:"name"`
	RESTURL string `toml:"rest_url"`
	WSURL   string `toml:"ws_url"`
}

// TradingConfig carries credentials and the two independent safety
// toggles: Enabled gates whether the engine is allowed to arm at all,
// DryRun gates whether placed orders actually reach the network.
type TradingConfig struct {
	Symbol    string `toml:"symbol"`
	APIKey    string `toml:"api_key"`
	SecretKey string `toml:"secret_key"`
	Enabled   bool   `toml:"enabled"`
	DryRun    bool   `toml:"dry_run"`
}

// RiskConfig sets the bounds the risk gate and the auto-stop evaluator
// enforce.
type RiskConfig struct {
	MaxPosition  float64 `toml:"max_position"`
	MaxDrawdown  float64 `toml:"max_drawdown"`
	MaxOrderSize float64 `toml:"max_order_size"`
}

// StrategyConfig selects the initial active strategy and carries the
// tuning parameters each concrete strategy constructor reads from.
type StrategyConfig struct {
	Active           string  `toml:"active"`
	DisableThrottle  bool    `toml:"disable_throttle"`
	WindowSize       int     `toml:"window_size"`
	Threshold        float64 `toml:"threshold"`
	PriceThreshold   float64 `toml:"price_threshold"`
	VolumeMultiplier float64 `toml:"volume_multiplier"`
	FeeMaker         float64 `toml:"fee_maker"`
	FeeTaker         float64 `toml:"fee_taker"`
}

// DashboardConfig controls the control-plane HTTP server. Supplemented:
// the source this was distilled from hardcodes :3000; exposed here so
// the port has a configurable home.
type DashboardConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// LoggingConfig is ambient configuration for the root slog logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// StorageConfig names the SQLite file the persistence sink opens.
type StorageConfig struct {
	Path string `toml:"path"`
}

// Defaults returns a Config populated with reasonable defaults for every
// field this system does not require an operator to set explicitly.
func Defaults() Config {
	return Config{
		Network: NetworkConfig{
			Name:    "binance-futures",
			RESTURL: "https://fapi.binance.com",
			WSURL:   "wss://fstream.binance.com/ws",
		},
		Trading: TradingConfig{
			Symbol: "BTCUSDT",
		},
		Strategy: StrategyConfig{
			Active:           "ping-pong",
			WindowSize:       20,
			Threshold:        50,
			PriceThreshold:   100,
			VolumeMultiplier: 3,
			FeeTaker:         0.0004,
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Port:    3000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Path: "trading.db",
		},
	}
}

// Load reads a TOML file at path on top of Defaults() and applies
// TRADING_API_KEY / TRADING_SECRET_KEY environment overrides for the
// credential fields. The returned Config is not validated; callers
// invoke Validate() themselves once loaded.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if key := os.Getenv("TRADING_API_KEY"); key != "" {
		cfg.Trading.APIKey = key
	}
	if secret := os.Getenv("TRADING_SECRET_KEY"); secret != "" {
		cfg.Trading.SecretKey = secret
	}

	return &cfg, nil
}

// Validate checks the fields this system cannot safely run without. A
// missing API key/secret is only fatal when trading is enabled — a
// disarmed dry-run instance has no need for credentials.
func (c *Config) Validate() error {
	if c.Network.RESTURL == "" {
		return fmt.Errorf("config: network.rest_url is required")
	}
	if c.Network.WSURL == "" {
		return fmt.Errorf("config: network.ws_url is required")
	}
	if c.Trading.Symbol == "" {
		return fmt.Errorf("config: trading.symbol is required")
	}
	if c.Trading.Enabled {
		if c.Trading.APIKey == "" {
			return fmt.Errorf("config: trading.api_key is required when trading.enabled is true (set TRADING_API_KEY)")
		}
		if c.Trading.SecretKey == "" {
			return fmt.Errorf("config: trading.secret_key is required when trading.enabled is true (set TRADING_SECRET_KEY)")
		}
	}
	if c.Risk.MaxOrderSize <= 0 {
		return fmt.Errorf("config: risk.max_order_size must be > 0")
	}
	if c.Risk.MaxPosition <= 0 {
		return fmt.Errorf("config: risk.max_position must be > 0")
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("config: dashboard.port must be 1-65535, got %d", c.Dashboard.Port)
	}
	return nil
}
