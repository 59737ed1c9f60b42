package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaultsAndOverridesFile(t *testing.T) {
	path := writeTemp(t, `
[trading]
symbol = "ETHUSDT"
enabled = false

[risk]
max_position = 5
max_order_size = 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ETHUSDT", cfg.Trading.Symbol)
	require.Equal(t, "binance-futures", cfg.Network.Name) // untouched default
	require.Equal(t, 3000, cfg.Dashboard.Port)            // untouched default
	require.Equal(t, 5.0, cfg.Risk.MaxPosition)
}

func TestLoadEnvOverridesCredentials(t *testing.T) {
	path := writeTemp(t, `
[risk]
max_position = 5
max_order_size = 1
`)

	t.Setenv("TRADING_API_KEY", "env-key")
	t.Setenv("TRADING_SECRET_KEY", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.Trading.APIKey)
	require.Equal(t, "env-secret", cfg.Trading.SecretKey)
}

func TestValidateRequiresCredentialsWhenTradingEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.Enabled = true
	cfg.Risk.MaxPosition = 1
	cfg.Risk.MaxOrderSize = 1

	err := cfg.Validate()
	require.ErrorContains(t, err, "trading.api_key")

	cfg.Trading.APIKey = "k"
	cfg.Trading.SecretKey = "s"
	require.NoError(t, cfg.Validate())
}

func TestValidateAllowsDisabledTradingWithoutCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Risk.MaxPosition = 1
	cfg.Risk.MaxOrderSize = 1
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingRiskBounds(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.ErrorContains(t, err, "risk.max_order_size")
}

func TestValidateRejectsBadDashboardPort(t *testing.T) {
	cfg := Defaults()
	cfg.Risk.MaxPosition = 1
	cfg.Risk.MaxOrderSize = 1
	cfg.Dashboard.Port = 70000
	require.ErrorContains(t, cfg.Validate(), "dashboard.port")
}
