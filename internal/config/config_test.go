package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempToml(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeTempToml(t, `
mode = "trade"
log_level = "debug"

[backend]
base_url = "https://api.example.test"

[router]
enabled = true
max_equity_pct = 2.0
max_age = "30m"

[scan]
interval = "2s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trade", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://api.example.test", cfg.Backend.BaseURL)
	assert.True(t, cfg.Router.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Router.MaxAge.Duration)
	assert.Equal(t, 2*time.Second, cfg.Scan.Interval.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10_000.0, cfg.Paper.InitBalance)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 20*time.Second, cfg.Backend.ScanTimeout.Duration)
	assert.Equal(t, 0.65, cfg.Scan.Threshold)
	assert.Equal(t, 3, cfg.Scan.MaxEvents)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}, cfg.Scan.Symbols)
	assert.Equal(t, 1.0, cfg.Router.Leverage)
}

func TestEnvOverrides(t *testing.T) {
	path := writeTempToml(t, `mode = "monitor"`)

	t.Setenv("MYSTRIX_BACKEND_BASE_URL", "https://override.example.test")
	t.Setenv("MYSTRIX_ROUTER_ENABLED", "true")
	t.Setenv("MYSTRIX_ROUTER_MAX_EQUITY_PCT", "0.05")
	t.Setenv("MYSTRIX_SCAN_MAX_ASSETS", "7")
	t.Setenv("MYSTRIX_SERVER_CORS_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("MYSTRIX_SCAN_INTERVAL", "9s")
	t.Setenv("MYSTRIX_SCAN_THRESHOLD", "0.8")
	t.Setenv("MYSTRIX_ROUTER_LEVERAGE", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.test", cfg.Backend.BaseURL)
	assert.True(t, cfg.Router.Enabled)
	assert.InDelta(t, 0.05, cfg.Router.MaxEquityPct, 1e-12)
	assert.Equal(t, 7, cfg.Scan.MaxAssets)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 9*time.Second, cfg.Scan.Interval.Duration)
	assert.InDelta(t, 0.8, cfg.Scan.Threshold, 1e-12)
	assert.Equal(t, 5.0, cfg.Router.Leverage)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Backend.BaseURL = ""
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "bogus"`)
	assert.Contains(t, err.Error(), `unknown log_level "loud"`)
	assert.Contains(t, err.Error(), "backend: base_url")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateDefaultsPass(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateLiveModeNeedsVenueCreds(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Paper.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venue: either api_key or encrypted_creds_path")

	cfg.Venue.ApiKey = "k"
	cfg.Venue.ApiSecret = "s"
	require.NoError(t, cfg.Validate())
}
