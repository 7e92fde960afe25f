package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HorizonTrader/internal/model"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "paper", cfg.Broker.Kind)
	assert.Equal(t, 0.60, cfg.Strategy.EnterThreshold)
	assert.Equal(t, 0.45, cfg.Strategy.ExitThreshold)
	assert.Equal(t, time.Hour, cfg.Risk.BuyCooldown)
	assert.True(t, *cfg.Risk.WholeShares)
	assert.Equal(t, 0.10, cfg.HorizonFractions()[model.HorizonMid])
	assert.Equal(t, 3*24*time.Hour, cfg.MaxHold()[model.HorizonShort])
	assert.Equal(t, "state/auto_runs.jsonl", cfg.State.RunLogPath)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeYAML(t, `
broker:
  kind: http
  base_url: http://localhost:5000/api/v1
  api_key: from-file
strategy:
  enter_threshold: 0.7
risk:
  horizon_fraction:
    short: 0.02
  buy_cooldown: 90m
  whole_shares: false
timebox:
  max_hold:
    long: 2160h
schedule:
  watchlist_stocks: [SBIN]
`)
	t.Setenv("BROKER_API_KEY", "from-env")
	t.Setenv("EXIT_CONF_TH", "0.3")
	t.Setenv("WATCHLIST_CRYPTO", "BTC/USD, SOL/USD ,")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "from-env", cfg.Broker.APIKey)
	assert.Equal(t, 0.7, cfg.Strategy.EnterThreshold)
	assert.Equal(t, 0.3, cfg.Strategy.ExitThreshold)
	assert.Equal(t, 0.02, cfg.Risk.HorizonFraction["short"])
	assert.Equal(t, 0.15, cfg.Risk.HorizonFraction["long"])
	assert.Equal(t, 90*time.Minute, cfg.Risk.BuyCooldown)
	assert.False(t, *cfg.Risk.WholeShares)
	assert.Equal(t, 2160*time.Hour, cfg.Timebox.MaxHold["long"])
	assert.Equal(t, []string{"SBIN"}, cfg.Schedule.WatchlistStocks)
	assert.Equal(t, []string{"BTC/USD", "SOL/USD"}, cfg.Schedule.WatchlistCrypto)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"http broker without url": func(c *Config) { c.Broker.Kind = "http"; c.Broker.APIKey = "k" },
		"unknown broker":          func(c *Config) { c.Broker.Kind = "ib" },
		"unknown data source":     func(c *Config) { c.DataSource.Kind = "csv" },
		"threshold out of range":  func(c *Config) { c.Strategy.EnterThreshold = 1.5 },
		"unknown horizon":         func(c *Config) { c.Risk.HorizonFraction["weekly"] = 0.1 },
		"fraction above one":      func(c *Config) { c.Risk.HorizonFraction["mid"] = 2 },
		"negative share cap":      func(c *Config) { c.Risk.MaxSharesPerSymbol = -1 },
		"unknown ledger backend":  func(c *Config) { c.State.LedgerBackend = "redis" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			require.NoError(t, err)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	cfg.Strategy.ExitThreshold = 0.9
	cfg.Risk.Timezone = "Mars/Olympus"
	w := cfg.Warnings()
	assert.Contains(t, w, "strategy.exit_threshold is above enter_threshold")
	assert.Contains(t, w, `risk.timezone "Mars/Olympus" unknown, falling back to UTC`)
	assert.Equal(t, time.UTC, Location("Mars/Olympus"))
}
