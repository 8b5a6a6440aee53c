package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const validDefaults = `
environment:
  mode: backtest
  log_level: info
strategies:
  - name: mean-reversion
    symbols: [SPY]
    capital:
      SPY: 10000
hist_data:
  range_days: 4
backtest:
  range_days: 20
storage:
  uri: mongodb://localhost:27017/meanrev
`

func TestLoad_DefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.yaml", validDefaults)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "backtest", cfg.Environment.Mode)
	assert.False(t, cfg.IsLive())
	assert.Equal(t, 4, cfg.HistData.RangeDays)
	assert.Equal(t, 20, cfg.Backtest.RangeDays)
	assert.Equal(t, []string{"SPY"}, cfg.AllSymbols())
}

func TestLoad_ModeOverlayAndLocalWinInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.yaml", validDefaults)
	writeFile(t, dir, "backtest.yaml", "backtest:\n  range_days: 5\n")
	writeFile(t, dir, "local.yaml", "backtest:\n  range_days: 7\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Backtest.RangeDays)
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_STORE_URI", "mongodb://db.internal:27017/meanrev")

	dir := t.TempDir()
	writeFile(t, dir, "defaults.yaml", `
environment:
  mode: backtest
  log_level: info
strategies:
  - name: mean-reversion
    symbols: [SPY]
    capital:
      SPY: 10000
hist_data:
  range_days: 4
backtest:
  range_days: 20
storage:
  uri: ${TEST_STORE_URI}
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db.internal:27017/meanrev", cfg.Storage.URI)
}

func TestLoad_UnknownFieldIsRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.yaml", validDefaults+"\nmystery_knob: true\n")

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate_CapitalMissingForSymbol(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.yaml", `
environment:
  mode: backtest
  log_level: info
strategies:
  - name: mean-reversion
    symbols: [SPY, QQQ]
    capital:
      SPY: 10000
hist_data:
  range_days: 4
backtest:
  range_days: 20
storage:
  uri: mongodb://localhost:27017/meanrev
`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QQQ")
}

func TestValidate_LiveModeRequiresCredentials(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.yaml", `
environment:
  mode: live
  log_level: info
strategies:
  - name: mean-reversion
    symbols: [SPY]
    capital:
      SPY: 10000
hist_data:
  range_days: 4
backtest:
  range_days: 20
storage:
  uri: mongodb://localhost:27017/meanrev
`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token")
}

func TestNormalize_SandboxSelectsSandboxHost(t *testing.T) {
	cfg := &Config{Broker: BrokerConfig{Sandbox: true}}
	cfg.normalize()
	assert.Contains(t, cfg.Broker.BaseURL, "sandbox")

	cfg = &Config{Broker: BrokerConfig{Sandbox: false}}
	cfg.normalize()
	assert.NotContains(t, cfg.Broker.BaseURL, "sandbox")
}

func TestAllSymbols_DeduplicatesAcrossStrategies(t *testing.T) {
	cfg := &Config{Strategies: []StrategyConfig{
		{Name: "a", Symbols: []string{"SPY", "QQQ"}},
		{Name: "b", Symbols: []string{"QQQ", "IWM"}},
	}}
	assert.Equal(t, []string{"SPY", "QQQ", "IWM"}, cfg.AllSymbols())
}
