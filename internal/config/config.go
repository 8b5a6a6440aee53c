// Package config provides configuration loading for the trading engine.
package config

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
)

const (
	// defaultHistDataRange is used when hist_data.range_days is unset.
	defaultHistDataRange = 20
	// defaultBacktestRange is used when backtest.range_days is unset.
	defaultBacktestRange = 20
)

// Config represents the complete application configuration, merged from
// a layered set of YAML files (defaults, per-run-mode overrides, local
// overrides).
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Broker      BrokerConfig      `yaml:"broker"`
	Strategies  []StrategyConfig  `yaml:"strategies"`
	HistData    HistDataConfig    `yaml:"hist_data"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Storage     StorageConfig     `yaml:"storage"`
	StatusAPI   StatusAPIConfig   `yaml:"status_api"`
}

// EnvironmentConfig defines the run mode and logging level.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // live | backtest
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// BrokerConfig defines broker API settings. Credentials are expanded
// from environment variables via ${VAR} references in the YAML, never
// stored in the file directly.
type BrokerConfig struct {
	Sandbox     bool   `yaml:"sandbox"`
	AccessToken string `yaml:"access_token"`
	AccountID   string `yaml:"account_id"`
	BaseURL     string `yaml:"base_url"`
	StreamURL   string `yaml:"stream_url"`
}

// StrategyConfig defines one configured strategy instance: its name,
// the symbols it trades, and the capital cap per symbol.
type StrategyConfig struct {
	Name    string           `yaml:"name"`
	Symbols []string         `yaml:"symbols"`
	Capital map[string]int64 `yaml:"capital"`
}

// HistDataConfig controls how much history feeds the statistics engine.
type HistDataConfig struct {
	RangeDays int `yaml:"range_days"`
}

// BacktestConfig controls the replay window for backtest mode.
type BacktestConfig struct {
	RangeDays int    `yaml:"range_days"`
	EndDate   string `yaml:"end_date"` // YYYY-MM-DD; empty means today
}

// StorageConfig defines the document store connection.
type StorageConfig struct {
	URI string `yaml:"uri"`
}

// StatusAPIConfig defines the read-only operational HTTP surface.
type StatusAPIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and merges defaults.yaml, <mode>.yaml, and local.yaml from
// dir, in that order, expanding environment variables in each file
// before parsing.
func Load(dir string) (*Config, error) {
	var cfg Config

	layers := []string{"defaults.yaml"}
	// The run-mode overlay is chosen after defaults.yaml is parsed, since
	// defaults.yaml may itself set environment.mode; load defaults first.
	if err := mergeLayer(&cfg, dir, "defaults.yaml", true); err != nil {
		return nil, err
	}
	if cfg.Environment.Mode != "" {
		layers = append(layers, cfg.Environment.Mode+".yaml")
	}
	layers = append(layers, "local.yaml")

	for _, name := range layers[1:] {
		if err := mergeLayer(&cfg, dir, name, false); err != nil {
			return nil, err
		}
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func mergeLayer(cfg *Config, dir, name string, required bool) error {
	path := dir + "/" + name
	data, err := os.ReadFile(path) // #nosec G304 -- configPath is operator-supplied
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading config file %q: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}
	return nil
}

// Validate checks that all configuration values are valid and
// consistent.
func (c *Config) Validate() error {
	switch c.Environment.Mode {
	case "live", "backtest":
	default:
		return fmt.Errorf("environment.mode must be 'live' or 'backtest'")
	}

	switch strings.ToLower(c.Environment.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of: debug, info, warn, error")
	}

	if c.Environment.Mode == "live" {
		if strings.TrimSpace(c.Broker.AccessToken) == "" {
			return fmt.Errorf("broker.access_token is required in live mode")
		}
		if strings.TrimSpace(c.Broker.AccountID) == "" {
			return fmt.Errorf("broker.account_id is required in live mode")
		}
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy must be configured")
	}
	for _, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategy name is required")
		}
		if len(s.Symbols) == 0 {
			return fmt.Errorf("strategy %q: symbols must be non-empty", s.Name)
		}
		for _, sym := range s.Symbols {
			if _, ok := s.Capital[sym]; !ok {
				return fmt.Errorf("strategy %q: capital cap missing for symbol %q", s.Name, sym)
			}
		}
	}

	if c.HistData.RangeDays <= 0 {
		return fmt.Errorf("hist_data.range_days must be > 0")
	}
	if c.Backtest.RangeDays <= 0 {
		return fmt.Errorf("backtest.range_days must be > 0")
	}

	if strings.TrimSpace(c.Storage.URI) == "" {
		return fmt.Errorf("storage.uri is required")
	}

	if c.StatusAPI.Enabled && (c.StatusAPI.Port <= 0 || c.StatusAPI.Port > 65535) {
		return fmt.Errorf("status_api.port must be between 1 and 65535")
	}

	return nil
}

// normalize sets default values for optional configuration fields.
func (c *Config) normalize() {
	if strings.TrimSpace(c.Environment.Mode) == "" {
		c.Environment.Mode = "live"
	}
	if strings.TrimSpace(c.Environment.LogLevel) == "" {
		c.Environment.LogLevel = "info"
	}
	if c.HistData.RangeDays == 0 {
		c.HistData.RangeDays = defaultHistDataRange
	}
	if c.Backtest.RangeDays == 0 {
		c.Backtest.RangeDays = defaultBacktestRange
	}
	if strings.TrimSpace(c.Broker.BaseURL) == "" {
		if c.Broker.Sandbox {
			c.Broker.BaseURL = "https://sandbox.tradier.com/v1"
		} else {
			c.Broker.BaseURL = "https://api.tradier.com/v1"
		}
	}
	if strings.TrimSpace(c.Broker.StreamURL) == "" {
		c.Broker.StreamURL = "wss://ws.tradier.com/v1/markets/events"
	}
	if c.StatusAPI.Port == 0 {
		c.StatusAPI.Port = 9847
	}
}

// AllSymbols returns the deduplicated union of symbols across every
// configured strategy.
func (c *Config) AllSymbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.Strategies {
		for _, sym := range s.Symbols {
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

// IsLive reports whether the engine is configured for live trading.
func (c *Config) IsLive() bool {
	return c.Environment.Mode == "live"
}

// DomainStrategies converts the YAML-shaped strategy configs into the
// domain model's StrategyConfig, the shape tradingworker and backtest
// consume.
func (c *Config) DomainStrategies() []domainmodel.StrategyConfig {
	out := make([]domainmodel.StrategyConfig, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		out = append(out, domainmodel.StrategyConfig{
			Name:    s.Name,
			Symbols: s.Symbols,
			Capital: s.Capital,
		})
	}
	return out
}
