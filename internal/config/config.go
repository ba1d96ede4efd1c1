// Package config loads application configuration from a YAML file with
// environment overrides for secrets (.env supported via godotenv).
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

type ExchangeConfig struct {
	BybitAPIKey      string `yaml:"bybit_api_key"`
	BybitAPISecret   string `yaml:"bybit_api_secret"`
	BybitTestnet     bool   `yaml:"bybit_testnet"`
	BinanceAPIKey    string `yaml:"binance_api_key"`
	BinanceAPISecret string `yaml:"binance_api_secret"`
}

type DatabaseConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type ModelConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Config struct {
	Fees           backtest.FeeSchedule `yaml:"fees"`
	CapitalCeiling float64              `yaml:"capital_ceiling"`
	MaxRunsPerUser int                  `yaml:"max_runs_per_user"`
	LogLevel       string               `yaml:"log_level"`
	Exchange       ExchangeConfig       `yaml:"exchange"`
	Database       DatabaseConfig       `yaml:"database"`
	Model          ModelConfig          `yaml:"model"`
}

// Default returns a config usable with no file at all.
func Default() *Config {
	return &Config{
		Fees:           backtest.DefaultFeeSchedule(),
		CapitalCeiling: backtest.DefaultCapitalCeiling,
		MaxRunsPerUser: 3,
		LogLevel:       "info",
		Model:          ModelConfig{TimeoutSeconds: 10},
	}
}

// Load reads the optional YAML file, then applies environment overrides.
// A missing file is not an error; missing env vars are ignored.
func Load(path string) (*Config, error) {
	// Best effort: a missing .env just means the environment is already set.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Exchange.BybitAPIKey, "BYBIT_API_KEY")
	overrideString(&cfg.Exchange.BybitAPISecret, "BYBIT_API_SECRET")
	overrideString(&cfg.Exchange.BinanceAPIKey, "BINANCE_API_KEY")
	overrideString(&cfg.Exchange.BinanceAPISecret, "BINANCE_API_SECRET")
	overrideString(&cfg.Database.PostgresDSN, "POSTGRES_DSN")
	overrideString(&cfg.Database.SQLitePath, "SQLITE_PATH")
	overrideString(&cfg.Model.BaseURL, "MODEL_BASE_URL")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
