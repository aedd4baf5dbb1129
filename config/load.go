package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"trade-sim-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string             `yaml:"env"`
	Pair        string             `yaml:"pair"`
	Feed        FeedConfig         `yaml:"feed"`
	Fees        FeesConfig         `yaml:"fees"`
	Futures     FuturesConfig      `yaml:"futures"`
	Risk        RiskConfig         `yaml:"risk"`
	Wallet      map[string]float64 `yaml:"wallet"` // 初始入金，按资产
	Server      ServerConfig       `yaml:"server"`
	Persistence PersistenceConfig  `yaml:"persistence"`
	Logger      logger.Config      `yaml:"logger"`
}

// FeedConfig 价格模拟器参数。
type FeedConfig struct {
	InitialPrice float64 `yaml:"initialPrice"`
	Volatility   float64 `yaml:"volatility"` // 每个 tick 的最大相对扰动
	IntervalMs   int     `yaml:"intervalMs"`
	Seed         int64   `yaml:"seed"` // 0 表示按时间播种
}

// FeesConfig 固定费率。
type FeesConfig struct {
	MakerRate float64 `yaml:"makerRate"`
	TakerRate float64 `yaml:"takerRate"`
}

// FuturesConfig 合约参数。
type FuturesConfig struct {
	MaintenanceRate float64 `yaml:"maintenanceRate"`
	DefaultLeverage int     `yaml:"defaultLeverage"`
	MaxLeverage     int     `yaml:"maxLeverage"`
}

// RiskConfig 风险检查参数。
type RiskConfig struct {
	EnforceLiquidation bool `yaml:"enforceLiquidation"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metricsAddr"` // 留空关闭指标服务
}

type PersistenceConfig struct {
	Path        string `yaml:"path"`
	IntervalSec int    `yaml:"intervalSec"` // 定期落盘间隔
}

// Default returns a runnable baseline configuration.
func Default() AppConfig {
	return AppConfig{
		Env:  "dev",
		Pair: "BTC/USDT",
		Feed: FeedConfig{
			InitialPrice: 43000,
			Volatility:   0.002,
			IntervalMs:   1000,
		},
		Fees: FeesConfig{
			MakerRate: 0.0002,
			TakerRate: 0.0004,
		},
		Futures: FuturesConfig{
			MaintenanceRate: 0.005,
			DefaultLeverage: 10,
			MaxLeverage:     125,
		},
		Wallet: map[string]float64{
			"USDT": 10000,
			"BTC":  0.5,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsAddr: ":9100",
		},
		Persistence: PersistenceConfig{
			Path:        "data/tradesim_state_v3.json",
			IntervalSec: 30,
		},
		Logger: logger.DefaultConfig(),
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deploy-specific fields
// from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("TSIM_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TSIM_SNAPSHOT_PATH"); v != "" {
		cfg.Persistence.Path = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present and numerically sane.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if !strings.Contains(cfg.Pair, "/") {
		return fmt.Errorf("pair %q must be BASE/QUOTE", cfg.Pair)
	}
	if cfg.Feed.InitialPrice <= 0 {
		return errors.New("feed.initialPrice must be > 0")
	}
	if cfg.Feed.Volatility <= 0 || cfg.Feed.Volatility >= 1 {
		return errors.New("feed.volatility must be in (0, 1)")
	}
	if cfg.Feed.IntervalMs <= 0 {
		return errors.New("feed.intervalMs must be > 0")
	}
	if cfg.Fees.MakerRate < 0 || cfg.Fees.MakerRate >= 0.1 {
		return errors.New("fees.makerRate must be in [0, 0.1)")
	}
	if cfg.Fees.TakerRate < 0 || cfg.Fees.TakerRate >= 0.1 {
		return errors.New("fees.takerRate must be in [0, 0.1)")
	}
	if cfg.Futures.MaintenanceRate <= 0 || cfg.Futures.MaintenanceRate >= 0.05 {
		return errors.New("futures.maintenanceRate must be in (0, 0.05)")
	}
	if cfg.Futures.MaxLeverage < 1 {
		return errors.New("futures.maxLeverage must be >= 1")
	}
	if cfg.Futures.DefaultLeverage < 1 || cfg.Futures.DefaultLeverage > cfg.Futures.MaxLeverage {
		return errors.New("futures.defaultLeverage must be within [1, maxLeverage]")
	}
	for asset, amount := range cfg.Wallet {
		if asset == "" || amount < 0 {
			return fmt.Errorf("wallet entry %q must name an asset with amount >= 0", asset)
		}
	}
	if cfg.Persistence.IntervalSec < 0 {
		return errors.New("persistence.intervalSec must be >= 0")
	}
	return nil
}
