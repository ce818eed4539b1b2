package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"coinwatch-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Poller  PollerConfig  `yaml:"poller"`
	Gecko   GeckoConfig   `yaml:"gecko"`
	Stream  StreamConfig  `yaml:"stream"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Log     logger.Config `yaml:"log"`
	Monitor MonitorConfig `yaml:"monitor"`
}

type PollerConfig struct {
	IntervalSeconds int      `yaml:"intervalSeconds"` // 轮询周期
	Universe        []string `yaml:"universe"`        // 追踪的 coin id 列表
	VsCurrency      string   `yaml:"vsCurrency"`      // 计价货币，默认 usd
}

type GeckoConfig struct {
	BaseURL        string  `yaml:"baseURL"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
	RateLimit      float64 `yaml:"rateLimit"` // 每秒令牌数
	RateBurst      int     `yaml:"rateBurst"` // 最大突发令牌数
}

type StreamConfig struct {
	Endpoint         string `yaml:"endpoint"`
	Quote            string `yaml:"quote"`            // 计价币后缀，默认 usdt
	StalenessSeconds int    `yaml:"stalenessSeconds"` // 超过该时长无消息视为陈旧
}

type LedgerConfig struct {
	Cap int `yaml:"cap"`
}

type MonitorConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// PollInterval 返回轮询周期。
func (c AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

// StalenessThreshold 返回流陈旧阈值。
func (c AppConfig) StalenessThreshold() time.Duration {
	return time.Duration(c.Stream.StalenessSeconds) * time.Second
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides endpoints from env vars
// if present. Useful for pointing at mirrors or test servers.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("CW_GECKO_BASE_URL"); v != "" {
		cfg.Gecko.BaseURL = v
	}
	if v := os.Getenv("CW_STREAM_ENDPOINT"); v != "" {
		cfg.Stream.Endpoint = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Poller.VsCurrency == "" {
		cfg.Poller.VsCurrency = "usd"
	}
	if cfg.Gecko.TimeoutSeconds <= 0 {
		cfg.Gecko.TimeoutSeconds = 10
	}
	if cfg.Gecko.RateLimit <= 0 {
		cfg.Gecko.RateLimit = 0.5
	}
	if cfg.Gecko.RateBurst <= 0 {
		cfg.Gecko.RateBurst = 2
	}
	if cfg.Stream.Quote == "" {
		cfg.Stream.Quote = "usdt"
	}
	if cfg.Ledger.Cap == 0 {
		cfg.Ledger.Cap = 31
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Poller.IntervalSeconds <= 0 {
		return errors.New("poller.intervalSeconds must be > 0")
	}
	if len(cfg.Poller.Universe) == 0 {
		return errors.New("poller.universe is required")
	}
	for _, id := range cfg.Poller.Universe {
		if id == "" {
			return errors.New("poller.universe contains an empty coin id")
		}
	}
	if cfg.Ledger.Cap <= 0 {
		return fmt.Errorf("ledger.cap must be > 0, got %d", cfg.Ledger.Cap)
	}
	if cfg.Stream.StalenessSeconds < 0 {
		return errors.New("stream.stalenessSeconds must be >= 0")
	}
	return nil
}
