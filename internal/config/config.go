package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ExchangeConfig struct {
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	RestEndpoint   string `yaml:"rest_endpoint"`
	Sandbox        bool   `yaml:"sandbox"`
	RequestTimeout int    `yaml:"request_timeout_seconds"`
}

type TimeframesConfig struct {
	Spot string `yaml:"spot"`
	Mid  string `yaml:"mid"`
	Long string `yaml:"long"`
}

type AnalysisConfig struct {
	ScanIntervalSeconds int              `yaml:"scan_interval_seconds"`
	MaxAssets           int              `yaml:"max_assets"`
	MaxWorkers          int              `yaml:"max_workers"`
	SignalThreshold     float64          `yaml:"signal_threshold"`
	AggressiveMode      bool             `yaml:"aggressive_mode"`
	AggressiveFactor    float64          `yaml:"aggressive_factor"`
	Timeframes          TimeframesConfig `yaml:"timeframes"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
}

// Load reads the YAML config and overlays credentials from the
// environment. A .env file next to the process is picked up when
// present; BINGX_API_KEY / BINGX_SECRET_KEY always win over the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Missing .env is fine; env vars may come from the environment itself.
	_ = godotenv.Load()
	if v := os.Getenv("BINGX_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("BINGX_SECRET_KEY"); v != "" {
		cfg.Exchange.APISecret = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			RequestTimeout: 30,
		},
		Analysis: AnalysisConfig{
			ScanIntervalSeconds: 30,
			MaxAssets:           100,
			MaxWorkers:          4,
			SignalThreshold:     0.3,
			AggressiveFactor:    0.3,
			Timeframes: TimeframesConfig{
				Spot: "1m",
				Mid:  "2h",
				Long: "4h",
			},
		},
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Port: 8080},
		Storage: StorageConfig{Path: "analyzer.db"},
	}
}

func (c *Config) validate() error {
	if c.Analysis.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("scan_interval_seconds must be positive, got %d", c.Analysis.ScanIntervalSeconds)
	}
	if c.Analysis.MaxAssets <= 0 {
		return fmt.Errorf("max_assets must be positive, got %d", c.Analysis.MaxAssets)
	}
	if c.Analysis.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.Analysis.MaxWorkers)
	}
	if c.Analysis.SignalThreshold < 0 || c.Analysis.SignalThreshold > 1 {
		return fmt.Errorf("signal_threshold must be in [0,1], got %f", c.Analysis.SignalThreshold)
	}
	if c.Analysis.AggressiveFactor <= 0 || c.Analysis.AggressiveFactor > 1 {
		return fmt.Errorf("aggressive_factor must be in (0,1], got %f", c.Analysis.AggressiveFactor)
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Exchange.RequestTimeout) * time.Second
}

// ScanInterval applies the aggressive-mode shrink when enabled.
func (c *Config) ScanInterval() time.Duration {
	interval := time.Duration(c.Analysis.ScanIntervalSeconds) * time.Second
	if c.Analysis.AggressiveMode {
		interval = time.Duration(float64(interval) * c.Analysis.AggressiveFactor)
	}
	return interval
}
