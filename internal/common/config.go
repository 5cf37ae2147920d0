// Package common provides shared utilities for tradedash
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for tradedash
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Backend     BackendConfig   `toml:"backend"`
	Polling     PollingConfig   `toml:"polling"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Alerts      AlertConfig     `toml:"alerts"`
	Search      SearchConfig    `toml:"search"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// BackendConfig holds configuration for the trading backend REST API.
type BackendConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BackendConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// PollingConfig controls the orchestrator's refresh loop.
type PollingConfig struct {
	Interval        string `toml:"interval"`         // tick period for all four domains
	FreshnessWindow string `toml:"freshness_window"` // repeat chart fetches for the same symbol are suppressed within this window
}

// GetInterval parses and returns the poll interval
func (c *PollingConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetFreshnessWindow parses and returns the chart freshness window
func (c *PollingConfig) GetFreshnessWindow() time.Duration {
	d, err := time.ParseDuration(c.FreshnessWindow)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// SchedulerConfig controls the toggle verification cycle.
type SchedulerConfig struct {
	SettleDelay string `toml:"settle_delay"` // wait after the enable/disable command before the first verify
	RetryBase   string `toml:"retry_base"`   // exponential backoff base between verify attempts
	MaxRetries  int    `toml:"max_retries"`
}

// GetSettleDelay parses and returns the settle delay
func (c *SchedulerConfig) GetSettleDelay() time.Duration {
	d, err := time.ParseDuration(c.SettleDelay)
	if err != nil {
		return 1 * time.Second
	}
	return d
}

// GetRetryBase parses and returns the backoff base delay
func (c *SchedulerConfig) GetRetryBase() time.Duration {
	d, err := time.ParseDuration(c.RetryBase)
	if err != nil {
		return 1 * time.Second
	}
	return d
}

// GetMaxRetries returns the verification retry cap
func (c *SchedulerConfig) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// AlertConfig holds the portfolio alert thresholds, both negative percentages.
type AlertConfig struct {
	TotalLossPct float64 `toml:"total_loss_pct"`
	DailyLossPct float64 `toml:"daily_loss_pct"`
}

// SearchConfig holds the stock search constraints. DebounceMS is served to
// the browser so the search box waits before firing requests.
type SearchConfig struct {
	MinQueryLength int `toml:"min_query_length"`
	MaxResults     int `toml:"max_results"`
	DebounceMS     int `toml:"debounce_ms"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultUSDKRWRate is used for KRW conversion until the first successful
// usd-krw index fetch replaces it.
const DefaultUSDKRWRate = 1300.0

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8080/api",
			RateLimit: 10,
			Timeout:   "10s",
		},
		Polling: PollingConfig{
			Interval:        "30s",
			FreshnessWindow: "10s",
		},
		Scheduler: SchedulerConfig{
			SettleDelay: "1s",
			RetryBase:   "1s",
			MaxRetries:  3,
		},
		Alerts: AlertConfig{
			TotalLossPct: -5,
			DailyLossPct: -3,
		},
		Search: SearchConfig{
			MinQueryLength: 2,
			MaxResults:     10,
			DebounceMS:     300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TRADEDASH_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TRADEDASH_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TRADEDASH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if url := os.Getenv("TRADEDASH_BACKEND_URL"); url != "" {
		config.Backend.BaseURL = url
	}

	if level := os.Getenv("TRADEDASH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if interval := os.Getenv("TRADEDASH_POLL_INTERVAL"); interval != "" {
		if _, err := time.ParseDuration(interval); err == nil {
			config.Polling.Interval = interval
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
