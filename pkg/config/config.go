package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"github.com/goccy/go-yaml"
)

// Defaults for the chat engine configuration
const (
	defaultAPITimeout   = 30 * time.Second
	defaultChannel      = "web"
	defaultHistoryLimit = 200
	defaultDBPath       = "./.chatsync"
	defaultRateRPS      = 1.0
	defaultRateBurst    = 3
	// Retention defaults
	defaultRetentionCron   = "0 3 * * *" // daily at 03:00
	defaultRetentionPeriod = "30d"
	// Metrics defaults
	defaultMetricsAddr = ":9100"
)

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s: %w", path, err)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig applies defaults and validates values. It mutates the
// receiver to fill in missing defaults and returns an error if any
// configuration value is invalid.
func (c *Config) ValidateConfig() error {
	// API defaults
	if c.API.Timeout.Duration() == 0 {
		c.API.Timeout = Duration(defaultAPITimeout)
	}
	if c.API.Channel == "" {
		c.API.Channel = defaultChannel
	}
	if c.API.HistoryLimit <= 0 {
		c.API.HistoryLimit = defaultHistoryLimit
	}

	// Storage defaults
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = defaultDBPath
	}

	// Rate limiting defaults
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = defaultRateRPS
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateBurst
	}

	// Retention defaults
	if c.Retention.Cron == "" {
		c.Retention.Cron = defaultRetentionCron
	}
	if c.Retention.Period == "" {
		c.Retention.Period = defaultRetentionPeriod
	}
	// Validate the retention cron for correctness whether user-set or defaulted.
	if !gronx.IsValid(c.Retention.Cron) {
		return fmt.Errorf("invalid retention cron expression: %s", c.Retention.Cron)
	}

	// Metrics defaults
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		c.Metrics.Addr = defaultMetricsAddr
	}

	return nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATSYNC_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
