package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. KEIBA_INSIGHT_SERVER_ADDRESS.
const EnvPrefix = "KEIBA_INSIGHT"

// DefaultPath is used when no config path is given.
const DefaultPath = "config/config.yaml"

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "keiba-insight")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 0)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("dataset.path", "3年分データ.csv")
	v.SetDefault("dataset.strict", false)

	v.SetDefault("race_cards.dir", "race_cards")

	v.SetDefault("scraper.base_url", "https://sports.yahoo.co.jp")
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (compatible; keiba-insight/1.0)")
	v.SetDefault("scraper.request_delay_ms", 1000)
	v.SetDefault("scraper.timeout_seconds", 10)
	v.SetDefault("scraper.max_retries", 2)
	v.SetDefault("scraper.respect_robots", true)
	v.SetDefault("scraper.races_per_day", 12)

	v.SetDefault("cache.odds_ttl_seconds", 60)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "0 18 * * 5")
	v.SetDefault("scheduler.day_offset", 1)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.port", 8081)
}
