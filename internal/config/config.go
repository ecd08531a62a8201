// Package config provides configuration management for the keiba-insight services.
package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Dataset   DatasetConfig   `mapstructure:"dataset" validate:"required"`
	RaceCards RaceCardsConfig `mapstructure:"race_cards" validate:"required"`
	Scraper   ScraperConfig   `mapstructure:"scraper" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// ServerConfig configures the JSON API listener
type ServerConfig struct {
	Address             string   `mapstructure:"address" validate:"required"`
	ReadTimeoutSeconds  int      `mapstructure:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeoutSeconds int      `mapstructure:"write_timeout_seconds" validate:"gte=0"`
	CORSOrigins         []string `mapstructure:"cors_origins"`
}

// DatasetConfig points at the historical results CSV
type DatasetConfig struct {
	Path    string         `mapstructure:"path" validate:"required"`
	Strict  bool           `mapstructure:"strict"`
	Columns DatasetColumns `mapstructure:"columns"`
}

// DatasetColumns overrides the CSV header names. Empty values keep the defaults.
type DatasetColumns struct {
	Date            string `mapstructure:"date"`
	HorseName       string `mapstructure:"horse_name"`
	Finish          string `mapstructure:"finish"`
	Venue           string `mapstructure:"venue"`
	Distance        string `mapstructure:"distance"`
	GroundCondition string `mapstructure:"ground_condition"`
	CorrectedTime   string `mapstructure:"corrected_time"`
	CorrectedTime9m string `mapstructure:"corrected_time_9m"`
	ClassName       string `mapstructure:"class_name"`
}

// RaceCardsConfig is where scraped race cards are stored
type RaceCardsConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// ScraperConfig configures access to the upstream race pages
type ScraperConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	UserAgent      string `mapstructure:"user_agent" validate:"required"`
	RequestDelayMS int    `mapstructure:"request_delay_ms" validate:"gte=0"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries     int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	RacesPerDay    int    `mapstructure:"races_per_day" validate:"required,min=1,max=99"`
}

// CacheConfig configures in-memory caches
type CacheConfig struct {
	OddsTTLSeconds int `mapstructure:"odds_ttl_seconds" validate:"gte=0"`
}

// SchedulerConfig configures the periodic scrape job
type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Cron      string `mapstructure:"cron"`
	DayOffset int    `mapstructure:"day_offset" validate:"gte=0,lte=7"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HealthConfig configures the standalone health server
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// RequestDelay returns the pause enforced between upstream requests.
func (c ScraperConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// Timeout returns the per-request upstream timeout.
func (c ScraperConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OddsTTL returns how long fetched odds are served from cache.
func (c CacheConfig) OddsTTL() time.Duration {
	return time.Duration(c.OddsTTLSeconds) * time.Second
}

// ReadTimeout returns the server read timeout.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout. Zero leaves streaming
// responses unbounded.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}
