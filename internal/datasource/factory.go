package datasource

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/config"
)

// SourceType represents the type of upstream race source
type SourceType string

const (
	// YahooSourceType scrapes sports.yahoo.co.jp/keiba
	YahooSourceType SourceType = "yahoo"
)

// Factory creates RaceSource implementations based on configuration
type Factory struct {
	logger *logrus.Logger
	config config.ScraperConfig
}

// NewFactory creates a new race source factory
func NewFactory(cfg config.ScraperConfig, logger *logrus.Logger) *Factory {
	return &Factory{
		logger: logger,
		config: cfg,
	}
}

// HTTPClientConfig derives the shared HTTP client settings from the scraper
// configuration.
func (f *Factory) HTTPClientConfig() HTTPClientConfig {
	cfg := DefaultHTTPClientConfig()
	cfg.Timeout = f.config.Timeout()
	cfg.MaxRetries = f.config.MaxRetries
	cfg.RequestDelay = f.config.RequestDelay()
	if f.config.UserAgent != "" {
		cfg.UserAgent = f.config.UserAgent
	}
	return cfg
}

// Create creates a new race source of the given type. All sources built by
// one factory call get their own paced HTTP client.
func (f *Factory) Create(sourceType SourceType) (RaceSource, error) {
	switch sourceType {
	case YahooSourceType:
		return f.NewYahooClient(), nil
	default:
		return nil, fmt.Errorf("unknown race source type: %s", sourceType)
	}
}

// NewYahooClient builds the Yahoo! keiba client with pacing and, when
// configured, robots.txt checks.
func (f *Factory) NewYahooClient() *YahooClient {
	httpCfg := f.HTTPClientConfig()
	httpClient := NewRateLimitedHTTPClient(httpCfg, f.logger)

	var robots *RobotsChecker
	if f.config.RespectRobots {
		robots = NewRobotsChecker(httpCfg.UserAgent, httpCfg.Timeout)
	}

	return NewYahooClient(httpClient, robots, f.config.BaseURL, f.config.RacesPerDay, f.logger)
}
