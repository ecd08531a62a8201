package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTPClientConfig holds configuration for HTTP clients
type HTTPClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RequestDelay      time.Duration // minimum gap between requests
	UserAgent         string
	CircuitBreakerMax int           // max consecutive failures before circuit break
	CircuitCooldown   time.Duration // how long an open circuit rejects requests
}

// DefaultHTTPClientConfig returns recommended defaults
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:           10 * time.Second,
		MaxRetries:        2,
		RetryWaitMin:      500 * time.Millisecond,
		RetryWaitMax:      5 * time.Second,
		RequestDelay:      time.Second,
		UserAgent:         "Mozilla/5.0 (compatible; keiba-insight/1.0)",
		CircuitBreakerMax: 5,
		CircuitCooldown:   30 * time.Second,
	}
}

// RateLimitedHTTPClient wraps retryablehttp.Client with request pacing and a
// circuit breaker. All requests share one limiter, so callers in different
// goroutines are still serialised to one request per RequestDelay.
type RateLimitedHTTPClient struct {
	client            *retryablehttp.Client
	limiter           *rate.Limiter
	userAgent         string
	circuitBreakerMax int
	circuitCooldown   time.Duration

	mu                sync.Mutex
	consecutiveErrors int
	isOpen            bool
	openedAt          time.Time
	lastError         error

	logger *logrus.Entry
}

// NewRateLimitedHTTPClient creates a new rate-limited HTTP client
func NewRateLimitedHTTPClient(cfg HTTPClientConfig, logger *logrus.Logger) *RateLimitedHTTPClient {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	entry := logger.WithField("component", "http_client")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = customRetryPolicy()
	retryClient.Logger = leveledLogger{entry}

	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}

	breakerMax := cfg.CircuitBreakerMax
	if breakerMax <= 0 {
		breakerMax = 5
	}
	cooldown := cfg.CircuitCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return &RateLimitedHTTPClient{
		client:            retryClient,
		limiter:           rate.NewLimiter(limit, 1),
		userAgent:         cfg.UserAgent,
		circuitBreakerMax: breakerMax,
		circuitCooldown:   cooldown,
		logger:            entry,
	}
}

// Do executes an HTTP request with rate limiting and circuit breaker
func (c *RateLimitedHTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	if c.isOpen && time.Since(c.openedAt) < c.circuitCooldown {
		err := c.lastError
		c.mu.Unlock()
		return nil, fmt.Errorf("circuit breaker open: %w", err)
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	retryReq, err := retryablehttp.FromRequest(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(retryReq)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.consecutiveErrors++
		c.lastError = err
		if c.consecutiveErrors >= c.circuitBreakerMax {
			c.isOpen = true
			c.openedAt = time.Now()
			c.logger.WithError(err).Errorf("Circuit breaker opened after %d consecutive errors", c.consecutiveErrors)
		}
		return nil, err
	}

	if resp.StatusCode < 500 {
		c.consecutiveErrors = 0
		c.isOpen = false
	}

	return resp, nil
}

// Get executes a GET request
func (c *RateLimitedHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Reset closes the circuit breaker
func (c *RateLimitedHTTPClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors = 0
	c.isOpen = false
	c.lastError = nil
}

// Close closes any resources held by the client
func (c *RateLimitedHTTPClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

// customRetryPolicy defines which HTTP responses should trigger a retry
func customRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, err
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true, nil
		}
		return false, nil
	}
}

// leveledLogger routes retryablehttp's logging through logrus.
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.with(kv).Error(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.with(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.with(kv).Debug(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.with(kv).Warn(msg) }

func (l leveledLogger) with(kv []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.entry.WithFields(fields)
}
