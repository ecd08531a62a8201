package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker checks robots.txt compliance, caching the rules per host
type RobotsChecker struct {
	cache      map[string]*robotstxt.RobotsData
	mu         sync.RWMutex
	httpClient *http.Client
	userAgent  string
}

// NewRobotsChecker creates a new robots.txt checker
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	return &RobotsChecker{
		cache:      make(map[string]*robotstxt.RobotsData),
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// CanFetch checks if the URL can be fetched according to robots.txt.
// An unreachable robots.txt allows the fetch.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse URL: %w", err)
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)
	data, err := r.getRobotsData(ctx, parsed.Host, robotsURL)
	if err != nil {
		return true, nil
	}

	path := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return data.TestAgent(path, productToken(r.userAgent)), nil
}

func (r *RobotsChecker) getRobotsData(ctx context.Context, host, robotsURL string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, exists := r.cache[host]
	r.mu.RUnlock()
	if exists {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.cache[host] = data
	r.mu.Unlock()
	return data, nil
}

// Clear clears the robots.txt cache
func (r *RobotsChecker) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*robotstxt.RobotsData)
}

// productToken extracts the product name of a user agent for group matching,
// e.g. "keiba-insight" from "keiba-insight/1.0 (+https://...)". Agents in the
// "Mozilla/5.0 (compatible; bot/1.0)" form match by their compatible token.
func productToken(ua string) string {
	if i := strings.Index(ua, "compatible;"); i >= 0 {
		rest := strings.TrimSpace(ua[i+len("compatible;"):])
		rest = strings.TrimRight(rest, ")")
		if f := strings.Fields(rest); len(f) > 0 {
			return strings.Split(strings.TrimRight(f[0], ";"), "/")[0]
		}
	}
	if f := strings.Fields(ua); len(f) > 0 {
		return strings.Split(f[0], "/")[0]
	}
	return ua
}
