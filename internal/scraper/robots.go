package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// TextFetcher retrieves a URL and returns its status and body.
type TextFetcher func(ctx context.Context, target string) (int, []byte, error)

// RobotsAuditor manages robots.txt fetching and enforcement.
type RobotsAuditor struct {
	get    TextFetcher
	logger *slog.Logger
	mu     sync.Mutex
	cache  map[string]*robotstxt.RobotsData
}

// NewRobotsAuditor creates a new instance.
func NewRobotsAuditor(get TextFetcher, logger *slog.Logger) *RobotsAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsAuditor{
		get:    get,
		logger: logger.With("component", "robots"),
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether targetURL may be fetched by userAgent. Any
// failure to obtain or parse robots.txt allows the fetch.
func (r *RobotsAuditor) Allowed(ctx context.Context, targetURL, userAgent string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return true
	}

	data := r.lookup(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true
	}
	if !data.FindGroup(userAgent).Test(u.Path) {
		r.logger.Info("url blocked by robots.txt", "url", targetURL)
		return false
	}
	return true
}

func (r *RobotsAuditor) lookup(ctx context.Context, host string) *robotstxt.RobotsData {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[host]; ok {
		return data
	}

	status, body, err := r.get(ctx, host+"/robots.txt")
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", err)
		if ctx.Err() == nil {
			r.cache[host] = nil
		}
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		r.logger.Debug("robots.txt parse failed, defaulting to allow", "host", host, "err", err)
		data = nil
	}
	r.cache[host] = data
	return data
}
