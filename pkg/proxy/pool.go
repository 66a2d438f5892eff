package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when a proxy URL is not part of the pool.
var ErrUnknownProxy = errors.New("proxy not found in pool")

// Endpoint is a single proxy with health tracking.
type Endpoint struct {
	URL           *url.URL
	Failures      int
	Successes     int
	DisabledUntil time.Time
}

func (e *Endpoint) healthy(now time.Time) bool {
	return !now.Before(e.DisabledUntil)
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures before disabling a proxy temporarily.
	MaxFailures int
	// Cooldown is how long a proxy remains disabled after hitting MaxFailures.
	Cooldown time.Duration
}

// Pool hands out proxies in rotation and benches the ones that keep
// failing. A Fetcher sticks to Current until a transient failure makes it
// call Rotate.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*Endpoint
	current     int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool creates a new proxy pool. If config values are zero, reasonable defaults are used.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// Add parses raw URL strings and adds them to the pool. A missing scheme
// defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		p.endpoints = append(p.endpoints, &Endpoint{URL: u})
	}
	return nil
}

// Len reports the number of proxies in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Current returns the proxy in use, advancing past benched ones. It
// returns nil when the pool is empty or every proxy is cooling down.
func (p *Pool) Current() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthyFromLocked(p.current)
}

// Rotate moves to the next healthy proxy and returns it.
func (p *Pool) Rotate() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.endpoints) == 0 {
		return nil
	}
	return p.healthyFromLocked((p.current + 1) % len(p.endpoints))
}

func (p *Pool) healthyFromLocked(start int) *url.URL {
	now := p.now()
	for i := range p.endpoints {
		idx := (start + i) % len(p.endpoints)
		e := p.endpoints[idx]
		if e.healthy(now) {
			if !e.DisabledUntil.IsZero() {
				e.DisabledUntil = time.Time{}
				e.Failures = 0
			}
			p.current = idx
			return e.URL
		}
	}
	return nil
}

// MarkSuccess records a successful request through the given proxy.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.findLocked(proxyURL)
	if err != nil {
		return err
	}
	e.Successes++
	if e.Failures > 0 {
		e.Failures--
	}
	return nil
}

// MarkFailure records a failure for the given proxy. Once failures reach
// the configured maximum, the proxy is benched for the cooldown period.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.findLocked(proxyURL)
	if err != nil {
		return err
	}
	e.Failures++
	if e.Failures >= p.maxFailures {
		e.DisabledUntil = p.now().Add(p.cooldown)
	}
	return nil
}

// Snapshot returns a copy of the pool's endpoints.
func (p *Pool) Snapshot() []Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Endpoint, len(p.endpoints))
	for i, e := range p.endpoints {
		out[i] = *e
	}
	return out
}

func (p *Pool) findLocked(u *url.URL) (*Endpoint, error) {
	if u == nil {
		return nil, errors.New("proxy URL cannot be nil")
	}
	target := u.String()
	for _, e := range p.endpoints {
		if e.URL.String() == target {
			return e, nil
		}
	}
	return nil, ErrUnknownProxy
}
