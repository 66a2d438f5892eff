package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Tier maps an effective request count to a delay range. A tier applies
// while the effective count is below Below; the last tier should leave
// Below at zero to catch everything above the previous thresholds.
type Tier struct {
	Below int
	Min   time.Duration
	Max   time.Duration
}

// DefaultTiers lets short bursts through almost immediately and escalates
// towards 20-30s spacing once a session has issued hundreds of requests
// faster than the sustained interval allows.
var DefaultTiers = []Tier{
	{Below: 10, Min: 0, Max: time.Second},
	{Below: 50, Min: time.Second, Max: 3 * time.Second},
	{Below: 200, Min: 3 * time.Second, Max: 8 * time.Second},
	{Below: 500, Min: 8 * time.Second, Max: 16 * time.Second},
	{Min: 20 * time.Second, Max: 30 * time.Second},
}

// DefaultInterval is the long-run average spacing the governor targets.
const DefaultInterval = 15 * time.Second

// GovernorConfig configures a Governor. Zero values select defaults.
type GovernorConfig struct {
	// Interval is the sustained per-request spacing. Each Interval of idle
	// time, measured from the scheduled send of the previous request,
	// forgives one request of burst history.
	Interval time.Duration
	Tiers    []Tier
	// Rand and Now are injectable for tests.
	Rand *rand.Rand
	Now  func() time.Time
}

// Governor computes an adaptive delay before each request from the
// cumulative request history. It is not designed for concurrent mutation
// from multiple request streams; callers serialize access per identity,
// though the internal lock keeps it memory safe.
type Governor struct {
	mu       sync.Mutex
	interval time.Duration
	tiers    []Tier
	rnd      *rand.Rand
	now      func() time.Time

	count int
	// last is the scheduled send time of the previous request. Time the
	// caller spends sleeping up to it is not idle.
	last time.Time
	idle time.Duration
}

// NewGovernor creates a Governor with a fresh history.
func NewGovernor(cfg GovernorConfig) *Governor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultTiers
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	tiers := make([]Tier, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)

	return &Governor{
		interval: cfg.Interval,
		tiers:    tiers,
		rnd:      cfg.Rand,
		now:      cfg.Now,
	}
}

// Delay returns how long the caller must sleep before issuing the next
// request. Every call counts as one request scheduled at now+delay.
func (g *Governor) Delay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.idle += g.gapLocked(now)

	effective := g.count - int(g.idle/g.interval)
	if effective < 0 {
		// Idle long enough that all burst history is forgiven.
		g.count = 0
		g.idle = 0
		effective = 0
	}

	var delay time.Duration
	if !g.last.IsZero() {
		delay = g.last.Add(g.draw(g.tierFor(effective))).Sub(now)
	}
	if delay < 0 {
		delay = 0
	}

	g.count++
	g.last = now.Add(delay)
	return delay
}

// Wait sleeps for Delay() or until ctx is done.
func (g *Governor) Wait(ctx context.Context) error {
	return Sleep(ctx, g.Delay())
}

// Effective reports the current effective request count: the raw count
// minus the requests the sustained interval would have allowed during
// idle gaps, including the one still open.
func (g *Governor) Effective() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	idle := g.idle + g.gapLocked(g.now())
	e := g.count - int(idle/g.interval)
	if e < 0 {
		return 0
	}
	return e
}

// Count reports the raw number of requests in the current window.
func (g *Governor) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// gapLocked is the idle time between the previous scheduled send and now.
func (g *Governor) gapLocked(now time.Time) time.Duration {
	if g.last.IsZero() || !now.After(g.last) {
		return 0
	}
	return now.Sub(g.last)
}

func (g *Governor) tierFor(effective int) Tier {
	for _, t := range g.tiers {
		if t.Below == 0 || effective < t.Below {
			return t
		}
	}
	return g.tiers[len(g.tiers)-1]
}

func (g *Governor) draw(t Tier) time.Duration {
	if t.Max <= t.Min {
		return t.Min
	}
	return t.Min + time.Duration(g.rnd.Int64N(int64(t.Max-t.Min)+1))
}
