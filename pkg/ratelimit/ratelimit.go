package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter enforces a flat minimum spacing between operations, incorporating
// optional jitter. It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	next     time.Time
	now      func() time.Time
}

// NewLimiter creates a limiter that spaces operations at least interval
// apart. Jitter adds up to jitter*interval of random extra spacing and is
// clamped to [0, 1]. If interval is <= 0, the limiter does not block.
func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Limiter{
		interval: interval,
		jitter:   jitter,
		now:      time.Now,
	}
}

// Reserve books the next slot and returns how long the caller must wait
// before using it.
func (l *Limiter) Reserve() time.Duration {
	if l == nil || l.interval <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now
	if l.next.After(now) {
		start = l.next
	}

	spacing := l.interval
	if l.jitter > 0 {
		spacing += time.Duration(float64(l.interval) * l.jitter * rand.Float64())
	}
	l.next = start.Add(spacing)

	return start.Sub(now)
}

// Wait blocks until it is time to perform the next operation, or until the
// context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	return Sleep(ctx, l.Reserve())
}

// Sleep pauses for d or until ctx is done. Non-positive durations return
// immediately unless the context is already canceled.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
