package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NoBlockWhenZeroInterval(t *testing.T) {
	limiter := NewLimiter(0, 0.5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("limiter with zero interval should not block")
	}
}

func TestLimiter_FirstCallImmediate(t *testing.T) {
	limiter := NewLimiter(time.Hour, 0)

	if d := limiter.Reserve(); d != 0 {
		t.Errorf("expected first reservation to be immediate, got %v", d)
	}
}

func TestLimiter_Spacing(t *testing.T) {
	now := time.Unix(1000, 0)
	limiter := NewLimiter(100*time.Millisecond, 0)
	limiter.now = func() time.Time { return now }

	_ = limiter.Reserve()
	if d := limiter.Reserve(); d != 100*time.Millisecond {
		t.Errorf("expected 100ms spacing, got %v", d)
	}
	if d := limiter.Reserve(); d != 200*time.Millisecond {
		t.Errorf("expected queued reservation at 200ms, got %v", d)
	}

	now = now.Add(time.Second)
	if d := limiter.Reserve(); d != 0 {
		t.Errorf("expected no wait after idle period, got %v", d)
	}
}

func TestLimiter_Jitter(t *testing.T) {
	now := time.Unix(1000, 0)
	limiter := NewLimiter(100*time.Millisecond, 0.5)
	limiter.now = func() time.Time { return now }

	_ = limiter.Reserve()
	d := limiter.Reserve()

	// Jitter only ever adds spacing, up to half an interval.
	if d < 100*time.Millisecond || d > 150*time.Millisecond {
		t.Errorf("expected jittered wait between 100ms and 150ms, got %v", d)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(time.Second, 0)
	_ = limiter.Reserve()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

func TestSleep_Cancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("sleep did not abort on deadline")
	}
}
