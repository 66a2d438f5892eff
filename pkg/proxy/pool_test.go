package proxy

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestPool_AddDefaultsScheme(t *testing.T) {
	p := NewPool(Config{})
	if err := p.Add("10.0.0.1:8080", "  ", "socks5://10.0.0.2:1080"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 proxies, got %d", p.Len())
	}

	if got := p.Current().String(); got != "http://10.0.0.1:8080" {
		t.Errorf("expected http scheme default, got %s", got)
	}
}

func TestPool_EmptyReturnsNil(t *testing.T) {
	p := NewPool(Config{})
	if p.Current() != nil || p.Rotate() != nil {
		t.Error("expected nil from empty pool")
	}
}

func TestPool_StickyUntilRotate(t *testing.T) {
	p := NewPool(Config{})
	_ = p.Add("http://a:1", "http://b:1", "http://c:1")

	first := p.Current()
	if p.Current() != first {
		t.Fatal("expected Current to stay on the same proxy")
	}
	second := p.Rotate()
	if second.String() != "http://b:1" {
		t.Errorf("expected rotation to b, got %s", second)
	}
	if p.Current() != second {
		t.Error("expected rotation to stick")
	}
	if got := p.Rotate(); got.String() != "http://c:1" {
		t.Errorf("expected rotation to c, got %s", got)
	}
	if got := p.Rotate(); got.String() != "http://a:1" {
		t.Errorf("expected rotation to wrap to a, got %s", got)
	}
}

func TestPool_FailureBenchesProxy(t *testing.T) {
	now := time.Unix(1000, 0)
	p := NewPool(Config{MaxFailures: 2, Cooldown: time.Minute})
	p.now = func() time.Time { return now }
	_ = p.Add("http://a:1", "http://b:1")

	a := p.Current()
	_ = p.MarkFailure(a)
	if p.Current() != a {
		t.Fatal("one failure should not bench the proxy")
	}
	_ = p.MarkFailure(a)

	if got := p.Current(); got.String() != "http://b:1" {
		t.Fatalf("expected benched proxy to be skipped, got %s", got)
	}

	b := p.Current()
	_ = p.MarkFailure(b)
	_ = p.MarkFailure(b)
	if p.Current() != nil {
		t.Fatal("expected nil when every proxy is cooling down")
	}

	now = now.Add(2 * time.Minute)
	revived := p.Rotate()
	if revived == nil {
		t.Fatal("expected proxies to revive after cooldown")
	}
	for _, e := range p.Snapshot() {
		if e.URL.String() == revived.String() && e.Failures != 0 {
			t.Errorf("expected revived proxy failures reset, got %d", e.Failures)
		}
	}
}

func TestPool_MarkSuccessDecrementsFailures(t *testing.T) {
	p := NewPool(Config{MaxFailures: 5})
	_ = p.Add("http://a:1")
	a := p.Current()

	_ = p.MarkFailure(a)
	_ = p.MarkFailure(a)
	_ = p.MarkSuccess(a)

	snap := p.Snapshot()
	if snap[0].Failures != 1 || snap[0].Successes != 1 {
		t.Errorf("expected failures=1 successes=1, got %+v", snap[0])
	}
}

func TestPool_UnknownProxy(t *testing.T) {
	p := NewPool(Config{})
	_ = p.Add("http://a:1")

	other, _ := url.Parse("http://zzz:9")
	if err := p.MarkFailure(other); !errors.Is(err, ErrUnknownProxy) {
		t.Errorf("expected ErrUnknownProxy, got %v", err)
	}
	if err := p.MarkSuccess(nil); err == nil {
		t.Error("expected error for nil proxy URL")
	}
}
