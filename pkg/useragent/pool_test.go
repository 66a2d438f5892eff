package useragent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPool_Default(t *testing.T) {
	p := NewPool(nil)
	if p.Len() != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), p.Len())
	}
}

func TestPool_Pick(t *testing.T) {
	p := NewPool([]string{"A", "B"})

	seenA := false
	seenB := false

	// Try 100 times, highly likely we see both A and B
	for i := 0; i < 100; i++ {
		switch got := p.Pick(); got {
		case "A":
			seenA = true
		case "B":
			seenB = true
		default:
			t.Fatalf("unexpected UA: %s", got)
		}
	}

	if !seenA || !seenB {
		t.Errorf("expected to see both A and B randomly, seenA: %v, seenB: %v", seenA, seenB)
	}
}

func TestPool_Empty(t *testing.T) {
	p := &Pool{}
	if got := p.Pick(); got != "" {
		t.Errorf("expected empty string from empty pool, got %s", got)
	}
}

func TestStore_StableWithinProcess(t *testing.T) {
	s := NewStore("", NewPool([]string{"A", "B", "C", "D"}))

	first := s.Get()
	for i := 0; i < 20; i++ {
		if got := s.Get(); got != first {
			t.Fatalf("expected stable user agent %q, got %q", first, got)
		}
	}
	if err := s.Save(); err != nil {
		t.Errorf("memory-only save should be a no-op, got %v", err)
	}
}

func TestStore_PersistAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "someone_abc.ua")

	s1 := NewStore(path, NewPool([]string{"TestBrowser/1.0"}))
	ua := s1.Get()
	if err := s1.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected user agent file: %v", err)
	}
	if string(data) != ua {
		t.Errorf("expected file to contain %q, got %q", ua, data)
	}

	s2 := NewStore(path, NewPool([]string{"OtherBrowser/2.0"}))
	if got := s2.Get(); got != ua {
		t.Errorf("expected reloaded user agent %q, got %q", ua, got)
	}
}

func TestStore_EmptyFileRegenerates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.ua")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, NewPool([]string{"Fresh/1.0"}))
	if got := s.Get(); got != "Fresh/1.0" {
		t.Errorf("expected generated user agent, got %q", got)
	}
}
