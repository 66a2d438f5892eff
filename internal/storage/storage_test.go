package storage

import (
	"testing"
	"time"

	"github.com/FranksOps/gcparser/internal/extract"
)

func TestNewRecord(t *testing.T) {
	r := NewRecord("cache", "GC1", "someone", "/seek/cache_details.aspx?wp=GC1", extract.NewFieldMap().Set("name", "x"))
	if r.ID == "" || r.FetchedAt.IsZero() {
		t.Fatalf("expected ID and timestamp, got %+v", r)
	}
	if r.FetchedAt.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", r.FetchedAt.Location())
	}
	if other := NewRecord("cache", "GC1", "", "", nil); other.ID == r.ID {
		t.Error("expected distinct IDs")
	}
}

func TestFilter_Match(t *testing.T) {
	now := time.Now()
	r := &Record{Kind: "seek", Key: "GC2", FetchedAt: now}

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	cases := []struct {
		f    Filter
		want bool
	}{
		{Filter{}, true},
		{Filter{Kind: "seek"}, true},
		{Filter{Kind: "cache"}, false},
		{Filter{Key: "GC2"}, true},
		{Filter{Key: "GC3"}, false},
		{Filter{Since: &past}, true},
		{Filter{Since: &future}, false},
	}
	for _, c := range cases {
		if got := c.f.Match(r); got != c.want {
			t.Errorf("%+v: expected %v, got %v", c.f, c.want, got)
		}
	}
}

func TestFilter_Page(t *testing.T) {
	records := []*Record{{Key: "a"}, {Key: "b"}, {Key: "c"}}

	got := Filter{Offset: 1, Limit: 1}.Page(records)
	if len(got) != 1 || got[0].Key != "b" {
		t.Errorf("unexpected page %v", got)
	}
	if got := (Filter{Offset: 5}).Page(records); len(got) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(got))
	}
	if got := (Filter{}).Page(records); len(got) != 3 {
		t.Errorf("expected all records, got %d", len(got))
	}
}
