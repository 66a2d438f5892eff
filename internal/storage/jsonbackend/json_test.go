package jsonbackend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/storage"
)

func TestJSONBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "gcparser.jsonl")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()

	res1 := &storage.Record{
		ID:        "json1",
		Kind:      "myfinds",
		Key:       "log-1",
		Identity:  "someone",
		URL:       "/my/logs.aspx?s=1",
		Fields:    extract.NewFieldMap().Set("sequence", 1).Set("name", "First"),
		FetchedAt: now.Add(-2 * time.Hour),
	}
	res2 := &storage.Record{
		ID:        "json2",
		Kind:      "cache",
		Key:       "GC2",
		URL:       "/seek/cache_details.aspx?wp=GC2",
		Fields:    extract.NewFieldMap().Set("long_desc", strings.Repeat("x", 100*1024)),
		FetchedAt: now.Add(-1 * time.Hour),
	}

	for _, r := range []*storage.Record{res1, res2} {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save record %s: %v", r.ID, err)
		}
	}

	// Query all, newest first
	results, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(results))
	}
	if results[0].ID != "json2" || results[1].ID != "json1" {
		t.Errorf("Expected newest first, got %s then %s", results[0].ID, results[1].ID)
	}
	if !results[1].FetchedAt.Equal(res1.FetchedAt) {
		t.Errorf("Expected FetchedAt %v, got %v", res1.FetchedAt, results[1].FetchedAt)
	}
	if got := results[1].Fields.Keys(); len(got) != 2 || got[0] != "sequence" {
		t.Errorf("Expected ordered fields, got %v", got)
	}
	if len(results[0].Fields.String("long_desc")) != 100*1024 {
		t.Error("Expected long field to survive the round trip")
	}

	// Filter by kind
	finds, err := b.Query(ctx, storage.Filter{Kind: "myfinds"})
	if err != nil {
		t.Fatalf("Failed to query by kind: %v", err)
	}
	if len(finds) != 1 || finds[0].Fields.String("name") != "First" {
		t.Fatalf("Expected the find record, got %d", len(finds))
	}

	// Since
	since := now.Add(-90 * time.Minute)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "json2" {
		t.Fatalf("Expected only json2, got %d", len(recent))
	}

	// Limit and offset
	paged, err := b.Query(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with limit/offset: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "json1" {
		t.Fatalf("Expected json1, got %v", paged)
	}

	// Writes after a query still append
	res3 := storage.NewRecord("seek", "GC3", "", "/seek/nearest.aspx", extract.NewFieldMap())
	if err := b.Save(ctx, res3); err != nil {
		t.Fatalf("Failed to save after query: %v", err)
	}
	all, _ := b.Query(ctx, storage.Filter{})
	if len(all) != 3 || all[0].ID != res3.ID {
		t.Fatalf("Expected appended record first, got %d records", len(all))
	}
}
