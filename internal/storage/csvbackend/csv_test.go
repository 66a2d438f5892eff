package csvbackend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/storage"
)

func TestCSVBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "gcparser.csv")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create CSV backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	res1 := &storage.Record{
		ID:        "csv1",
		Kind:      "seek",
		Key:       "GC1",
		Identity:  "someone",
		URL:       "/seek/nearest.aspx?lat=1&lng=2",
		Fields:    extract.NewFieldMap().Set("name", "Comma, \"quoted\"\nand newline"),
		FetchedAt: now.Add(-2 * time.Hour),
	}
	res2 := &storage.Record{
		ID:        "csv2",
		Kind:      "cache",
		Key:       "GC2",
		URL:       "/seek/cache_details.aspx?wp=GC2",
		Fields:    extract.NewFieldMap().Set("premium_only", true),
		FetchedAt: now.Add(-1 * time.Hour),
	}

	if err := b.Save(ctx, res1); err != nil {
		t.Fatalf("Failed to save record 1: %v", err)
	}
	if err := b.Save(ctx, res2); err != nil {
		t.Fatalf("Failed to save record 2: %v", err)
	}

	// Test Kind Filter
	resultsKind, err := b.Query(ctx, storage.Filter{Kind: "cache"})
	if err != nil {
		t.Fatalf("Failed to query by kind: %v", err)
	}
	if len(resultsKind) != 1 || resultsKind[0].ID != "csv2" {
		t.Fatalf("Expected csv2 for kind filter, got %d results", len(resultsKind))
	}
	if v, _ := resultsKind[0].Fields.Get("premium_only"); v != true {
		t.Errorf("Expected premium_only true, got %v", v)
	}

	// Test Since Filter
	past := now.Add(-90 * time.Minute)
	resultsSince, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query by Since: %v", err)
	}
	if len(resultsSince) != 1 || resultsSince[0].ID != "csv2" {
		t.Fatalf("Expected csv2 for Since filter, got %d results", len(resultsSince))
	}

	// Test no filters, ordering
	resultsAll, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(resultsAll) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resultsAll))
	}
	if resultsAll[0].ID != "csv2" {
		t.Errorf("Expected csv2 first, got %s", resultsAll[0].ID)
	}

	// Quoting roundtrip
	if got := resultsAll[1].Fields.String("name"); got != "Comma, \"quoted\"\nand newline" {
		t.Errorf("Expected quoted name to survive, got %q", got)
	}
	if !resultsAll[1].FetchedAt.Equal(res1.FetchedAt) || resultsAll[1].Identity != "someone" {
		t.Errorf("Expected %+v, got %+v", res1, resultsAll[1])
	}

	// Test offset
	resultsOffset, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query offset: %v", err)
	}
	if len(resultsOffset) != 1 || resultsOffset[0].ID != "csv1" {
		t.Fatalf("Expected csv1 for offset 1, got %d results", len(resultsOffset))
	}
}

func TestCSVBackend_ReopenKeepsSingleHeader(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "gcparser.csv")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b, err := New(filePath)
		if err != nil {
			t.Fatalf("Failed to open CSV backend: %v", err)
		}
		if err := b.Save(ctx, storage.NewRecord("cache", "GC1", "", "", extract.NewFieldMap())); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		b.Close()
	}

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer b.Close()

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 records across reopen, got %d", len(all))
	}

	data, _ := os.ReadFile(filePath)
	if n := strings.Count(string(data), "id,kind,key"); n != 1 {
		t.Errorf("Expected one header line, got %d", n)
	}
}
