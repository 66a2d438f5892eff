package geocaching

import (
	"context"
	"fmt"
	"sync"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/scraper"
)

const findsURL = "/my/logs.aspx?s=1"

// FindsParser extracts the account's list of found caches.
type FindsParser struct {
	deps Deps

	mu      sync.Mutex
	loaded  bool
	count   int
	entries []FindLogEntry
}

// NewFindsParser returns a parser for the logged-in account's finds.
func NewFindsParser(d Deps) *FindsParser {
	return &FindsParser{deps: d.withDefaults("myfinds")}
}

func (p *FindsParser) load(ctx context.Context) error {
	if p.loaded {
		return nil
	}

	page, err := p.deps.Fetcher.Fetch(ctx, scraper.Request{URL: findsURL, Authenticate: true})
	if err != nil {
		return fmt.Errorf("fetch find logs: %w", err)
	}

	p.count = len(findStart.Pattern.FindAllStringIndex(page.Body, -1))
	rows := p.deps.Engine.Rows(findRows, extract.SplitLines(page.Body))

	p.entries = make([]FindLogEntry, 0, len(rows))
	for i, m := range rows {
		p.entries = append(p.entries, FindLogEntry{
			Sequence: p.count - i,
			Date:     usDate(m, "date", 1),
			GUID:     m.Group("cache", 1),
			Name:     m.Text("cache", 4),
			Archived: m.Group("cache", 2) != "",
			Disabled: m.Group("cache", 3) != "",
			LogID:    m.Group("log_id", 1),
		})
	}
	p.loaded = true
	p.deps.Logger.Debug("parsed find logs", "total", p.count, "rows", len(p.entries))
	return nil
}

// Count returns the number of find log rows on the page, including rows
// that could not be parsed.
func (p *FindsParser) Count(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.load(ctx); err != nil {
		return 0, err
	}
	return p.count, nil
}

// Entries returns the parsed find logs, newest first.
func (p *FindsParser) Entries(ctx context.Context) ([]FindLogEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return p.entries, nil
}

// Parse implements Parser.
func (p *FindsParser) Parse(ctx context.Context) ([]Record, error) {
	entries, err := p.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out, nil
}
