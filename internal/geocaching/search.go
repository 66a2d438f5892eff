package geocaching

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/metrics"
	"github.com/FranksOps/gcparser/internal/scraper"
)

// DefaultPageSize is the number of rows on a full result page.
const DefaultPageSize = 20

// ErrPageOutOfRange is returned for a page number outside 1..PageCount.
var ErrPageOutOfRange = errors.New("geocaching: page out of range")

// SearchQuery is a nearest-caches search around a point.
type SearchQuery struct {
	Lat    float64
	Lon    float64
	Radius float64 // km; zero leaves the site default
}

type resultPage struct {
	body    string
	entries []SearchResultEntry
}

// SearchParser walks the result pages of a search. The site's pager is
// stateful: the next page is requested by posting back the hidden form
// fields of the current one, so pages are fetched strictly in order and
// each one at most once.
type SearchParser struct {
	deps     Deps
	query    SearchQuery
	pageSize int

	mu       sync.Mutex
	pages    []resultPage
	total    int
	numPages int
}

// NewSearchParser returns a parser for q. pageSize <= 0 selects
// DefaultPageSize.
func NewSearchParser(d Deps, q SearchQuery, pageSize int) *SearchParser {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &SearchParser{deps: d.withDefaults("seek"), query: q, pageSize: pageSize}
}

// URL returns the search path, relative to the site root.
func (p *SearchParser) URL() string {
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(p.query.Lat, 'f', -1, 64))
	v.Set("lng", strconv.FormatFloat(p.query.Lon, 'f', -1, 64))
	if p.query.Radius > 0 {
		v.Set("dist", strconv.FormatFloat(p.query.Radius, 'f', -1, 64))
	}
	return "/seek/nearest.aspx?" + v.Encode()
}

// TotalCount returns the number of results reported by the first page.
func (p *SearchParser) TotalCount(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fetchThrough(ctx, 1); err != nil {
		return 0, err
	}
	return p.total, nil
}

// PageCount returns the number of result pages reported by the first page.
func (p *SearchParser) PageCount(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fetchThrough(ctx, 1); err != nil {
		return 0, err
	}
	return p.numPages, nil
}

// Page returns the entries of page n, fetching any earlier pages that have
// not been fetched yet.
func (p *SearchParser) Page(ctx context.Context, n int) ([]SearchResultEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, n)
	}
	if err := p.fetchThrough(ctx, 1); err != nil {
		return nil, err
	}
	if n > p.numPages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, p.numPages)
	}
	if err := p.fetchThrough(ctx, n); err != nil {
		return nil, err
	}
	return p.pages[n-1].entries, nil
}

// Entries returns the entries of the first limit pages, or of every page
// when limit <= 0.
func (p *SearchParser) Entries(ctx context.Context, limit int) ([]SearchResultEntry, error) {
	count, err := p.PageCount(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < count {
		count = limit
	}

	var out []SearchResultEntry
	for n := 1; n <= count; n++ {
		entries, err := p.Page(ctx, n)
		if err != nil {
			return out, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// Parse implements Parser. It walks every page.
func (p *SearchParser) Parse(ctx context.Context) ([]Record, error) {
	entries, err := p.Entries(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out, nil
}

// nextPageForm builds the postback that turns the pager forward from the
// page body.
func nextPageForm(body string) url.Values {
	form := extract.HiddenFields(body)
	form.Set(pagerTargetField, pagerNextTarget)
	return form
}

// fetchThrough fetches pages until n are cached. Callers hold p.mu.
func (p *SearchParser) fetchThrough(ctx context.Context, n int) error {
	for len(p.pages) < n {
		req := scraper.Request{URL: p.URL(), Authenticate: true}
		if len(p.pages) > 0 {
			req.Form = nextPageForm(p.pages[len(p.pages)-1].body)
		}

		page, err := p.deps.Fetcher.Fetch(ctx, req)
		if err != nil {
			return fmt.Errorf("fetch search page %d: %w", len(p.pages)+1, err)
		}

		rp := resultPage{body: page.Body, entries: p.parseRows(page.Body)}
		if len(p.pages) == 0 {
			p.readSummary(rp)
		}
		p.pages = append(p.pages, rp)
		p.checkRowCount(len(p.pages))
	}
	return nil
}

func (p *SearchParser) readSummary(first resultPage) {
	m := p.deps.Engine.Extract(searchSummary, first.body)
	p.total = m.Int("summary", 1)
	p.numPages = m.Int("summary", 3)
	if !m.Found("summary") && len(first.entries) > 0 {
		// Without a summary line, treat the rows we have as the whole result.
		p.total = len(first.entries)
		p.numPages = 1
	}
}

func (p *SearchParser) checkRowCount(n int) {
	expected := p.total - (n-1)*p.pageSize
	if expected > p.pageSize {
		expected = p.pageSize
	}
	if expected < 0 {
		expected = 0
	}
	if got := len(p.pages[n-1].entries); got != expected {
		metrics.PaginationMismatchTotal.Inc()
		p.deps.Logger.Warn("pagination inconsistency", "page", n, "expected", expected, "got", got)
	}
}

func (p *SearchParser) parseRows(body string) []SearchResultEntry {
	rows := p.deps.Engine.Rows(searchRows, extract.SplitLines(body))
	out := make([]SearchResultEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, SearchResultEntry{
			CacheID:    m.Int("cache_id", 1),
			Distance:   distance(m),
			Type:       m.Text("type", 1),
			Difficulty: m.Float("dt", 1),
			Terrain:    m.Float("dt", 2),
			Size:       m.Text("dt", 3),
			Hidden:     usDate(m, "hidden", 1),
			GUID:       m.Group("cache", 1),
			Archived:   m.Group("cache", 2) != "",
			Disabled:   m.Group("cache", 3) != "",
			Name:       m.Text("cache", 4),
			Owner:      m.Text("owner", 1),
			Waypoint:   m.Group("owner", 2),
			Province:   m.Text("owner", 3),
			Country:    m.Text("owner", 4),
			LastFound:  usDate(m, "last_found", 1),
			Found:      m.Group("last_found", 4) != "",
		})
	}
	return out
}

func distance(m *extract.Match) string {
	d := m.Text("distance", 1)
	if dir := m.Group("distance", 2); dir != "" {
		d += " " + dir
	}
	return d
}
