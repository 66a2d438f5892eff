package geocaching

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/FranksOps/gcparser/internal/detect"
	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/metrics"
	"github.com/FranksOps/gcparser/internal/scraper"
)

// CacheQuery selects a listing by GUID or waypoint. Logs asks the site to
// include the full log list in the page.
type CacheQuery struct {
	GUID     string
	Waypoint string
	Logs     bool
}

// CacheParser extracts one cache listing.
type CacheParser struct {
	deps  Deps
	query CacheQuery

	mu      sync.Mutex
	details *CacheDetails
}

// NewCacheParser returns a parser for the listing selected by q.
func NewCacheParser(d Deps, q CacheQuery) (*CacheParser, error) {
	if q.GUID == "" && q.Waypoint == "" {
		return nil, errors.New("geocaching: cache query needs a guid or a waypoint")
	}
	return &CacheParser{deps: d.withDefaults("cache"), query: q}, nil
}

// URL returns the listing path, relative to the site root.
func (p *CacheParser) URL() string {
	v := url.Values{}
	v.Set("pf", "y")
	v.Set("numlogs", "")
	v.Set("decrypt", "y")
	if p.query.GUID != "" {
		v.Set("guid", p.query.GUID)
	} else {
		v.Set("wp", p.query.Waypoint)
	}
	if p.query.Logs {
		v.Set("log", "y")
	} else {
		v.Set("log", "")
	}
	return "/seek/cache_details.aspx?" + v.Encode()
}

// Details fetches and parses the listing once. Later calls return the same
// value without another request.
func (p *CacheParser) Details(ctx context.Context) (*CacheDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.details != nil {
		return p.details, nil
	}

	page, err := p.deps.Fetcher.Fetch(ctx, scraper.Request{URL: p.URL(), Authenticate: true})
	if err != nil {
		return nil, fmt.Errorf("fetch cache listing: %w", err)
	}

	p.details = p.parse(page.Body)
	return p.details, nil
}

// Parse implements Parser.
func (p *CacheParser) Parse(ctx context.Context) ([]Record, error) {
	d, err := p.Details(ctx)
	if err != nil {
		return nil, err
	}
	return []Record{d}, nil
}

func (p *CacheParser) parse(body string) *CacheDetails {
	if detect.PremiumOnly(body) {
		p.deps.Logger.Info("subscribers only cache", "url", p.URL())
		metrics.PremiumOnlyTotal.Inc()
		return &CacheDetails{GUID: p.query.GUID, Waypoint: p.query.Waypoint, PremiumOnly: true}
	}

	m := p.deps.Engine.Extract(cacheRules, body)
	d := &CacheDetails{
		Waypoint:   m.Group("waypoint", 0),
		Name:       m.Text("name", 1),
		Hidden:     usDate(m, "hidden", 1),
		Type:       m.Text("owner", 1),
		OwnerID:    m.Group("owner", 3),
		GUID:       m.Group("owner", 4),
		Owner:      m.Text("owner", 5),
		Size:       m.Text("size", 1),
		Difficulty: m.Float("difficulty", 1),
		Terrain:    m.Float("terrain", 1),
		Province:   m.Text("location", 2),
		Country:    m.Text("location", 3),
		Attributes: m.Text("attributes", 1),
	}

	switch m.Group("status", 1) {
	case "has been archived":
		d.Archived = true
		d.Disabled = true
	case "is temporarily unavailable":
		d.Disabled = true
	}

	if m.Found("latlon") {
		d.Lat = degrees(m.Group("latlon", 2), m.Group("latlon", 3), m.Group("latlon", 1) == "S")
		d.Lon = degrees(m.Group("latlon", 5), m.Group("latlon", 6), m.Group("latlon", 4) == "W")
	}

	if m.Found("short_desc") {
		d.ShortDescHTML = m.Group("short_desc", 1)
		d.ShortDesc = extract.CleanHTML(d.ShortDescHTML)
	}
	if m.Found("long_desc") {
		d.LongDescHTML = m.Group("long_desc", 1)
		d.LongDesc = extract.CleanHTML(d.LongDescHTML)
	}
	if m.Found("hint") {
		raw := strings.ReplaceAll(m.Group("hint", 1), "<br>", "\n")
		d.Hint = extract.Rot13(strings.TrimSpace(extract.Unescape(raw)))
	}

	if m.Found("inventory") {
		for _, part := range strings.Split(m.Group("inventory", 1), "</tr>") {
			if g := inventoryItem.Pattern.FindStringSubmatch(part); g != nil {
				d.Inventory = append(d.Inventory, Trackable{GUID: g[1], Name: strings.TrimSpace(extract.Unescape(g[2]))})
			}
		}
	}
	if m.Found("visits") {
		for _, part := range strings.Split(m.Group("visits", 1), "</td><td>") {
			if g := visitItem.Pattern.FindStringSubmatch(part); g != nil {
				n, _ := strconv.Atoi(g[2])
				d.Visits = append(d.Visits, Visit{Type: strings.TrimSpace(extract.Unescape(g[1])), Count: n})
			}
		}
	}

	// Fall back to the requested selectors when the page did not yield them.
	if d.GUID == "" {
		d.GUID = p.query.GUID
	}
	if d.Waypoint == "" {
		d.Waypoint = p.query.Waypoint
	}
	return d
}

func degrees(deg, minutes string, negative bool) float64 {
	d, _ := strconv.ParseFloat(deg, 64)
	m, _ := strconv.ParseFloat(minutes, 64)
	v := d + m/60
	if negative {
		v = -v
	}
	return v
}
