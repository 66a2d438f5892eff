//go:build integration

package test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/gcparser/internal/geocaching"
	"github.com/FranksOps/gcparser/internal/pipeline"
	"github.com/FranksOps/gcparser/internal/scraper"
	"github.com/FranksOps/gcparser/internal/session"
	"github.com/FranksOps/gcparser/internal/storage"
	"github.com/FranksOps/gcparser/internal/storage/sqlite"
	"github.com/FranksOps/gcparser/pkg/ratelimit"
	"github.com/FranksOps/gcparser/pkg/useragent"
)

const loginPage = `<html><body><form method="post" action="Default.aspx">
<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="c3RhdGU=" />
<p>You are not logged in.</p>
</form></body></html>`

func resultRow(id int) string {
	return strings.Join([]string{
		"<tr>",
		fmt.Sprintf(`<td class="Merge"><input type="checkbox" name="CID" value="%d" /></td>`, id),
		`<td class="Merge">1.2km<br />SW</td>`,
		`<td class="Merge"><img src="/images/WptTypes/2.gif" alt="Traditional Cache" /></td>`,
		`<td class="Merge">(2/3)<br /><img src="/images/icons/container/micro.gif" alt="Size: Micro" /></td>`,
		`<td class="PlacedDate"><span class="small">6/1/2008</span></td>`,
		fmt.Sprintf(`<td class="Merge"><a href="/seek/cache_details.aspx?guid=g-%d" class="lnk"><span>Cache %d</span></a></td>`, id, id),
		fmt.Sprintf(`<td class="Merge"><span class="small">by Hider | GC%d | Utrecht, Netherlands</span></td>`, id),
		`<td class="LastFound"><span class="small">9/2/2009</span></td>`,
		"</tr>",
	}, "\n")
}

func resultPage(page int, ids ...int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<form><input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="p%d" />`+"\n", page)
	fmt.Fprintf(&b, "Total Records: <b>3</b> - Page: <b>%d</b> of <b>2</b>\n<table>\n", page)
	for _, id := range ids {
		b.WriteString(resultRow(id))
		b.WriteString("\n")
	}
	b.WriteString("</table></form>")
	return b.String()
}

func listing(guid string) string {
	return `<html><body>
<span id="CacheName">Listing ` + guid + `</span>
<span id="DateHidden">6/1/2008</span>
<span id="LatLon" style="font-weight:bold;">N 52° 05.000 E 005° 07.000</span>
<span id="Location">In Utrecht, Netherlands</span>
</body></html>`
}

// fakeSite serves a login handshake, a two page nearest search and cache
// listings. Everything but the login form requires the userid cookie.
type fakeSite struct {
	t        *testing.T
	mu       sync.Mutex
	logins   int
	listings []string
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = io.WriteString(w, loginPage)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/Default.aspx":
		if err := r.ParseForm(); err != nil {
			s.t.Errorf("bad login form: %v", err)
		}
		s.mu.Lock()
		s.logins++
		s.mu.Unlock()
		if r.PostForm.Get("__VIEWSTATE") == "c3RhdGU=" && r.PostForm.Get("ctl00$MiniProfile$loginPassword") == "pw" {
			http.SetCookie(w, &http.Cookie{Name: session.SentinelCookie, Value: "7", Path: "/"})
		}
		_, _ = io.WriteString(w, "<html>welcome</html>")
		return
	}

	if c, err := r.Cookie(session.SentinelCookie); err != nil || c.Value == "" {
		_, _ = io.WriteString(w, `<p>You are not logged in.</p>`)
		return
	}

	switch r.URL.Path {
	case "/seek/nearest.aspx":
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			if r.PostForm.Get("__VIEWSTATE") != "p1" {
				s.t.Errorf("expected pager state of page 1, got %v", r.PostForm)
			}
			_, _ = io.WriteString(w, resultPage(2, 3))
			return
		}
		_, _ = io.WriteString(w, resultPage(1, 1, 2))
	case "/seek/cache_details.aspx":
		guid := r.URL.Query().Get("guid")
		s.mu.Lock()
		s.listings = append(s.listings, guid)
		s.mu.Unlock()
		_, _ = io.WriteString(w, listing(guid))
	default:
		http.NotFound(w, r)
	}
}

func fetcherConfig(baseURL, dir string, id session.Identity) scraper.Config {
	return scraper.Config{
		BaseURL:  baseURL,
		Identity: id,
		DataDir:  dir,
		Timeout:  5 * time.Second,
		Governor: ratelimit.NewGovernor(ratelimit.GovernorConfig{
			Tiers: []ratelimit.Tier{{Min: 0, Max: 0}},
		}),
		MinSpacing:   -1,
		RetryInitial: time.Millisecond,
		RetryMax:     5 * time.Millisecond,
		RetryLimit:   2,
		UserAgents:   useragent.NewPool([]string{"IntegrationBrowser/1.0"}),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHarvest_EndToEnd(t *testing.T) {
	site := &fakeSite{t: t}
	ts := httptest.NewServer(site)
	defer ts.Close()

	dir := t.TempDir()
	backend, err := sqlite.New(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer backend.Close()

	h := &pipeline.Harvester{
		NewFetcher: func(id session.Identity) (geocaching.Fetcher, error) {
			return scraper.NewFetcher(fetcherConfig(ts.URL, dir, id))
		},
		Backend: backend,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := h.Run(ctx, []pipeline.Job{{
		Identity: session.Identity{Name: "walker", Secret: "pw"},
		Search:   geocaching.SearchQuery{Lat: 52.08, Lon: 5.12, Radius: 5},
		PageSize: 2,
		Details:  true,
	}})
	if err != nil {
		t.Fatalf("harvest failed: %v", err)
	}
	if len(results) != 1 || results[0].Entries != 3 || results[0].Details != 3 || results[0].Saved != 6 {
		t.Fatalf("unexpected results %+v", results)
	}
	if site.logins != 1 {
		t.Errorf("expected a single login, got %d", site.logins)
	}
	if strings.Join(site.listings, ",") != "g-1,g-2,g-3" {
		t.Errorf("unexpected listing requests %v", site.listings)
	}

	records, err := backend.Query(ctx, storage.Filter{Kind: geocaching.KindCache})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 cache records, got %d", len(records))
	}
	for _, r := range records {
		if r.Identity != "walker" || !strings.HasPrefix(r.Key, "GC") {
			t.Errorf("unexpected record %+v", r)
		}
		if name := r.Fields.String("name"); !strings.HasPrefix(name, "Listing g-") {
			t.Errorf("unexpected name field %q", name)
		}
	}

	// A second run for the same identity reuses the persisted session.
	if _, err := h.Run(ctx, []pipeline.Job{{
		Identity: session.Identity{Name: "walker", Secret: "pw"},
		Search:   geocaching.SearchQuery{Lat: 52.08, Lon: 5.12},
		Pages:    1,
	}}); err != nil {
		t.Fatalf("second harvest failed: %v", err)
	}
	if site.logins != 1 {
		t.Errorf("expected stored session to skip login, got %d logins", site.logins)
	}
}

func TestFetcher_WrongPassword(t *testing.T) {
	ts := httptest.NewServer(&fakeSite{t: t})
	defer ts.Close()

	f, err := scraper.NewFetcher(fetcherConfig(ts.URL, t.TempDir(), session.Identity{Name: "walker", Secret: "nope"}))
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	p := geocaching.NewFindsParser(geocaching.Deps{Fetcher: f})
	if _, err := p.Parse(context.Background()); err == nil || !strings.Contains(err.Error(), "login") {
		t.Errorf("expected login failure, got %v", err)
	}
}
