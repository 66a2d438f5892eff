package session

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIdentity_FilePrefix(t *testing.T) {
	dir := t.TempDir()
	id := Identity{Name: "Jiří Novák"}

	p1 := id.FilePrefix(dir)
	p2 := Identity{Name: "Jiří Novák", Secret: "other"}.FilePrefix(dir)
	if p1 != p2 {
		t.Fatalf("expected prefix to depend on the name only, got %q and %q", p1, p2)
	}

	base := filepath.Base(p1)
	if !strings.HasPrefix(base, "JiriNovak_") {
		t.Errorf("expected ascii name prefix, got %q", base)
	}
	if len(strings.TrimPrefix(base, "JiriNovak_")) != 32 {
		t.Errorf("expected md5 hex suffix, got %q", base)
	}

	if other := (Identity{Name: "Jiri Novak"}).FilePrefix(dir); other == p1 {
		t.Error("expected different names to resolve to different files")
	}
	if (Identity{Name: "x"}).FilePrefix("") != "" {
		t.Error("expected empty prefix without a directory")
	}
}

func TestIdentity_Complete(t *testing.T) {
	if (Identity{Name: "a"}).Complete() {
		t.Error("expected identity without secret to be incomplete")
	}
	if !(Identity{Name: "a", Secret: "b"}).Complete() {
		t.Error("expected complete identity")
	}
}

func TestState_CookieJar(t *testing.T) {
	s := NewState(nil)
	u, _ := url.Parse("https://www.geocaching.com/my/")

	s.SetCookies(u, []*http.Cookie{
		{Name: "ASP.NET_SessionId", Value: "abc"},
		{Name: SentinelCookie, Value: "42", Domain: ".geocaching.com", Expires: time.Now().Add(time.Hour)},
	})
	if !s.Authenticated() {
		t.Fatal("expected sentinel cookie to authenticate")
	}

	other, _ := url.Parse("https://example.com/")
	if got := s.Cookies(other); len(got) != 0 {
		t.Errorf("expected no cookies for foreign host, got %v", got)
	}

	got := s.Cookies(u)
	if len(got) != 2 || got[0].Name != "ASP.NET_SessionId" || got[1].Name != SentinelCookie {
		t.Fatalf("expected cookies in insertion order, got %v", got)
	}

	all := s.All()
	if !all[0].Discard || all[1].Discard {
		t.Errorf("expected only the session cookie to be discardable, got %+v", all)
	}

	s.SetCookies(u, []*http.Cookie{{Name: SentinelCookie, Domain: ".geocaching.com", MaxAge: -1}})
	if s.Authenticated() {
		t.Error("expected deleted sentinel to log out")
	}
	if len(s.All()) != 1 {
		t.Errorf("expected one remaining cookie, got %d", len(s.All()))
	}
}

func TestState_PathAndHostMatching(t *testing.T) {
	s := NewState(nil)
	u, _ := url.Parse("https://www.geocaching.com/seek/nearest.aspx")

	s.SetCookies(u, []*http.Cookie{
		{Name: "scoped", Value: "1", Path: "/seek"},
		{Name: "hostonly", Value: "2", Path: "/"},
	})

	names := func(raw string) string {
		target, _ := url.Parse(raw)
		var out []string
		for _, c := range s.Cookies(target) {
			out = append(out, c.Name)
		}
		return strings.Join(out, ",")
	}

	if got := names("https://www.geocaching.com/seek"); got != "scoped,hostonly" {
		t.Errorf("exact path: got %q", got)
	}
	if got := names("https://www.geocaching.com/seek/cache_details.aspx"); got != "scoped,hostonly" {
		t.Errorf("sub path: got %q", got)
	}
	if got := names("https://www.geocaching.com/seeker"); got != "hostonly" {
		t.Errorf("expected /seek not to match /seeker, got %q", got)
	}
	if got := names("https://m.www.geocaching.com/"); got != "" {
		t.Errorf("expected host-only cookies to skip subdomains, got %q", got)
	}
}

func TestState_ReplacesSameCookie(t *testing.T) {
	s := NewState(nil)
	u, _ := url.Parse("http://www.geocaching.com/")

	s.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})
	s.SetCookies(u, []*http.Cookie{{Name: "a", Value: "3"}})

	all := s.All()
	if len(all) != 2 || all[0].Value != "3" || all[1].Name != "b" {
		t.Errorf("expected in-place replacement, got %+v", all)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cacher_x.cookie")
	u, _ := url.Parse("https://www.geocaching.com/")

	s1 := NewStore(path, nil)
	st := s1.Get()
	st.SetCookies(u, []*http.Cookie{
		{Name: "tmp", Value: "t"},
		{Name: SentinelCookie, Value: "7", Expires: time.Now().Add(24 * time.Hour)},
	})
	if err := s1.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	s2 := NewStore(path, nil)
	loaded := s2.Get()
	if loaded.Authenticated() != st.Authenticated() {
		t.Fatalf("expected authenticated=%v after reload", st.Authenticated())
	}

	before, after := st.All(), loaded.All()
	if len(before) != len(after) {
		t.Fatalf("expected %d cookies, got %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Name != after[i].Name || before[i].Value != after[i].Value ||
			before[i].Discard != after[i].Discard || !before[i].Expires.Equal(after[i].Expires) {
			t.Errorf("cookie %d changed across save: %+v vs %+v", i, before[i], after[i])
		}
	}

	if s2.Get() != loaded {
		t.Error("expected Get to return the same state")
	}
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cookie")
	if err := os.WriteFile(path, []byte("#LWP-Cookies-2.0\nnot json"), 0o600); err != nil {
		t.Fatal(err)
	}

	st := NewStore(path, nil).Get()
	if st == nil || st.Authenticated() || len(st.All()) != 0 {
		t.Error("expected corrupt file to degrade to an empty session")
	}
}

func TestStore_MemoryOnly(t *testing.T) {
	s := NewStore("", nil)
	u, _ := url.Parse("https://www.geocaching.com/")
	s.Get().SetCookies(u, []*http.Cookie{{Name: SentinelCookie, Value: "1"}})

	if err := s.Save(); err != nil {
		t.Errorf("expected memory-only save to succeed, got %v", err)
	}
	if !s.Get().Authenticated() {
		t.Error("expected in-memory state to survive within the process")
	}
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	cookie, ua := Files(dir, Identity{Name: "someone"})
	if !strings.HasSuffix(cookie, ".cookie") || !strings.HasSuffix(ua, ".ua") {
		t.Errorf("unexpected file names %q %q", cookie, ua)
	}
	if strings.TrimSuffix(cookie, ".cookie") != strings.TrimSuffix(ua, ".ua") {
		t.Error("expected both files to share a prefix")
	}

	if c, u := Files(filepath.Join(dir, "missing"), Identity{Name: "someone"}); c != "" || u != "" {
		t.Error("expected memory-only mode for a missing directory")
	}
}

func TestState_Forget(t *testing.T) {
	s := NewState([]Cookie{
		{Name: SentinelCookie, Value: "1", Domain: "www.geocaching.com", Path: "/"},
		{Name: "keep", Value: "k", Domain: "www.geocaching.com", Path: "/"},
		{Name: SentinelCookie, Value: "2", Domain: ".geocaching.com", Path: "/"},
	})
	s.Forget(SentinelCookie)
	if s.Authenticated() {
		t.Error("expected sentinel to be forgotten on every domain")
	}
	if all := s.All(); len(all) != 1 || all[0].Name != "keep" {
		t.Errorf("expected unrelated cookie kept, got %+v", all)
	}
}
