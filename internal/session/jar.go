package session

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// SentinelCookie is only present once the site accepted a login.
const SentinelCookie = "userid"

// Cookie is the persisted form of a single cookie.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires,omitzero"`
	// Discard marks a browser-session cookie with no expiry.
	Discard bool `json:"discard"`
	Secure  bool `json:"secure,omitempty"`
	// HostOnly cookies were set without a Domain attribute and are not
	// sent to subdomains.
	HostOnly bool `json:"host_only,omitempty"`
}

func (c Cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c Cookie) matches(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	if host != domain && (c.HostOnly || !strings.HasSuffix(host, "."+domain)) {
		return false
	}
	if c.Secure && u.Scheme != "https" {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return pathMatch(p, c.Path)
}

// pathMatch is the RFC 6265 path-match: cookiePath is a prefix of p ending
// at a "/" boundary.
func pathMatch(p, cookiePath string) bool {
	if !strings.HasPrefix(p, cookiePath) {
		return false
	}
	return len(p) == len(cookiePath) ||
		strings.HasSuffix(cookiePath, "/") ||
		p[len(cookiePath)] == '/'
}

// State is one identity's cookie set. It implements http.CookieJar and
// keeps cookies in the order they were first set. Session cookies and
// expired cookies are retained so the whole set survives a save.
type State struct {
	mu      sync.Mutex
	cookies []Cookie
	now     func() time.Time
}

// NewState returns a State holding a copy of cookies.
func NewState(cookies []Cookie) *State {
	s := &State{now: time.Now}
	s.cookies = append(s.cookies, cookies...)
	return s
}

// SetCookies implements http.CookieJar.
func (s *State) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, hc := range cookies {
		c := Cookie{
			Name:   hc.Name,
			Value:  hc.Value,
			Domain: hc.Domain,
			Path:   hc.Path,
			Secure: hc.Secure,
		}
		if c.Domain == "" {
			c.Domain = u.Hostname()
			c.HostOnly = true
		}
		if c.Path == "" || !strings.HasPrefix(c.Path, "/") {
			c.Path = "/"
		}
		switch {
		case hc.MaxAge < 0:
			c.Expires = now
		case hc.MaxAge > 0:
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		case !hc.Expires.IsZero():
			c.Expires = hc.Expires
		default:
			c.Discard = true
		}

		if c.expired(now) {
			s.removeLocked(c)
			continue
		}
		s.upsertLocked(c)
	}
}

// Cookies implements http.CookieJar.
func (s *State) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []*http.Cookie
	for _, c := range s.cookies {
		if c.expired(now) || !c.matches(u) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Authenticated reports whether the login sentinel cookie is present.
func (s *State) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cookies {
		if c.Name == SentinelCookie && c.Value != "" {
			return true
		}
	}
	return false
}

// All returns a copy of every cookie in insertion order.
func (s *State) All() []Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out
}

// Clear drops every cookie.
func (s *State) Clear() {
	s.mu.Lock()
	s.cookies = nil
	s.mu.Unlock()
}

// Forget drops every cookie called name, whatever its domain or path.
func (s *State) Forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.cookies[:0]
	for _, c := range s.cookies {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	s.cookies = kept
}

func sameCookie(a, b Cookie) bool {
	return a.Name == b.Name &&
		strings.EqualFold(strings.TrimPrefix(a.Domain, "."), strings.TrimPrefix(b.Domain, ".")) &&
		a.Path == b.Path
}

func (s *State) upsertLocked(c Cookie) {
	for i := range s.cookies {
		if sameCookie(s.cookies[i], c) {
			s.cookies[i] = c
			return
		}
	}
	s.cookies = append(s.cookies, c)
}

func (s *State) removeLocked(c Cookie) {
	kept := s.cookies[:0]
	for _, existing := range s.cookies {
		if !sameCookie(existing, c) {
			kept = append(kept, existing)
		}
	}
	s.cookies = kept
}
