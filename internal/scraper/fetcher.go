package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/FranksOps/gcparser/internal/detect"
	"github.com/FranksOps/gcparser/internal/fingerprint"
	"github.com/FranksOps/gcparser/internal/metrics"
	"github.com/FranksOps/gcparser/internal/session"
	"github.com/FranksOps/gcparser/pkg/httpclient"
	"github.com/FranksOps/gcparser/pkg/proxy"
	"github.com/FranksOps/gcparser/pkg/ratelimit"
	"github.com/FranksOps/gcparser/pkg/useragent"
	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is the site every relative path is resolved against.
const DefaultBaseURL = "https://www.geocaching.com"

const (
	headerAccept         = "text/xml,application/xml,application/xhtml+xml,text/html;q=0.9,text/plain;q=0.8"
	headerAcceptLanguage = "en-us,en;q=0.5"
	headerAcceptCharset  = "utf-8,*;q=0.5"
)

// Config configures a Fetcher for one identity.
type Config struct {
	BaseURL  string
	Identity session.Identity
	// DataDir holds the identity's cookie and user agent files. Empty or
	// missing keeps both in memory for the process lifetime.
	DataDir string

	Timeout     time.Duration
	Fingerprint fingerprint.Profile
	// InsecureSkipVerify is only meant for self-signed test servers.
	InsecureSkipVerify bool
	ProxyPool          *proxy.Pool
	UserAgents         *useragent.Pool

	// Governor paces authenticated requests; nil creates one with
	// ratelimit defaults.
	Governor *ratelimit.Governor
	// MinSpacing is the flat spacing of anonymous requests.
	MinSpacing time.Duration

	// RetryInitial and RetryMax bound the exponential backoff between
	// attempts after a network failure. RetryLimit > 0 gives up after that
	// many retries; zero retries until the context ends.
	RetryInitial time.Duration
	RetryMax     time.Duration
	RetryLimit   int

	RespectRobots bool
	Detectors     []detect.Detector
	Logger        *slog.Logger
}

// Request is a single page fetch. A non-nil Form turns it into a
// urlencoded POST.
type Request struct {
	URL          string
	Authenticate bool
	Form         url.Values
	// SkipLoginCheck disables the logged-out check, as the login
	// handshake itself fetches pages an anonymous visitor sees.
	SkipLoginCheck bool
}

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       string
	// Challenge names the bot protection vendor when the page is a block
	// or challenge page.
	Challenge string
	Duration  time.Duration
}

// Fetcher issues requests for one identity. Every public method holds a
// mutex, so the identity's pacing and session state see one request at a
// time; separate Fetchers run independently.
type Fetcher struct {
	mu     sync.Mutex
	cfg    Config
	base   *url.URL
	logger *slog.Logger

	client    *httpclient.Client // carries the session jar
	anon      *httpclient.Client
	sessions  *session.Store
	agents    *useragent.Store
	governor  *ratelimit.Governor
	limiter   *ratelimit.Limiter
	auth      *Authenticator
	robots    *RobotsAuditor
	detectors []detect.Detector
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.MinSpacing == 0 {
		cfg.MinSpacing = time.Second
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = time.Minute
	}
	if cfg.Governor == nil {
		cfg.Governor = ratelimit.NewGovernor(ratelimit.GovernorConfig{})
	}
	if cfg.Detectors == nil {
		cfg.Detectors = detect.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	logger := cfg.Logger.With("component", "fetcher")
	if cfg.Identity.Name != "" {
		logger = logger.With("identity", cfg.Identity.Name)
	}

	// The transport asks the pool on every dial, so rotating the pool
	// reroutes the next attempt.
	proxyFunc := http.ProxyFromEnvironment
	if cfg.ProxyPool != nil && cfg.ProxyPool.Len() > 0 {
		pool := cfg.ProxyPool
		proxyFunc = func(*http.Request) (*url.URL, error) {
			return pool.Current(), nil
		}
	}

	transport, err := fingerprint.Transport(fingerprint.Config{
		Profile:            cfg.Fingerprint,
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	cookiePath, uaPath := session.Files(cfg.DataDir, cfg.Identity)
	if cfg.DataDir != "" && cookiePath == "" {
		logger.Warn("data directory unusable, session state kept in memory", "dir", cfg.DataDir)
	}
	sessions := session.NewStore(cookiePath, cfg.Logger)

	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Jar:       sessions.Get(),
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	anon, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		base:      base,
		logger:    logger,
		client:    client,
		anon:      anon,
		sessions:  sessions,
		agents:    useragent.NewStore(uaPath, cfg.UserAgents),
		governor:  cfg.Governor,
		limiter:   ratelimit.NewLimiter(cfg.MinSpacing, 0.2),
		detectors: cfg.Detectors,
	}
	f.auth = newAuthenticator(f, cfg.Logger)
	if cfg.RespectRobots {
		f.robots = NewRobotsAuditor(f.anonymousText, cfg.Logger)
	}
	return f, nil
}

// URL resolves path against the base URL.
func (f *Fetcher) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return f.base.String() + path
	}
	return f.base.ResolveReference(ref).String()
}

// Identity returns the identity this Fetcher acts for.
func (f *Fetcher) Identity() session.Identity {
	return f.cfg.Identity
}

// Authenticated reports whether the session holds a login cookie.
func (f *Fetcher) Authenticated() bool {
	return f.sessions.Get().Authenticated()
}

// Login forces a fresh login.
func (f *Fetcher) Login(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth.Login(ctx)
}

// Fetch retrieves one page. Authenticated requests log in first when the
// session has no login cookie, and a page that still reports a logged-out
// visitor triggers one re-login and one retry before ErrSessionExpired.
// An HTTP error status yields both the page and a *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Authenticate {
		if !f.cfg.Identity.Complete() {
			return nil, ErrCredentialsMissing
		}
		if !f.sessions.Get().Authenticated() {
			if err := f.auth.Login(ctx); err != nil {
				return nil, err
			}
		}
	}

	page, err := f.fetch(ctx, req)
	if err != nil || !req.Authenticate || req.SkipLoginCheck || !detect.LoggedOut(page.Body) {
		return page, err
	}

	f.logger.Info("page reports logged out, refreshing login", "url", page.URL)
	if err := f.auth.Login(ctx); err != nil {
		return nil, err
	}
	page, err = f.fetch(ctx, req)
	if err != nil {
		return page, err
	}
	if detect.LoggedOut(page.Body) {
		return page, ErrSessionExpired
	}
	return page, nil
}

// fetch paces, sends and retries a single request. Callers hold f.mu.
func (f *Fetcher) fetch(ctx context.Context, req Request) (*Page, error) {
	target := f.URL(req.URL)

	if f.robots != nil {
		if !f.robots.Allowed(ctx, target, f.agents.Get()) {
			return nil, ErrDisallowed
		}
	}

	if req.Authenticate {
		delay := f.governor.Delay()
		metrics.PacingDelay.Observe(delay.Seconds())
		if delay > 0 {
			f.logger.Debug("pacing request", "delay", delay, "effective", f.governor.Effective())
		}
		if err := ratelimit.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	} else if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	page, err := f.retry(ctx, target, req)
	if err != nil {
		return nil, err
	}

	if err := f.agents.Save(); err != nil {
		f.logger.Warn("failed to save user agent", "error", err)
	}
	if req.Authenticate {
		if err := f.sessions.Save(); err != nil {
			f.logger.Warn("failed to save cookies", "error", err)
		}
	}

	if page.StatusCode >= http.StatusBadRequest {
		return page, &StatusError{Code: page.StatusCode, URL: target}
	}
	return page, nil
}

func (f *Fetcher) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.cfg.RetryInitial
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = f.cfg.RetryMax
	eb.MaxElapsedTime = 0
	eb.Reset()

	var b backoff.BackOff = eb
	if f.cfg.RetryLimit > 0 {
		b = backoff.WithMaxRetries(b, uint64(f.cfg.RetryLimit))
	}
	return backoff.WithContext(b, ctx)
}

func (f *Fetcher) retry(ctx context.Context, target string, req Request) (*Page, error) {
	var (
		page     *Page
		attempts int
	)

	op := func() error {
		attempts++
		p, err := f.do(ctx, target, req)
		if err == nil {
			page = p
			f.proxySucceeded()
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !transient(err) {
			return backoff.Permanent(err)
		}
		f.proxyFailed()
		return err
	}

	notify := func(err error, wait time.Duration) {
		metrics.FetchRetriesTotal.Inc()
		f.logger.Warn("transient fetch failure, retrying", "url", target, "attempt", attempts, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(op, f.newBackOff(ctx), notify)
	if err == nil {
		return page, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if transient(err) {
		return nil, &TransientError{URL: target, Attempts: attempts, Err: err}
	}
	return nil, err
}

func (f *Fetcher) do(ctx context.Context, target string, req Request) (*Page, error) {
	method := http.MethodGet
	var body io.Reader
	if req.Form != nil {
		method = http.MethodPost
		body = strings.NewReader(req.Form.Encode())
	}

	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	hreq.Header.Set("User-Agent", f.agents.Get())
	hreq.Header.Set("Accept", headerAccept)
	hreq.Header.Set("Accept-Language", headerAcceptLanguage)
	hreq.Header.Set("Accept-Charset", headerAcceptCharset)
	if req.Form != nil {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	client := f.anon
	if req.Authenticate {
		client = f.client
	}

	f.logger.Debug("fetching page", "method", method, "url", target)
	start := time.Now()
	resp, err := client.Do(ctx, hreq)
	if err != nil {
		metrics.RecordFetch(method, "error", req.Authenticate, "", time.Since(start), 0)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordFetch(method, "error", req.Authenticate, "", time.Since(start), len(data))
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page := &Page{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       strings.ToValidUTF8(string(data), "\uFFFD"),
		Duration:   time.Since(start),
	}
	page.Challenge = detect.Challenge(detect.Response{
		StatusCode: page.StatusCode,
		Header:     page.Header,
		Body:       page.Body,
	}, f.detectors)
	if page.Challenge != "" {
		f.logger.Warn("bot protection challenge", "url", target, "vendor", page.Challenge, "status", page.StatusCode)
	}

	metrics.RecordFetch(method, strconv.Itoa(page.StatusCode), req.Authenticate, page.Challenge, page.Duration, len(data))
	return page, nil
}

// anonymousText fetches a URL without cookies, pacing or retries. It backs
// the robots.txt lookup.
func (f *Fetcher) anonymousText(ctx context.Context, target string) (int, []byte, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	hreq.Header.Set("User-Agent", f.agents.Get())
	resp, err := f.anon.Do(ctx, hreq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (f *Fetcher) proxyFailed() {
	pool := f.cfg.ProxyPool
	if pool == nil {
		return
	}
	if u := pool.Current(); u != nil {
		_ = pool.MarkFailure(u)
		metrics.ProxyFailures.WithLabelValues(u.String()).Inc()
		if next := pool.Rotate(); next != nil {
			f.logger.Info("rotating proxy", "from", u.Redacted(), "to", next.Redacted())
		}
	}
}

func (f *Fetcher) proxySucceeded() {
	if pool := f.cfg.ProxyPool; pool != nil {
		if u := pool.Current(); u != nil {
			_ = pool.MarkSuccess(u)
		}
	}
}

// transient reports whether err is a network failure worth retrying.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var ne net.Error
		// A client timeout surfaces as DeadlineExceeded too.
		return errors.As(err, &ne) && ne.Timeout()
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	var de *net.DNSError
	return errors.As(err, &de) && de.IsTemporary
}
