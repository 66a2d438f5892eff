package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/metrics"
	"github.com/FranksOps/gcparser/internal/session"
)

const (
	loginPage   = "/"
	loginAction = "/Default.aspx"

	fieldUsername = "ctl00$MiniProfile$loginUsername"
	fieldPassword = "ctl00$MiniProfile$loginPassword"
	fieldButton   = "ctl00$MiniProfile$LoginBtn"
	fieldRemember = "ctl00$MiniProfile$loginRemember"
)

// LoginAttempts is how many times Login tries before ErrLoginFailed.
const LoginAttempts = 2

// Authenticator drives the login form. It runs inside the Fetcher's lock
// and uses the Fetcher's unlocked request path.
type Authenticator struct {
	f      *Fetcher
	logger *slog.Logger
}

func newAuthenticator(f *Fetcher, logger *slog.Logger) *Authenticator {
	return &Authenticator{f: f, logger: logger.With("component", "auth")}
}

// Login tries up to LoginAttempts times and persists the session on
// success.
func (a *Authenticator) Login(ctx context.Context) error {
	if !a.f.cfg.Identity.Complete() {
		a.logger.Error("cannot log in, no credentials available")
		return ErrCredentialsMissing
	}

	for i := 1; i <= LoginAttempts; i++ {
		ok, err := a.attempt(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		switch {
		case err != nil:
			metrics.RecordLogin("error")
			a.logger.Warn("login attempt failed", "attempt", i, "error", err)
		case !ok:
			metrics.RecordLogin("rejected")
			a.logger.Warn("login attempt rejected", "attempt", i)
		default:
			metrics.RecordLogin("success")
			a.logger.Info("logged in", "attempt", i)
			if err := a.f.sessions.Save(); err != nil {
				a.logger.Warn("failed to save cookies", "error", err)
			}
			return nil
		}
	}
	return ErrLoginFailed
}

// attempt submits the login form once. Only the session cookie decides
// success; the response markup is ignored.
func (a *Authenticator) attempt(ctx context.Context) (bool, error) {
	state := a.f.sessions.Get()
	state.Forget(session.SentinelCookie)

	page, err := a.f.fetch(ctx, Request{URL: loginPage, Authenticate: true, SkipLoginCheck: true})
	if err != nil {
		return false, err
	}

	form := extract.HiddenFields(page.Body)
	id := a.f.cfg.Identity
	form.Set(fieldUsername, id.Name)
	form.Set(fieldPassword, id.Secret)
	form.Set(fieldButton, "Go")
	form.Set(fieldRemember, "on")

	_, err = a.f.fetch(ctx, Request{URL: loginAction, Authenticate: true, Form: form, SkipLoginCheck: true})
	var se *StatusError
	if err != nil && !errors.As(err, &se) {
		return false, err
	}
	return state.Authenticated(), nil
}
