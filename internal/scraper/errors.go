package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsMissing means an authenticated operation was requested
	// without both an identity name and secret configured.
	ErrCredentialsMissing = errors.New("scraper: credentials missing")
	// ErrLoginFailed means the site never set the session cookie after
	// every login attempt.
	ErrLoginFailed = errors.New("scraper: login failed")
	// ErrSessionExpired means a page still reported a logged-out visitor
	// right after a fresh login.
	ErrSessionExpired = errors.New("scraper: session expired")
	// ErrDisallowed means robots.txt forbids the URL.
	ErrDisallowed = errors.New("scraper: disallowed by robots.txt")
)

// StatusError reports an HTTP error status. The page is returned alongside
// it so callers can inspect the body.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scraper: %s returned status %d", e.URL, e.Code)
}

// TransientError is returned when a network failure outlived the retry
// limit. Without a limit transient failures are retried until the context
// ends.
type TransientError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("scraper: %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
