// Package geocaching holds the page parsers for the geocaching.com
// listing site and the registry that maps record kinds to them.
package geocaching

import (
	"context"
	"log/slog"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/scraper"
)

// Fetcher retrieves pages. *scraper.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req scraper.Request) (*scraper.Page, error)
}

// Deps is what every parser needs.
type Deps struct {
	Fetcher Fetcher
	// Engine defaults to an engine logging through Logger.
	Engine *extract.Engine
	Logger *slog.Logger
}

func (d Deps) withDefaults(component string) Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Engine == nil {
		d.Engine = extract.NewEngine(d.Logger, nil)
	}
	d.Logger = d.Logger.With("component", component)
	return d
}

// Parser is the common face of everything in the Registry. Parse fetches
// what it needs on first call and returns cached records afterwards.
type Parser interface {
	Parse(ctx context.Context) ([]Record, error)
}
