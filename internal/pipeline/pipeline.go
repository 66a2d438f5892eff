// Package pipeline harvests search results and their cache listings for
// several identities at once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/geocaching"
	"github.com/FranksOps/gcparser/internal/session"
	"github.com/FranksOps/gcparser/internal/storage"
)

// Job is one identity's harvest: a search, optionally followed by the
// listing of every cache it returned.
type Job struct {
	Identity session.Identity
	Search   geocaching.SearchQuery
	// Pages limits the number of result pages walked; zero walks all.
	Pages    int
	PageSize int
	Details  bool
}

// FetcherFactory returns the fetcher a job runs on. It is called once per
// job.
type FetcherFactory func(id session.Identity) (geocaching.Fetcher, error)

// Result reports what a job produced.
type Result struct {
	Identity    string
	Entries     int
	Details     int
	PremiumOnly int
	Saved       int
}

// Harvester runs jobs. Jobs run in parallel, one goroutine per identity;
// the requests of a single job are sequential.
type Harvester struct {
	NewFetcher FetcherFactory
	// Backend receives every record; nil only counts them.
	Backend storage.Backend
	Engine  *extract.Engine
	// Concurrency caps the number of jobs in flight; zero runs all at once.
	Concurrency int
	Logger      *slog.Logger
}

// Run executes jobs and returns their results in job order. The first
// failing job cancels the others.
func (h *Harvester) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	if h.NewFetcher == nil {
		return nil, errors.New("pipeline: NewFetcher is nil")
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")

	// Two jobs on one identity would share its session files and pacing.
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if seen[j.Identity.Name] {
			return nil, fmt.Errorf("pipeline: identity %q appears in more than one job", j.Identity.Name)
		}
		seen[j.Identity.Name] = true
	}

	results := make([]Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if h.Concurrency > 0 {
		g.SetLimit(h.Concurrency)
	}

	for i, job := range jobs {
		g.Go(func() error {
			res, err := h.runJob(ctx, job, logger.With("identity", job.Identity.Name))
			results[i] = res
			if err != nil {
				return fmt.Errorf("job %q: %w", job.Identity.Name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func (h *Harvester) runJob(ctx context.Context, job Job, logger *slog.Logger) (Result, error) {
	res := Result{Identity: job.Identity.Name}

	fetcher, err := h.NewFetcher(job.Identity)
	if err != nil {
		return res, fmt.Errorf("create fetcher: %w", err)
	}
	deps := geocaching.Deps{Fetcher: fetcher, Engine: h.Engine, Logger: logger}

	search := geocaching.NewSearchParser(deps, job.Search, job.PageSize)
	entries, err := search.Entries(ctx, job.Pages)
	if err != nil {
		return res, fmt.Errorf("search: %w", err)
	}
	res.Entries = len(entries)
	logger.Info("search harvested", "entries", len(entries))

	for i := range entries {
		if err := h.save(ctx, &entries[i], job, search.URL(), &res); err != nil {
			return res, err
		}
	}

	if !job.Details {
		return res, nil
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p, err := geocaching.NewCacheParser(deps, geocaching.CacheQuery{GUID: e.GUID, Waypoint: e.Waypoint})
		if err != nil {
			logger.Warn("skipping search entry without guid or waypoint", "cache_id", e.CacheID)
			continue
		}
		d, err := p.Details(ctx)
		if err != nil {
			return res, fmt.Errorf("details of %s: %w", e.Waypoint, err)
		}
		res.Details++
		if d.PremiumOnly {
			res.PremiumOnly++
		}
		if err := h.save(ctx, d, job, p.URL(), &res); err != nil {
			return res, err
		}
	}

	logger.Info("job finished", "details", res.Details, "premium_only", res.PremiumOnly, "saved", res.Saved)
	return res, nil
}

func (h *Harvester) save(ctx context.Context, r geocaching.Record, job Job, url string, res *Result) error {
	if h.Backend == nil {
		return nil
	}
	rec := storage.NewRecord(r.Kind(), r.Key(), job.Identity.Name, url, r.Fields())
	if err := h.Backend.Save(ctx, rec); err != nil {
		return fmt.Errorf("save %s/%s: %w", r.Kind(), r.Key(), err)
	}
	res.Saved++
	return nil
}
