package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/gcparser/internal/geocaching"
	"github.com/FranksOps/gcparser/internal/pipeline"
	"github.com/FranksOps/gcparser/internal/report"
	"github.com/FranksOps/gcparser/internal/session"
	"github.com/FranksOps/gcparser/internal/storage"
)

func newCacheCommand(a *app) *cobra.Command {
	var guid, waypoint string
	var logs bool

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Print one cache listing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := geocaching.Args{"guid": guid, "waypoint": waypoint}
			if logs {
				args["logs"] = "y"
			}
			return a.run(cmd.Context(), geocaching.KindCache, args)
		},
	}
	cmd.Flags().StringVar(&guid, "guid", "", "cache GUID")
	cmd.Flags().StringVar(&waypoint, "waypoint", "", "cache waypoint, e.g. GC1ABCD")
	cmd.Flags().BoolVar(&logs, "logs", false, "ask for the full log list")
	cmd.MarkFlagsOneRequired("guid", "waypoint")
	return cmd
}

func newFindsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "finds",
		Short: "Print the account's find logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), geocaching.KindFinds, nil)
		},
	}
}

type searchFlags struct {
	lat, lon, radius float64
	pages, pageSize  int
}

func (s *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&s.lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&s.lon, "lon", 0, "longitude in decimal degrees")
	cmd.Flags().Float64Var(&s.radius, "radius", 0, "search radius in km")
	cmd.Flags().IntVar(&s.pages, "pages", 0, "result pages to walk (0 for all)")
	cmd.Flags().IntVar(&s.pageSize, "page-size", geocaching.DefaultPageSize, "expected rows per full page")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
}

func (s *searchFlags) query() geocaching.SearchQuery {
	return geocaching.SearchQuery{Lat: s.lat, Lon: s.lon, Radius: s.radius}
}

func newSeekCommand(a *app) *cobra.Command {
	var s searchFlags
	cmd := &cobra.Command{
		Use:   "seek",
		Short: "Print the caches nearest to a point",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := a.cfg.Identity()
			f, err := a.fetcher(id)
			if err != nil {
				return err
			}
			deps := geocaching.Deps{Fetcher: f, Engine: a.engine(), Logger: a.logger}
			p := geocaching.NewSearchParser(deps, s.query(), s.pageSize)

			entries, err := p.Entries(cmd.Context(), s.pages)
			if err != nil {
				return err
			}
			for i := range entries {
				if err := a.emit(cmd.Context(), &entries[i], id.Name, p.URL()); err != nil {
					return err
				}
			}
			total, _ := p.TotalCount(cmd.Context())
			a.logger.Info("search done", "printed", len(entries), "total", total)
			return nil
		},
	}
	s.register(cmd)
	return cmd
}

func newProfileCommand(a *app) *cobra.Command {
	var text, file string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Replace the account's profile text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				text = string(data)
			}
			return a.run(cmd.Context(), geocaching.KindProfile, geocaching.Args{"text": text})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "new profile text")
	cmd.Flags().StringVar(&file, "file", "", "read the profile text from a file")
	cmd.MarkFlagsOneRequired("text", "file")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
	return cmd
}

func newHarvestCommand(a *app) *cobra.Command {
	var s searchFlags
	var details bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Search and fetch listings for every configured account in parallel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids := a.cfg.Identities()
			if len(ids) == 0 {
				return errors.New("no accounts configured")
			}

			jobs := make([]pipeline.Job, len(ids))
			for i, id := range ids {
				jobs[i] = pipeline.Job{Identity: id, Search: s.query(), Pages: s.pages, PageSize: s.pageSize, Details: details}
			}

			h := &pipeline.Harvester{
				NewFetcher: func(id session.Identity) (geocaching.Fetcher, error) {
					return a.fetcher(id)
				},
				Backend:     a.backend,
				Engine:      a.engine(),
				Concurrency: concurrency,
				Logger:      a.logger,
			}
			results, err := h.Run(cmd.Context(), jobs)
			for _, r := range results {
				if r.Identity == "" {
					continue
				}
				fmt.Fprintf(a.out, "%s\tentries=%d\tdetails=%d\tpremium_only=%d\tsaved=%d\n",
					r.Identity, r.Entries, r.Details, r.PremiumOnly, r.Saved)
			}
			return err
		},
	}
	s.register(cmd)
	cmd.Flags().BoolVar(&details, "details", true, "fetch the listing of every search result")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "accounts harvested at once (0 for all)")
	return cmd
}

func newReportCommand(a *app) *cobra.Command {
	var format, kind string
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.backend == nil {
				return errors.New("report needs a storage backend")
			}
			filter := storage.Filter{Kind: kind}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}
			records, err := a.backend.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			summary := report.GenerateSummary(records)
			switch format {
			case "json":
				return report.WriteJSON(a.out, summary)
			case "html":
				return report.WriteHTML(a.out, summary)
			case "text":
				return report.WriteText(a.out, summary)
			}
			return fmt.Errorf("unknown report format %q", format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "text, json or html")
	cmd.Flags().StringVar(&kind, "kind", "", "only records of this kind")
	cmd.Flags().DurationVar(&since, "since", 0, "only records fetched within this duration")
	return cmd
}
