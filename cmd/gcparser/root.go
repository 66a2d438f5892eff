package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/gcparser/internal/config"
	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/geocaching"
	"github.com/FranksOps/gcparser/internal/metrics"
	"github.com/FranksOps/gcparser/internal/scraper"
	"github.com/FranksOps/gcparser/internal/session"
	"github.com/FranksOps/gcparser/internal/storage"
)

// app is the state shared by every subcommand once the root command has
// loaded the configuration.
type app struct {
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
	backend    storage.Backend
	metrics    *metrics.Server
	out        io.Writer
}

func newApp(out io.Writer) *app {
	return &app{out: out}
}

// execute runs the command line and releases what setup acquired, also
// when the command failed and cobra skipped its post-run hooks.
func (a *app) execute(ctx context.Context, args []string) error {
	cmd := a.command()
	if args != nil {
		cmd.SetArgs(args)
	}
	err := cmd.ExecuteContext(ctx)
	if terr := a.teardown(); err == nil {
		err = terr
	}
	return err
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "gcparser",
		Short:         "Scrape cache listings, find logs and searches from geocaching.com",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	f.String("username", "", "account name")
	f.String("password", "", "account password")
	f.String("data-dir", "", "directory for cookie and user agent files")
	f.String("base-url", "", "site base URL")
	f.String("fingerprint", "", "TLS fingerprint: go, chrome, firefox, safari or random")
	f.Duration("timeout", 0, "per-request timeout")
	f.Bool("respect-robots", false, "check robots.txt before every fetch")
	f.StringSlice("proxies", nil, "proxy URLs, rotated on network failures")
	f.Duration("rate-interval", 0, "sustained spacing of authenticated requests")
	f.Duration("rate-min-spacing", 0, "spacing of anonymous requests")
	f.Int("rate-retry-limit", 0, "give up after this many retries (0 retries until interrupted)")
	f.String("storage-backend", "", "record store: none, sqlite, postgres, json or csv")
	f.String("storage-dsn", "", "record store DSN or file path")
	f.Int("metrics-port", 0, "serve Prometheus metrics on this port")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("log-format", "", "text or json")

	root.AddCommand(
		newCacheCommand(a),
		newFindsCommand(a),
		newSeekCommand(a),
		newProfileCommand(a),
		newHarvestCommand(a),
		newReportCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v, a.configFile)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger

	if cfg.Metrics.Port > 0 {
		a.metrics = metrics.Start(cfg.Metrics.Port, logger)
	}

	backend, err := cfg.OpenBackend(cmd.Context())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.backend = backend
	return nil
}

// teardown closes the backend and stops the metrics server. It is safe to
// call more than once.
func (a *app) teardown() error {
	logger := a.logger
	if logger == nil {
		logger = slog.Default()
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			logger.Warn("closing storage failed", "error", err)
		}
		a.backend = nil
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv := a.metrics
		a.metrics = nil
		return srv.Stop(ctx)
	}
	return nil
}

func (a *app) engine() *extract.Engine {
	return extract.NewEngine(a.logger, metrics.Extraction{})
}

func (a *app) fetcher(id session.Identity) (*scraper.Fetcher, error) {
	fc, err := a.cfg.FetcherConfig(id, a.logger)
	if err != nil {
		return nil, err
	}
	return scraper.NewFetcher(fc)
}

// run builds the parser of the given kind for the primary account, prints
// its records as JSON lines and stores them.
func (a *app) run(ctx context.Context, kind string, args geocaching.Args) error {
	id := a.cfg.Identity()
	f, err := a.fetcher(id)
	if err != nil {
		return err
	}

	deps := geocaching.Deps{Fetcher: f, Engine: a.engine(), Logger: a.logger}
	p, err := geocaching.DefaultRegistry().New(kind, deps, args)
	if err != nil {
		return err
	}
	records, err := p.Parse(ctx)
	if err != nil {
		return err
	}

	for _, r := range records {
		if err := a.emit(ctx, r, id.Name, sourceURL(p)); err != nil {
			return err
		}
	}
	return nil
}

type urlParser interface{ URL() string }

func sourceURL(p geocaching.Parser) string {
	if u, ok := p.(urlParser); ok {
		return u.URL()
	}
	return ""
}

type line struct {
	Kind   string            `json:"kind"`
	Key    string            `json:"key"`
	Fields *extract.FieldMap `json:"fields"`
}

func (a *app) emit(ctx context.Context, r geocaching.Record, identity, url string) error {
	fields := r.Fields()
	data, err := json.Marshal(line{Kind: r.Kind(), Key: r.Key(), Fields: fields})
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", r.Kind(), r.Key(), err)
	}
	if _, err := fmt.Fprintln(a.out, string(data)); err != nil {
		return err
	}
	if a.backend == nil {
		return nil
	}
	return a.backend.Save(ctx, storage.NewRecord(r.Kind(), r.Key(), identity, url, fields))
}
