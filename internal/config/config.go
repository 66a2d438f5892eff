// Package config loads gcparser settings from a config file, GCPARSER_*
// environment variables and command line flags.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FranksOps/gcparser/internal/fingerprint"
	"github.com/FranksOps/gcparser/internal/scraper"
	"github.com/FranksOps/gcparser/internal/session"
	"github.com/FranksOps/gcparser/internal/storage"
	"github.com/FranksOps/gcparser/internal/storage/csvbackend"
	"github.com/FranksOps/gcparser/internal/storage/jsonbackend"
	"github.com/FranksOps/gcparser/internal/storage/postgres"
	"github.com/FranksOps/gcparser/internal/storage/sqlite"
	"github.com/FranksOps/gcparser/pkg/proxy"
	"github.com/FranksOps/gcparser/pkg/ratelimit"
)

// EnvPrefix prefixes every environment variable, e.g. GCPARSER_USERNAME or
// GCPARSER_STORAGE_DSN.
const EnvPrefix = "GCPARSER"

// Account is one set of site credentials.
type Account struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type RateConfig struct {
	// Interval is the sustained per-request spacing of the governor.
	Interval time.Duration `mapstructure:"interval"`
	// MinSpacing separates anonymous requests; negative disables it.
	MinSpacing time.Duration `mapstructure:"min_spacing"`
	RetryLimit int           `mapstructure:"retry_limit"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // none, sqlite, postgres, json or csv
	DSN     string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"` // zero disables the metrics server
}

// Config is the full set of settings.
type Config struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Accounts lists extra identities for the harvest command.
	Accounts []Account `mapstructure:"accounts"`

	DataDir       string        `mapstructure:"data_dir"`
	BaseURL       string        `mapstructure:"base_url"`
	Fingerprint   string        `mapstructure:"fingerprint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Proxies       []string      `mapstructure:"proxies"`

	Rate    RateConfig    `mapstructure:"rate"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultDataDir is where cookie and user agent files live unless
// data_dir says otherwise.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".geocaching", "parser")
}

// New returns a viper instance with defaults and environment lookup set
// up. Flags are bound by the caller with BindFlags.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("accounts", []Account{})
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("base_url", scraper.DefaultBaseURL)
	v.SetDefault("fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("respect_robots", false)
	v.SetDefault("proxies", []string{})
	v.SetDefault("rate.interval", ratelimit.DefaultInterval)
	v.SetDefault("rate.min_spacing", time.Second)
	v.SetDefault("rate.retry_limit", 0)
	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// BindFlags binds each flag to the key of the same name, with dashes
// turned into underscores and the first dash of rate-, storage- and
// metrics- flags into a dot ("storage-dsn" binds "storage.dsn").
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		if bindErr := v.BindPFlag(flagKey(f.Name), f); bindErr != nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

func flagKey(name string) string {
	for _, section := range []string{"rate", "storage", "metrics"} {
		if rest, ok := strings.CutPrefix(name, section+"-"); ok {
			return section + "." + strings.ReplaceAll(rest, "-", "_")
		}
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Load reads the optional config file at path and decodes the merged
// settings. A missing path is not an error; an unreadable file is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := fingerprint.ParseProfile(c.Fingerprint); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Storage.Backend {
	case "", "none", "sqlite", "postgres", "json", "csv":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != "" && c.Storage.Backend != "none" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage backend %s needs storage.dsn", c.Storage.Backend)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// Identity returns the primary account as a session identity.
func (c *Config) Identity() session.Identity {
	return session.Identity{Name: c.Username, Secret: c.Password}
}

// Identities returns the primary account followed by Accounts, skipping
// empty and repeated usernames.
func (c *Config) Identities() []session.Identity {
	seen := make(map[string]bool)
	var out []session.Identity
	add := func(name, secret string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, session.Identity{Name: name, Secret: secret})
	}
	add(c.Username, c.Password)
	for _, a := range c.Accounts {
		add(a.Username, a.Password)
	}
	return out
}

// FetcherConfig translates the settings into a scraper.Config for id.
// Every call creates a fresh governor, since pacing is per identity.
func (c *Config) FetcherConfig(id session.Identity, logger *slog.Logger) (scraper.Config, error) {
	profile, err := fingerprint.ParseProfile(c.Fingerprint)
	if err != nil {
		return scraper.Config{}, err
	}

	var pool *proxy.Pool
	if len(c.Proxies) > 0 {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.Add(c.Proxies...); err != nil {
			return scraper.Config{}, fmt.Errorf("config: %w", err)
		}
	}

	return scraper.Config{
		BaseURL:       c.BaseURL,
		Identity:      id,
		DataDir:       c.DataDir,
		Timeout:       c.Timeout,
		Fingerprint:   profile,
		ProxyPool:     pool,
		Governor:      ratelimit.NewGovernor(ratelimit.GovernorConfig{Interval: c.Rate.Interval}),
		MinSpacing:    c.Rate.MinSpacing,
		RetryLimit:    c.Rate.RetryLimit,
		RespectRobots: c.RespectRobots,
		Logger:        logger,
	}, nil
}

// OpenBackend opens the configured record store. It returns nil, nil when
// storage is disabled.
func (c *Config) OpenBackend(ctx context.Context) (storage.Backend, error) {
	switch c.Storage.Backend {
	case "", "none":
		return nil, nil
	case "sqlite":
		return sqlite.New(c.Storage.DSN)
	case "postgres":
		return postgres.New(ctx, c.Storage.DSN)
	case "json":
		return jsonbackend.New(c.Storage.DSN)
	case "csv":
		return csvbackend.New(c.Storage.DSN)
	}
	return nil, fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New("config: unknown log level " + s)
	}
	return level, nil
}
