// Package app loads newsdesk configuration and wires the harvest pipeline
// shared by the CLI and the API server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/gate"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/pipeline"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/sources"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/store"
	"github.com/RobinCoderZhao/newsdesk/pkg/config"
	"github.com/RobinCoderZhao/newsdesk/pkg/logger"
	"github.com/RobinCoderZhao/newsdesk/pkg/notify"
	"github.com/RobinCoderZhao/newsdesk/pkg/scraper"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

// Config holds all newsdesk settings. Every leaf can be overridden through
// the environment variable named in its env tag.
type Config struct {
	Database storage.Config       `yaml:"database"`
	Fetch    scraper.FetchOptions `yaml:"fetch"`
	Log      logger.Config        `yaml:"log"`
	Notify   notify.Config        `yaml:"notify"`

	// Interval is the pause between the end of one sweep and the next.
	Interval      time.Duration `yaml:"interval" env:"NEWSDESK_INTERVAL"`
	BannedSources []string      `yaml:"banned_sources" env:"NEWSDESK_BANNED_SOURCES"`
	// PurgeSchedule is a 5-field cron spec or descriptor; empty disables it.
	PurgeSchedule string `yaml:"purge_schedule" env:"NEWSDESK_PURGE_SCHEDULE"`
	// CatalogPath points at a YAML source list replacing the built-in one.
	CatalogPath       string `yaml:"catalog" env:"NEWSDESK_CATALOG"`
	Listen            string `yaml:"listen" env:"NEWSDESK_LISTEN"`
	CORSOrigin        string `yaml:"cors_origin" env:"NEWSDESK_CORS_ORIGIN"`
	// APISecret signs the bearer tokens POST /api/scrape requires; empty
	// leaves the trigger open.
	APISecret         string `yaml:"api_secret" env:"NEWSDESK_API_SECRET"`
	NotifyOnlyChanges bool   `yaml:"notify_only_changes" env:"NEWSDESK_NOTIFY_ONLY_CHANGES"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Database:      storage.Config{Driver: storage.SQLite, DSN: "data/noticias.db"},
		Fetch:         scraper.DefaultFetchOptions(),
		Log:           logger.Config{Level: "info"},
		Interval:      time.Hour,
		BannedSources: []string{"Peru21"},
		PurgeSchedule: "@daily",
		Listen:        ":8080",
	}
}

// LoadConfig reads .env files, then the YAML file at path when it exists,
// then environment overrides, on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := config.LoadDotEnv(); err != nil {
		return cfg, err
	}
	if err := config.LoadOrDefault(path, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Interval <= 0 {
		return cfg, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	return cfg, nil
}

// App is a fully wired harvester.
type App struct {
	Config   Config
	Logger   *zap.Logger
	DB       *storage.DB
	Store    *store.Store
	Policy   *gate.Policy
	Catalog  *sources.Catalog
	Pipeline *pipeline.Pipeline
}

// Open connects the store, runs migrations and assembles the pipeline.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)

	catalog := sources.Default()
	if cfg.CatalogPath != "" {
		c, err := sources.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = c
	}

	db, err := OpenDB(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	policy := gate.NewPolicy(cfg.BannedSources...)
	st := store.New(db, store.WithLogger(log.Named("store")), store.WithExclusion(policy.Blocked))
	results, err := st.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, r := range results {
		log.Debug("migration", zap.String("name", r.Name), zap.Bool("skipped", r.Skipped))
	}

	g := gate.New(st, policy, log.Named("gate"))
	p := pipeline.New(catalog, scraper.NewHTTPFetcher(cfg.Fetch), g, st, pipeline.WithLogger(log.Named("pipeline")))

	return &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Store:    st,
		Policy:   policy,
		Catalog:  catalog,
		Pipeline: p,
	}, nil
}

// OpenDB creates the SQLite parent directory when needed and connects.
func OpenDB(cfg storage.Config, log *zap.Logger) (*storage.DB, error) {
	if err := ensureDir(cfg); err != nil {
		return nil, err
	}
	return storage.Open(cfg, logger.OrNop(log).Named("storage"))
}

// ensureDir creates the parent directory of a file-backed SQLite DSN.
func ensureDir(cfg storage.Config) error {
	if cfg.Driver != storage.SQLite && cfg.Driver != "" {
		return nil
	}
	if cfg.DSN == "" || strings.HasPrefix(cfg.DSN, "file:") || strings.Contains(cfg.DSN, ":memory:") {
		return nil
	}
	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}
