// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/analyzer"
	"github.com/JakeFAU/sitecopier/internal/archive"
	"github.com/JakeFAU/sitecopier/internal/config"
	"github.com/JakeFAU/sitecopier/internal/crawler"
	"github.com/JakeFAU/sitecopier/internal/fetcher"
	collyfetcher "github.com/JakeFAU/sitecopier/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/sitecopier/internal/fetcher/headless"
	"github.com/JakeFAU/sitecopier/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/sitecopier/internal/publisher/pubsub"
	"github.com/JakeFAU/sitecopier/internal/ratelimit"
	"github.com/JakeFAU/sitecopier/internal/storage"
)

// App holds the services built from one Config. Every component shares the same HTTP transport
// and per-host rate limiter.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	Static    *collyfetcher.Fetcher
	Renderer  fetcher.Renderer
	Crawler   *crawler.Crawler
	Analyzer  *analyzer.Analyzer
	Assembler *archive.Assembler

	// Store and Publisher are nil until OpenPersistence succeeds, and stay nil when unconfigured.
	Store     storage.BlobStore
	Publisher publisher.Publisher

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// New builds the fetch, crawl, analysis, and archive services.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	})
	a.Static = collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.HTTP.Timeout(),
		ProbeTimeout: cfg.HTTP.ProbeTimeout(),
		MaxRedirects: cfg.HTTP.MaxRedirects,
		MaxBodySize:  cfg.HTTP.MaxBodyBytes,
		Limiter:      limiter,
	})
	logger.Info("using colly fetcher",
		zap.String("user_agent", cfg.HTTP.UserAgent),
		zap.Bool("rate_limited", !limiter.Unlimited()))

	a.Renderer = a.buildRenderer()

	var err error
	a.Crawler, err = crawler.New(crawler.Config{
		Static:       a.Static,
		Prober:       a.Static,
		Renderer:     a.Renderer,
		Logger:       logger.Named("crawler"),
		LinksPerPage: cfg.Crawler.LinksPerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("crawler init failed: %w", err)
	}

	a.Analyzer, err = analyzer.New(a.fetcherWithTimeout(cfg.Analyzer.FetchTimeout()), logger.Named("analyzer"))
	if err != nil {
		return nil, fmt.Errorf("analyzer init failed: %w", err)
	}

	a.Assembler, err = archive.New(archive.Config{
		Fetcher:     a.fetcherWithTimeout(cfg.Archive.FetchTimeout()),
		Concurrency: cfg.Archive.Concurrency,
		Logger:      logger.Named("archive"),
	})
	if err != nil {
		return nil, fmt.Errorf("archive init failed: %w", err)
	}
	return a, nil
}

// buildRenderer returns nil when headless rendering is disabled. A browser that fails to start
// leaves a Noop renderer in place so rendered scans fail visibly instead of silently downgrading.
func (a *App) buildRenderer() fetcher.Renderer {
	if !a.cfg.Headless.Enabled {
		a.logger.Info("headless rendering disabled")
		return nil
	}
	r, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.HTTP.UserAgent,
		NavigationTimeout: a.cfg.Headless.NavTimeout(),
		IdleTimeout:       a.cfg.Headless.IdleTimeout(),
	})
	if err != nil {
		a.logger.Warn("headless renderer init failed", zap.Error(err))
		return headlessfetcher.NewNoop()
	}
	a.logger.Info("using headless renderer", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	a.closers = append(a.closers, namedCloser{name: "headless renderer", close: func() error {
		r.Close()
		return nil
	}})
	return r
}

func (a *App) fetcherWithTimeout(d time.Duration) *collyfetcher.Fetcher {
	if d <= 0 {
		return a.Static
	}
	return a.Static.WithTimeout(d)
}

// OpenPersistence connects the configured blob store and, when a topic is set, the Pub/Sub
// publisher.
func (a *App) OpenPersistence(ctx context.Context) error {
	store, closeStore, err := storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}
	a.closers = append(a.closers, namedCloser{name: "blob store", close: closeStore})
	if store == nil {
		a.logger.Info("archive persistence disabled")
		return nil
	}
	a.Store = store
	a.logger.Info("archive persistence enabled",
		zap.String("provider", a.cfg.Storage.Provider),
		zap.String("prefix", a.cfg.Storage.Prefix))

	if a.cfg.PubSub.TopicName == "" {
		a.logger.Warn("No Pub/Sub topic configured, archive events will not be published")
		return nil
	}
	pub, err := pubsubpublisher.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub init failed: %w", err)
	}
	a.Publisher = pub
	a.closers = append(a.closers, namedCloser{name: "pubsub publisher", close: pub.Close})
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName))
	return nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close releases services in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
