package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/classify"
	"github.com/JakeFAU/sitecopier/internal/fetcher"
	"github.com/JakeFAU/sitecopier/internal/metrics"
	"github.com/JakeFAU/sitecopier/internal/site"
	"github.com/JakeFAU/sitecopier/internal/urlnorm"
)

// Defaults applied when Options or Config leave a bound unset.
const (
	DefaultMaxDepth     = 5
	DefaultMaxPages     = 100
	DefaultLinksPerPage = 10
)

// ErrSeedFetch reports that the seed page could not be fetched or rendered.
var ErrSeedFetch = errors.New("seed page fetch failed")

// Config wires the crawler's collaborators.
type Config struct {
	Static   fetcher.StaticFetcher
	Prober   fetcher.Prober
	Renderer fetcher.Renderer // optional; nil disables rendered fetches
	Logger   *zap.Logger
	// LinksPerPage caps how many unvisited links each page contributes to the walk.
	LinksPerPage int
}

// Options bounds one scan.
type Options struct {
	MaxDepth         int  `json:"maxDepth"`
	MaxPages         int  `json:"maxPages"`
	UseRenderedFetch bool `json:"useRenderedFetch"`
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// Stats summarizes the work done by one scan.
type Stats struct {
	PagesVisited  int           `json:"pagesVisited"`
	PagesFailed   int           `json:"pagesFailed"`
	AssetsProbed  int           `json:"assetsProbed"`
	ProbeFailures int           `json:"probeFailures"`
	Duration      time.Duration `json:"duration"`
}

// Crawler walks a single origin and produces an inventory.
type Crawler struct {
	static       fetcher.StaticFetcher
	prober       fetcher.Prober
	renderer     fetcher.Renderer
	logger       *zap.Logger
	linksPerPage int
}

// New validates cfg and builds a Crawler.
func New(cfg Config) (*Crawler, error) {
	if cfg.Static == nil {
		return nil, errors.New("crawler: static fetcher is required")
	}
	if cfg.Prober == nil {
		return nil, errors.New("crawler: prober is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LinksPerPage <= 0 {
		cfg.LinksPerPage = DefaultLinksPerPage
	}
	return &Crawler{
		static:       cfg.Static,
		prober:       cfg.Prober,
		renderer:     cfg.Renderer,
		logger:       cfg.Logger,
		linksPerPage: cfg.LinksPerPage,
	}, nil
}

// Scan crawls seed and returns every same-origin resource discovered.
func (c *Crawler) Scan(ctx context.Context, seed string, opts Options) (*site.Inventory, error) {
	inv, _, err := c.ScanWithStats(ctx, seed, opts)
	return inv, err
}

// frame is one pending page visit.
type frame struct {
	url   string
	depth int
}

// scanState is owned by exactly one ScanWithStats call.
type scanState struct {
	policy  *urlnorm.Policy
	opts    Options
	visited map[string]struct{}
	inv     *site.Inventory
	stats   Stats
	logger  *zap.Logger
}

// ScanWithStats is Scan plus counters. On context cancellation the partial inventory is returned
// alongside the context error.
func (c *Crawler) ScanWithStats(ctx context.Context, seed string, opts Options) (inv *site.Inventory, stats Stats, err error) {
	ctx, span := otel.Tracer("sitecopier/crawler").Start(ctx, "crawler.Scan")
	defer func() {
		span.SetAttributes(
			attribute.Int("crawler.pages_visited", stats.PagesVisited),
			attribute.Int("crawler.assets_probed", stats.AssetsProbed),
		)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	policy, err := urlnorm.NewPolicy(seed)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("scan %q: %w", seed, err)
	}
	span.SetAttributes(attribute.String("crawler.seed", policy.Origin()))
	s := &scanState{
		policy:  policy,
		opts:    opts.withDefaults(),
		visited: make(map[string]struct{}),
		inv:     site.NewInventory(),
		logger:  c.logger.With(zap.String("seed", seed)),
	}
	s.logger.Info("scan started",
		zap.Int("max_depth", s.opts.MaxDepth),
		zap.Int("max_pages", s.opts.MaxPages),
		zap.Bool("rendered", s.opts.UseRenderedFetch))

	stack := []frame{{url: seed, depth: 0}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			s.stats.Duration = time.Since(start)
			return s.inv, s.stats, fmt.Errorf("scan %q: %w", seed, err)
		}
		if len(s.visited) >= s.opts.MaxPages {
			break
		}
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		target, ok := s.admit(next)
		if !ok {
			continue
		}
		links, err := c.visit(ctx, s, target, next.depth)
		if err != nil {
			if next.depth == 0 {
				s.stats.Duration = time.Since(start)
				return nil, s.stats, fmt.Errorf("%w: %w", ErrSeedFetch, err)
			}
			continue
		}
		// Reverse push so the first link is explored first.
		for i := len(links) - 1; i >= 0; i-- {
			stack = append(stack, frame{url: links[i], depth: next.depth + 1})
		}
	}

	s.stats.Duration = time.Since(start)
	s.logger.Info("scan finished",
		zap.Int("pages", s.stats.PagesVisited),
		zap.Int("files", s.inv.Len()),
		zap.Duration("duration", s.stats.Duration))
	return s.inv, s.stats, nil
}

// admit applies the terminal checks for a pending frame and marks the page visited.
func (s *scanState) admit(f frame) (string, bool) {
	if f.depth > s.opts.MaxDepth || len(s.visited) >= s.opts.MaxPages {
		return "", false
	}
	target, err := s.policy.Normalize(f.url)
	if err != nil || !s.policy.SameOrigin(target) {
		return "", false
	}
	if _, seen := s.visited[target]; seen {
		return "", false
	}
	s.visited[target] = struct{}{}
	return target, true
}

// visit fetches one page, registers it and its assets, and returns its unvisited same-origin links.
func (c *Crawler) visit(ctx context.Context, s *scanState, target string, depth int) ([]string, error) {
	page, err := c.fetchPage(ctx, target, depth == 0 && s.opts.UseRenderedFetch)
	host := metrics.SanitizeSite(target)
	if err != nil {
		s.stats.PagesFailed++
		metrics.ObservePage(host, metrics.StatusFailed, 0)
		s.logger.Warn("page fetch failed", zap.String("url", target), zap.Int("depth", depth), zap.Error(err))
		return nil, err
	}
	s.stats.PagesVisited++
	metrics.ObservePage(host, metrics.StatusFetched, len(page.Body))
	if !page.Rendered && !htmlResponse(page.ContentType) {
		// Linked pages were registered as assets before the visit and keep that entry. Only a
		// non-HTML seed is recorded here, from its own response.
		if file := responseEntry(target, page); s.inv.Add(file) {
			metrics.ObserveAsset(string(file.Category))
		}
		return nil, nil
	}

	size := int64(len(page.Body))
	s.inv.Put(site.ScannedFile{
		URL:      target,
		Path:     urlnorm.Path(target),
		Type:     "text/html",
		Size:     &size,
		MimeType: "text/html",
		Category: site.CategoryHTML,
	})

	doc, err := parseDocument(page.Body)
	if err != nil {
		s.logger.Warn("page parse failed", zap.String("url", target), zap.Error(err))
		return nil, nil
	}
	for _, ref := range extractAssets(doc) {
		c.registerAsset(ctx, s, ref)
	}
	return s.unvisitedLinks(extractLinks(doc), c.linksPerPage), nil
}

func (c *Crawler) fetchPage(ctx context.Context, target string, rendered bool) (fetcher.Page, error) {
	if rendered && c.renderer != nil {
		page, err := c.renderer.Render(ctx, target)
		if err != nil {
			return fetcher.Page{}, fmt.Errorf("render %s: %w", target, err)
		}
		return page, nil
	}
	page, err := c.static.Fetch(ctx, target)
	if err != nil {
		return fetcher.Page{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	return page, nil
}

// registerAsset probes ref and adds it to the inventory. A failed probe still records the asset
// with a category guessed from its extension.
func (c *Crawler) registerAsset(ctx context.Context, s *scanState, ref string) {
	assetURL, err := s.policy.Normalize(ref)
	if err != nil || !s.policy.SameOrigin(assetURL) || s.inv.Has(assetURL) {
		return
	}
	s.stats.AssetsProbed++
	file := site.ScannedFile{URL: assetURL, Path: urlnorm.Path(assetURL), Type: site.UnknownType}

	meta, err := c.prober.Probe(ctx, assetURL)
	if err != nil {
		s.stats.ProbeFailures++
		metrics.ObserveProbeFailure()
		s.logger.Debug("asset probe failed", zap.String("url", assetURL), zap.Error(err))
		file.Category = classify.Category(assetURL, "")
	} else {
		mediaType := classify.MediaType(meta.ContentType)
		if mediaType != "" {
			file.Type = mediaType
			file.MimeType = mediaType
		}
		if meta.Size != nil && *meta.Size > 0 {
			file.Size = meta.Size
		}
		file.Category = classify.Category(assetURL, mediaType)
	}
	if s.inv.Add(file) {
		metrics.ObserveAsset(string(file.Category))
	}
}

func responseEntry(target string, page fetcher.Page) site.ScannedFile {
	mediaType := classify.MediaType(page.ContentType)
	file := site.ScannedFile{URL: target, Path: urlnorm.Path(target), Type: site.UnknownType}
	if mediaType != "" {
		file.Type = mediaType
		file.MimeType = mediaType
	}
	if len(page.Body) > 0 {
		size := int64(len(page.Body))
		file.Size = &size
	}
	file.Category = classify.Category(target, mediaType)
	return file
}

func htmlResponse(contentType string) bool {
	switch classify.MediaType(contentType) {
	case "", "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

func (s *scanState) unvisitedLinks(refs []string, limit int) []string {
	var out []string
	for _, ref := range refs {
		if len(out) == limit {
			break
		}
		link, err := s.policy.Normalize(ref)
		if err != nil || !s.policy.SameOrigin(link) {
			continue
		}
		if _, seen := s.visited[link]; seen {
			continue
		}
		out = append(out, link)
	}
	return out
}
