// Package collyfetcher implements the static fetch and metadata probe using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/sitecopier/internal/fetcher"
	"github.com/JakeFAU/sitecopier/internal/ratelimit"
)

// DefaultUserAgent mimics a desktop browser so sites serve their regular markup.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const (
	defaultTimeout      = 10 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultMaxRedirects = 5
	defaultMaxBodySize  = 64 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	MaxRedirects int
	MaxBodySize  int
	// Limiter throttles requests per host. Nil disables throttling.
	Limiter *ratelimit.Limiter
}

// Fetcher implements fetcher.StaticFetcher and fetcher.Prober using Colly collectors.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	get       *colly.Collector
	head      *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	cfg = withDefaults(cfg)
	transport := newHTTPTransport()
	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		get:       newBaseCollector(cfg, transport, cfg.Timeout),
		head:      newBaseCollector(cfg, transport, cfg.ProbeTimeout),
	}
}

// WithTimeout returns a Fetcher sharing this one's transport whose full-body fetches use d.
func (f *Fetcher) WithTimeout(d time.Duration) *Fetcher {
	cfg := f.cfg
	cfg.Timeout = d
	cfg = withDefaults(cfg)
	return &Fetcher{
		cfg:       cfg,
		transport: f.transport,
		get:       newBaseCollector(cfg, f.transport, cfg.Timeout),
		head:      f.head,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	return cfg
}

// Clones share the backend client, so timeout, transport, and redirect policy are fixed here.
func newBaseCollector(cfg Config, transport http.RoundTripper, timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(cfg.MaxBodySize),
		colly.ParseHTTPErrorResponse(),
	)
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)
	maxRedirects := cfg.MaxRedirects
	c.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})
	return c
}

// Fetch executes a single HTTP GET. Statuses of 400 and above are reported as a NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (fetcher.Page, error) {
	if err := f.cfg.Limiter.Wait(ctx, url); err != nil {
		return fetcher.Page{}, &fetcher.NetworkError{URL: url, Op: http.MethodGet, Err: err}
	}
	var (
		result   fetcher.Page
		fetchErr error
	)
	collector := f.get.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, &result, &fetchErr)

	if err := runCollector(ctx, func() error { return collector.Visit(url) }, &fetchErr); err != nil {
		return fetcher.Page{}, &fetcher.NetworkError{URL: url, Op: http.MethodGet, Err: err}
	}
	if result.StatusCode >= http.StatusBadRequest {
		return fetcher.Page{}, &fetcher.NetworkError{URL: url, Op: http.MethodGet, StatusCode: result.StatusCode}
	}
	result.URL = url
	return result, nil
}

// Probe issues a HEAD request and reports the declared content-type and length.
// Any HTTP status is accepted; only transport failures are errors.
func (f *Fetcher) Probe(ctx context.Context, url string) (fetcher.Meta, error) {
	if err := f.cfg.Limiter.Wait(ctx, url); err != nil {
		return fetcher.Meta{}, &fetcher.NetworkError{URL: url, Op: http.MethodHead, Err: err}
	}
	var (
		page     fetcher.Page
		probeErr error
		length   *int64
	)
	collector := f.head.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, &page, &probeErr)
	collector.OnResponse(func(r *colly.Response) {
		length = contentLength(r.Headers)
	})

	if err := runCollector(ctx, func() error { return collector.Head(url) }, &probeErr); err != nil {
		return fetcher.Meta{}, &fetcher.NetworkError{URL: url, Op: http.MethodHead, Err: err}
	}
	return fetcher.Meta{
		StatusCode:  page.StatusCode,
		ContentType: page.ContentType,
		Size:        length,
	}, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetcher.Page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = fetcher.Page{
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
		if r.Headers != nil {
			result.ContentType = r.Headers.Get("Content-Type")
		}
		if r.Request != nil && r.Request.URL != nil {
			result.FinalURL = r.Request.URL.String()
		}
	})

	// With ParseHTTPErrorResponse set, status errors reach OnResponse; only transport failures land here.
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, visit func() error, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- visit()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func contentLength(h *http.Header) *int64 {
	if h == nil {
		return nil
	}
	raw := h.Get("Content-Length")
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
