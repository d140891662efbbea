// Package metrics exposes Prometheus collectors for scans, analysis, and archive assembly.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecopier_pages_total",
			Help: "Total number of pages crawled, labeled by site and status.",
		},
		[]string{"site", "status"},
	)

	bytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecopier_bytes_total",
			Help: "Total number of page bytes fetched during scans, labeled by site.",
		},
		[]string{"site"},
	)

	assetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecopier_assets_total",
			Help: "Total number of assets registered in inventories, labeled by category.",
		},
		[]string{"category"},
	)

	probeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecopier_probe_failures_total",
			Help: "Total number of asset metadata probes that failed and produced a degraded entry.",
		},
	)

	pixelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecopier_pixels_total",
			Help: "Total number of tracking pixels detected, labeled by vendor.",
		},
		[]string{"vendor"},
	)

	buttonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecopier_buttons_total",
			Help: "Total number of call-to-action elements detected.",
		},
	)

	archiveEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecopier_archive_entries_total",
			Help: "Total number of archive entries processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	rewritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecopier_rewrites_total",
			Help: "Total number of document rewrites, labeled by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitecopier_rate_limit_delay_seconds",
			Help:    "Histogram of per-host rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
		},
		[]string{"method", "route"},
	)

	httpResponseBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_response_bytes_total",
			Help: "Total response body bytes written, labeled by route.",
		},
		[]string{"route"},
	)
)

// Page statuses.
const (
	StatusFetched = "fetched"
	StatusFailed  = "failed"
)

// Archive entry outcomes.
const (
	OutcomeStored    = "stored"
	OutcomeRewritten = "rewritten"
	OutcomeSkipped   = "skipped"
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one crawled page.
func ObservePage(site, status string, bytesFetched int) {
	sanitized := SanitizeSite(site)
	pagesTotal.WithLabelValues(sanitized, status).Inc()
	if bytesFetched > 0 {
		bytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// ObserveAsset records one inventory registration.
func ObserveAsset(category string) {
	assetsTotal.WithLabelValues(category).Inc()
}

// ObserveProbeFailure records a failed metadata probe.
func ObserveProbeFailure() {
	probeFailuresTotal.Inc()
}

// ObservePixel records one detected pixel.
func ObservePixel(vendor string) {
	pixelsTotal.WithLabelValues(vendor).Inc()
}

// ObserveButtons records detected call-to-action elements.
func ObserveButtons(n int) {
	if n > 0 {
		buttonsTotal.Add(float64(n))
	}
}

// ObserveArchiveEntry records one processed archive entry.
func ObserveArchiveEntry(outcome string) {
	archiveEntriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRewrite records one rewrite operation.
func ObserveRewrite(kind, outcome string) {
	rewritesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served request. Archive downloads dominate the byte counter.
func ObserveHTTPRequest(method, route string, code int, written int64, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
	if written > 0 {
		httpResponseBytesTotal.WithLabelValues(route).Add(float64(written))
	}
}
