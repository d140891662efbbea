// Package analyzer finds call-to-action buttons and third-party tracking pixels in a page.
//
// Detection is heuristic. Buttons come from four passes (native buttons, button-styled links,
// submit inputs, button-styled containers) deduplicated by text and selector. Pixels come from
// script bodies, meta tags, noscript fallbacks, and tracking images; a Facebook pixel seen in
// several of those places is reported once.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/fetcher"
	"github.com/JakeFAU/sitecopier/internal/metrics"
	"github.com/JakeFAU/sitecopier/internal/site"
)

// Analyzer fetches a page and runs detection on the returned markup.
type Analyzer struct {
	fetcher fetcher.StaticFetcher
	logger  *zap.Logger
}

// New builds an Analyzer around a static fetcher.
func New(f fetcher.StaticFetcher, logger *zap.Logger) (*Analyzer, error) {
	if f == nil {
		return nil, errors.New("analyzer: fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{fetcher: f, logger: logger}, nil
}

// Analyze fetches pageURL and reports its buttons and pixels. Every call fetches afresh.
func (a *Analyzer) Analyze(ctx context.Context, pageURL string) (site.ContentAnalysis, error) {
	page, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return site.ContentAnalysis{}, fmt.Errorf("analyze %s: %w", pageURL, err)
	}
	analysis, err := AnalyzeDocument(pageURL, page.Body)
	if err != nil {
		return site.ContentAnalysis{}, fmt.Errorf("analyze %s: %w", pageURL, err)
	}

	metrics.ObserveButtons(len(analysis.Buttons))
	for _, px := range analysis.Pixels {
		metrics.ObservePixel(string(px.Vendor))
	}
	a.logger.Info("page analyzed",
		zap.String("url", pageURL),
		zap.Int("buttons", len(analysis.Buttons)),
		zap.Int("pixels", len(analysis.Pixels)))
	return analysis, nil
}

// AnalyzeDocument runs detection on markup already in hand.
func AnalyzeDocument(pageURL string, body []byte) (site.ContentAnalysis, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return site.ContentAnalysis{}, fmt.Errorf("parse html: %w", err)
	}
	return Detect(doc, pageURL), nil
}

// Detect runs both detectors against a parsed document. Buttons and Pixels are never nil.
func Detect(doc *goquery.Document, pageURL string) site.ContentAnalysis {
	analysis := site.ContentAnalysis{
		URL:     pageURL,
		Buttons: extractButtons(doc, pageURL),
		Pixels:  extractPixels(doc, pageURL),
	}
	if analysis.Buttons == nil {
		analysis.Buttons = []site.ButtonContent{}
	}
	if analysis.Pixels == nil {
		analysis.Pixels = []site.PixelTracking{}
	}
	return analysis
}
