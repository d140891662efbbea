package crawler

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var backgroundURL = regexp.MustCompile(`url\(['"]?([^'"]+)['"]?\)`)

// assetRule pulls raw candidate references out of a document for one selector.
type assetRule struct {
	selector string
	attrs    []string
}

// assetRules run in this order; the order determines probe order and inventory order.
var assetRules = []assetRule{
	{selector: "a[href]", attrs: []string{"href"}},
	{selector: "script[src]", attrs: []string{"src"}},
	{selector: `link[rel="stylesheet"], link[href]`, attrs: []string{"href"}},
	{selector: "img[src], img[data-src], img[data-lazy-src]", attrs: []string{"src", "data-src", "data-lazy-src"}},
	{selector: `[style*="background-image"]`},
	{selector: `link[rel*="font"], link[href*="font"]`, attrs: []string{"href"}},
	{selector: "video[src], audio[src], source[src]", attrs: []string{"src"}},
	{selector: `link[rel*="icon"]`, attrs: []string{"href"}},
}

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// extractAssets returns raw asset references in rule order, duplicates included.
func extractAssets(doc *goquery.Document) []string {
	var out []string
	for _, rule := range assetRules {
		doc.Find(rule.selector).Each(func(_ int, s *goquery.Selection) {
			if ref := rule.reference(s); ref != "" {
				out = append(out, ref)
			}
		})
	}
	return out
}

func (r assetRule) reference(s *goquery.Selection) string {
	if r.attrs == nil {
		style, _ := s.Attr("style")
		if m := backgroundURL.FindStringSubmatch(style); m != nil {
			return m[1]
		}
		return ""
	}
	// The first non-empty attribute wins, so a lazy image with both src and data-src yields src.
	for _, attr := range r.attrs {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// extractLinks returns anchor targets in document order.
func extractLinks(doc *goquery.Document) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			out = append(out, href)
		}
	})
	return out
}
