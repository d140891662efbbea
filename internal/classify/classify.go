// Package classify assigns an asset category from a declared content-type and URL extension.
package classify

import (
	"net/url"
	"path"
	"strings"

	"github.com/JakeFAU/sitecopier/internal/site"
)

type typeRule struct {
	match    func(string) bool
	category site.Category
}

func prefix(p string) func(string) bool {
	return func(ct string) bool { return strings.HasPrefix(ct, p) }
}

func contains(subs ...string) func(string) bool {
	return func(ct string) bool {
		for _, s := range subs {
			if strings.Contains(ct, s) {
				return true
			}
		}
		return false
	}
}

// Checked in order; the first matching rule wins.
var typeRules = []typeRule{
	{prefix("text/html"), site.CategoryHTML},
	{prefix("text/css"), site.CategoryCSS},
	{contains("javascript", "json"), site.CategoryJS},
	{prefix("image/"), site.CategoryImage},
	{contains("font"), site.CategoryFont},
	{prefix("video/"), site.CategoryVideo},
	{prefix("audio/"), site.CategoryAudio},
	{contains("pdf", "document"), site.CategoryDocument},
}

type extBucket struct {
	category site.Category
	exts     []string
}

// Checked in order so that shared extensions (ogg) land in the earlier bucket.
var extBuckets = []extBucket{
	{site.CategoryHTML, []string{"html", "htm"}},
	{site.CategoryCSS, []string{"css"}},
	{site.CategoryJS, []string{"js", "jsx", "ts", "tsx", "json"}},
	{site.CategoryImage, []string{"jpg", "jpeg", "png", "gif", "svg", "webp", "ico", "bmp"}},
	{site.CategoryFont, []string{"woff", "woff2", "ttf", "otf", "eot"}},
	{site.CategoryVideo, []string{"mp4", "webm", "ogg", "avi", "mov"}},
	{site.CategoryAudio, []string{"mp3", "wav", "ogg", "m4a"}},
	{site.CategoryDocument, []string{"pdf", "doc", "docx", "xls", "xlsx"}},
}

// Category returns the category for a resource. It never returns an invalid category.
func Category(rawURL, contentType string) site.Category {
	if c, ok := FromContentType(contentType); ok {
		return c
	}
	if c, ok := FromExtension(rawURL); ok {
		return c
	}
	return site.CategoryOther
}

// FromContentType applies the content-type rules, ignoring parameters and case.
func FromContentType(contentType string) (site.Category, bool) {
	ct := MediaType(contentType)
	if ct == "" {
		return "", false
	}
	for _, rule := range typeRules {
		if rule.match(ct) {
			return rule.category, true
		}
	}
	return "", false
}

// FromExtension looks up the lowercase extension of the URL path.
func FromExtension(rawURL string) (site.Category, bool) {
	ext := Extension(rawURL)
	if ext == "" {
		return "", false
	}
	for _, bucket := range extBuckets {
		for _, e := range bucket.exts {
			if e == ext {
				return bucket.category, true
			}
		}
	}
	return "", false
}

// Extension returns the lowercase extension of the URL path without the dot.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// MediaType strips parameters from a content-type header value and lowercases it.
func MediaType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
