// Package fetcher defines the page-fetch contracts consumed by the crawler, analyzer, and archive assembler.
package fetcher

import (
	"context"
	"errors"
	"fmt"
)

// Page is the result of a full-body retrieval.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Rendered    bool
}

// Meta is the result of a metadata-only probe.
type Meta struct {
	StatusCode  int
	ContentType string
	Size        *int64
}

// StaticFetcher retrieves a resource without executing scripts.
type StaticFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Prober retrieves resource metadata without the body.
type Prober interface {
	Probe(ctx context.Context, url string) (Meta, error)
}

// Renderer retrieves a page through a script-executing browser.
type Renderer interface {
	Render(ctx context.Context, url string) (Page, error)
}

// ErrNotConfigured is returned by renderers that have no browser behind them.
var ErrNotConfigured = errors.New("renderer not configured")

// NetworkError reports a timeout, transport, or hard HTTP failure.
type NetworkError struct {
	URL        string
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RenderError reports a headless-render failure.
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
