package headless

import (
	"context"

	"github.com/JakeFAU/sitecopier/internal/fetcher"
)

// Noop implements fetcher.Renderer but always fails, for builds and configs without a browser.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns a RenderError wrapping fetcher.ErrNotConfigured.
func (Noop) Render(_ context.Context, url string) (fetcher.Page, error) {
	return fetcher.Page{}, &fetcher.RenderError{URL: url, Err: fetcher.ErrNotConfigured}
}
