// Package archive downloads an inventory into a ZIP, applying per-page button and pixel edits to
// HTML entries on the way.
//
// A failed entry is logged and left out; the archive is still produced from the rest. Entries are
// written in inventory order regardless of how many fetches run at once.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitecopier/internal/fetcher"
	"github.com/JakeFAU/sitecopier/internal/hash/sha256"
	"github.com/JakeFAU/sitecopier/internal/metrics"
	"github.com/JakeFAU/sitecopier/internal/rewrite"
	"github.com/JakeFAU/sitecopier/internal/site"
)

// ErrEmptyInventory is returned when there is nothing to archive.
var ErrEmptyInventory = errors.New("archive: inventory is empty")

// Config wires the assembler's collaborators.
type Config struct {
	Fetcher fetcher.StaticFetcher
	// NewSink creates the sink for one Build call. Defaults to NewZipSink.
	NewSink func() Sink
	// Concurrency bounds parallel fetches. Values below 1 mean 1.
	Concurrency int
	Logger      *zap.Logger
}

// Assembler turns inventories into archives.
type Assembler struct {
	fetcher     fetcher.StaticFetcher
	newSink     func() Sink
	concurrency int
	logger      *zap.Logger
}

// New validates cfg and builds an Assembler.
func New(cfg Config) (*Assembler, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("archive: fetcher is required")
	}
	a := &Assembler{
		fetcher:     cfg.Fetcher,
		newSink:     cfg.NewSink,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
	if a.newSink == nil {
		a.newSink = func() Sink { return NewZipSink() }
	}
	if a.concurrency < 1 {
		a.concurrency = 1
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a, nil
}

// Skipped describes an entry left out of the archive.
type Skipped struct {
	URL    string `json:"url"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report summarizes one Build.
type Report struct {
	Entries   int       `json:"entries"`
	Rewritten int       `json:"rewritten"`
	Skipped   []Skipped `json:"skipped,omitempty"`
	// Misses counts edits whose selector matched nothing.
	Misses int `json:"misses"`
	// SHA256 is the hex digest of the finished archive.
	SHA256 string `json:"sha256"`
}

type entry struct {
	file    site.ScannedFile
	path    string
	data    []byte
	changed bool
	misses  int
	err     error
}

// Build fetches every inventory entry and writes it to a fresh sink. HTML entries receive their
// URL's button edits in order, then its pixel operations in order, and are serialized once.
func (a *Assembler) Build(ctx context.Context, inv *site.Inventory, buttons site.ButtonReplacements, pixels site.PixelReplacements) ([]byte, Report, error) {
	ctx, span := otel.Tracer("sitecopier/archive").Start(ctx, "archive.Build")
	defer span.End()

	files := inv.Files()
	if len(files) == 0 {
		return nil, Report{}, ErrEmptyInventory
	}
	span.SetAttributes(attribute.Int("archive.files", len(files)))

	entries := make([]entry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries[i] = a.prepare(gctx, f, buttons[f.URL], pixels[f.URL])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Report{}, fmt.Errorf("archive: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, Report{}, fmt.Errorf("archive: %w", err)
	}

	sink := a.newSink()
	var report Report
	for _, e := range entries {
		report.Misses += e.misses
		if e.err != nil {
			a.logger.Warn("skipping archive entry",
				zap.String("url", e.file.URL),
				zap.String("path", e.path),
				zap.Error(e.err))
			report.Skipped = append(report.Skipped, Skipped{URL: e.file.URL, Path: e.path, Reason: e.err.Error()})
			metrics.ObserveArchiveEntry(metrics.OutcomeSkipped)
			continue
		}
		if err := sink.Add(e.path, e.data); err != nil {
			return nil, report, fmt.Errorf("archive: add %q: %w", e.path, err)
		}
		report.Entries++
		if e.changed {
			report.Rewritten++
			metrics.ObserveArchiveEntry(metrics.OutcomeRewritten)
		} else {
			metrics.ObserveArchiveEntry(metrics.OutcomeStored)
		}
	}
	blob, err := sink.Close()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, report, fmt.Errorf("archive: %w", err)
	}
	report.SHA256 = sha256.Sum(blob)
	span.SetAttributes(
		attribute.Int("archive.entries", report.Entries),
		attribute.Int("archive.skipped", len(report.Skipped)),
	)
	a.logger.Info("archive built",
		zap.Int("entries", report.Entries),
		zap.Int("rewritten", report.Rewritten),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("bytes", len(blob)),
		zap.String("sha256", report.SHA256))
	return blob, report, nil
}

func (a *Assembler) prepare(ctx context.Context, f site.ScannedFile, buttons []site.ButtonReplacement, pixels []site.PixelReplacement) entry {
	e := entry{file: f, path: EntryPath(f)}
	page, err := a.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		e.err = err
		return e
	}
	if !f.IsHTML() || len(buttons)+len(pixels) == 0 {
		e.data = page.Body
		return e
	}
	out, misses, err := applyEdits(string(page.Body), buttons, pixels)
	if err != nil {
		e.err = err
		return e
	}
	e.misses = misses
	e.changed = out != string(page.Body)
	e.data = []byte(out)
	return e
}

// applyEdits runs every edit against one parsed document and renders it once. Any edit error
// discards the whole document.
func applyEdits(src string, buttons []site.ButtonReplacement, pixels []site.PixelReplacement) (string, int, error) {
	doc, err := rewrite.Parse(src)
	if err != nil {
		return "", 0, err
	}
	misses := 0
	count := func(o rewrite.Outcome, err error) error {
		if o == rewrite.NoMatch && err == nil {
			misses++
		}
		return err
	}
	for _, b := range buttons {
		if err := count(doc.ReplaceButton(rewrite.ButtonEdit{Selector: b.Selector, NewText: b.NewText, NewHref: b.NewHref})); err != nil {
			return "", 0, err
		}
	}
	for _, p := range pixels {
		var err error
		if p.Action == site.ActionRemove {
			err = count(doc.Remove(p.Selector))
		} else {
			err = count(doc.ReplacePixel(rewrite.PixelEdit{Selector: p.Selector, Vendor: p.Vendor, NewHTML: p.NewHTML, NewToken: p.NewToken}))
		}
		if err != nil {
			return "", 0, err
		}
	}
	out, err := doc.Render()
	if err != nil {
		return "", 0, err
	}
	return out, misses, nil
}

// EntryPath maps a file to its location inside the archive: the leading separator is stripped,
// dot segments are resolved, and directory paths get index.html.
func EntryPath(f site.ScannedFile) string {
	p := f.Path
	if p == "" {
		if u, err := url.Parse(f.URL); err == nil {
			p = u.Path
		}
	}
	dir := p == "" || strings.HasSuffix(p, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if dir {
		p = path.Join(p, "index.html")
	}
	return p
}

// ArchiveName returns the download name for inv: "<host>-files.zip", or
// "<host>-wordpress-ready.zip" when edits were applied.
func ArchiveName(inv *site.Inventory, withReplacements bool) string {
	host := "site"
	if files := inv.Files(); len(files) > 0 {
		if u, err := url.Parse(files[0].URL); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
	}
	if withReplacements {
		return host + "-wordpress-ready.zip"
	}
	return host + "-files.zip"
}
