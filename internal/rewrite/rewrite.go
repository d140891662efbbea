// Package rewrite applies selector-scoped edits to an HTML document.
//
// Every operation addresses only the first element its selector matches and reports an Outcome
// distinguishing a selector miss (NoMatch) from an edit that left the markup as it was (Unchanged).
// A Document that no operation changed renders back to its source byte for byte.
package rewrite

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/JakeFAU/sitecopier/internal/metrics"
)

// Outcome reports what an edit did.
type Outcome int

const (
	// NoMatch means the selector addressed no element.
	NoMatch Outcome = iota
	// Unchanged means an element matched but the edit produced identical markup.
	Unchanged
	// Applied means the document changed.
	Applied
)

func (o Outcome) String() string {
	switch o {
	case NoMatch:
		return "no_match"
	case Unchanged:
		return "unchanged"
	case Applied:
		return "applied"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ErrInvalidSelector is returned when a selector does not compile.
var ErrInvalidSelector = errors.New("invalid selector")

// Document is a parsed page that accumulates edits.
type Document struct {
	src   string
	doc   *goquery.Document
	dirty bool
}

// Parse builds a Document from markup.
func Parse(src string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{src: src, doc: doc}, nil
}

// Changed reports whether any edit has been applied.
func (d *Document) Changed() bool {
	return d.dirty
}

// Render serializes the document. Without applied edits the original source is returned.
func (d *Document) Render() (string, error) {
	if !d.dirty {
		return d.src, nil
	}
	out, err := d.doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}

// Remove deletes the first element matched by selector.
func (d *Document) Remove(selector string) (Outcome, error) {
	el, err := d.first(selector)
	if err != nil {
		return NoMatch, err
	}
	if el == nil {
		return d.observe("remove", NoMatch), nil
	}
	el.Remove()
	d.dirty = true
	return d.observe("remove", Applied), nil
}

// first returns the first element matching selector, or nil. A lone "<base>:nth-of-type(n)" selector
// resolves positionally; see occurrence.
func (d *Document) first(selector string) (*goquery.Selection, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}
	match := d.doc.FindMatcher(sel).First()
	if base, n, ok := occurrence(selector); ok {
		match = d.doc.FindMatcher(base).Eq(n - 1)
	}
	if match.Length() == 0 {
		return nil, nil
	}
	return match, nil
}

// occurrencePattern matches a single compound selector followed by :nth-of-type(n).
var occurrencePattern = regexp.MustCompile(`^([^\s>+~,]+):nth-of-type\((\d+)\)$`)

// occurrence recognizes "<base>:nth-of-type(n)" as the n-th match of base in document order,
// counted across the whole document rather than among siblings.
func occurrence(selector string) (cascadia.Selector, int, bool) {
	m := occurrencePattern.FindStringSubmatch(strings.TrimSpace(selector))
	if m == nil {
		return nil, 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n < 1 {
		return nil, 0, false
	}
	base, err := cascadia.Compile(m[1])
	if err != nil {
		return nil, 0, false
	}
	return base, n, true
}

// edit runs mutate against el and classifies the result by comparing the enclosing markup, which
// covers siblings mutate may create or update.
func (d *Document) edit(kind string, el *goquery.Selection, mutate func(*goquery.Selection) error) (Outcome, error) {
	scope := el.Nodes[0].Parent
	if scope == nil {
		scope = el.Nodes[0]
	}
	before, err := renderNode(scope)
	if err != nil {
		return NoMatch, err
	}
	if err := mutate(el); err != nil {
		return NoMatch, err
	}
	after, err := renderNode(scope)
	if err != nil {
		return NoMatch, err
	}
	if before == after {
		return d.observe(kind, Unchanged), nil
	}
	d.dirty = true
	return d.observe(kind, Applied), nil
}

func (d *Document) observe(kind string, o Outcome) Outcome {
	metrics.ObserveRewrite(kind, o.String())
	return o
}

func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("render node: %w", err)
	}
	return buf.String(), nil
}

// Result is the outcome of a one-shot string edit. HTML is the input unchanged unless Outcome is
// Applied.
type Result struct {
	HTML    string  `json:"html"`
	Outcome Outcome `json:"-"`
}

// ReplaceButtonHTML parses src, applies one button edit, and renders the result.
func ReplaceButtonHTML(src string, e ButtonEdit) (Result, error) {
	return oneShot(src, func(d *Document) (Outcome, error) { return d.ReplaceButton(e) })
}

// ReplacePixelHTML parses src, applies one pixel replacement, and renders the result.
func ReplacePixelHTML(src string, e PixelEdit) (Result, error) {
	return oneShot(src, func(d *Document) (Outcome, error) { return d.ReplacePixel(e) })
}

// RemoveHTML parses src, removes the first element matched by selector, and renders the result.
func RemoveHTML(src, selector string) (Result, error) {
	return oneShot(src, func(d *Document) (Outcome, error) { return d.Remove(selector) })
}

func oneShot(src string, op func(*Document) (Outcome, error)) (Result, error) {
	d, err := Parse(src)
	if err != nil {
		return Result{}, err
	}
	outcome, err := op(d)
	if err != nil {
		return Result{}, err
	}
	if outcome != Applied {
		return Result{HTML: src, Outcome: outcome}, nil
	}
	out, err := d.Render()
	if err != nil {
		return Result{}, err
	}
	return Result{HTML: out, Outcome: outcome}, nil
}
