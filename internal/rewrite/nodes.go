package rewrite

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	reTemplateScript   = regexp.MustCompile(`(?i)<script[^>]*>([\s\S]*?)</script>`)
	reTemplateNoscript = regexp.MustCompile(`(?i)<noscript[^>]*>([\s\S]*?)</noscript>`)
)

// setText replaces the children of every element in s with one text node. Script and noscript
// bodies render literally; other elements render it escaped.
func setText(s *goquery.Selection, text string) {
	s.Empty()
	for _, n := range s.Nodes {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func newElement(a atom.Atom, text string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

func is(s *goquery.Selection, tag string) bool {
	return goquery.NodeName(s) == tag
}

// isVoid reports whether the element cannot hold children, so inner replacement must replace the
// element instead.
func isVoid(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "area", "base", "br", "col", "embed", "hr", "img", "input", "keygen", "link", "meta", "param", "source", "track", "wbr":
		return true
	}
	return false
}

// templateBody returns the captured body of the first match of re in tpl that has content,
// trimmed, and whether tpl contained the tag at all.
func templateBody(re *regexp.Regexp, tpl string) (string, bool) {
	matches := re.FindAllStringSubmatch(tpl, -1)
	if matches == nil {
		return "", false
	}
	for _, m := range matches {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body, true
		}
	}
	return "", true
}

// replaceInner sets the inner content of el from a markup template. Script and noscript targets
// take the body of the matching template tag; void elements are swapped for the template.
func replaceInner(el *goquery.Selection, tpl string) {
	switch {
	case is(el, "script"):
		if body, ok := templateBody(reTemplateScript, tpl); ok {
			tpl = body
		}
		setText(el, tpl)
	case is(el, "noscript"):
		if body, ok := templateBody(reTemplateNoscript, tpl); ok {
			tpl = body
		}
		setText(el, tpl)
	case isVoid(el):
		el.ReplaceWithHtml(tpl)
	default:
		el.SetHtml(tpl)
	}
}
