package rewrite

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ButtonEdit replaces the text, and optionally the target, of a call-to-action element.
type ButtonEdit struct {
	Selector string
	NewText  string
	NewHref  string
}

// ReplaceButton applies e to the first element matched by e.Selector.
//
// Inputs get their value attribute set. With a target, a link element is retargeted directly, a
// nested link is retargeted and relabeled, a native button or input gets an onclick navigation
// handler, and any other element is emptied and given a new link.
func (d *Document) ReplaceButton(e ButtonEdit) (Outcome, error) {
	el, err := d.first(e.Selector)
	if err != nil {
		return NoMatch, err
	}
	if el == nil {
		return d.observe("button", NoMatch), nil
	}
	href := strings.TrimSpace(e.NewHref)
	return d.edit("button", el, func(el *goquery.Selection) error {
		applyButton(el, e.NewText, href)
		return nil
	})
}

func applyButton(el *goquery.Selection, text, href string) {
	switch {
	case is(el, "input"):
		el.SetAttr("value", text)
		if href != "" {
			el.SetAttr("onclick", navigateTo(href))
		}
	case is(el, "a"):
		setText(el, text)
		if href != "" {
			el.SetAttr("href", href)
		}
	case href == "":
		setText(el, text)
	default:
		if link := el.Find("a").First(); link.Length() > 0 {
			setText(link, text)
			link.SetAttr("href", href)
			return
		}
		if is(el, "button") {
			setText(el, text)
			el.SetAttr("onclick", navigateTo(href))
			return
		}
		el.Empty()
		el.AppendNodes(newElement(atom.A, text, html.Attribute{Key: "href", Val: href}))
	}
}

func navigateTo(href string) string {
	return "window.location.href='" + strings.ReplaceAll(href, "'", `\'`) + "'"
}
