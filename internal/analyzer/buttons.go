package analyzer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sitecopier/internal/site"
)

// NoText labels a native button that has no visible text.
const NoText = "(no text)"

// Containers with this much text or more are layout wrappers, not buttons.
const maxContainerText = 100

var reOnclickNav = regexp.MustCompile(`window\.location(?:\.href)?\s*=\s*['"]([^'"]+)['"]`)

const (
	selButtons    = "button"
	selLinks      = `a[class*="button"], a[class*="btn"], a[role="button"]`
	selInputs     = `input[type="submit"], input[type="button"]`
	selContainers = `div[class*="button"], div[class*="btn"], span[class*="button"], span[class*="btn"]`
)

type buttonKey struct {
	text     string
	selector string
}

type buttonSet struct {
	url  string
	seen map[buttonKey]struct{}
	out  []site.ButtonContent
}

func (b *buttonSet) add(s *goquery.Selection, btn site.ButtonContent) {
	btn.Selector = selectorFor(s)
	key := buttonKey{text: btn.Text, selector: btn.Selector}
	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}
	btn.URL = b.url
	btn.Classes = classList(s)
	if html, err := goquery.OuterHtml(s); err == nil {
		btn.HTML = html
	}
	b.out = append(b.out, btn)
}

// extractButtons runs the four detection passes in order: native buttons, button-styled links,
// submit and button inputs, then button-styled containers.
func extractButtons(doc *goquery.Document, pageURL string) []site.ButtonContent {
	set := &buttonSet{url: pageURL, seen: make(map[buttonKey]struct{})}

	doc.Find(selButtons).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			text = NoText
		}
		href := firstNonEmpty(
			onclickTarget(s),
			attr(s.Closest("a"), "href"),
			attr(s, "data-href"),
		)
		set.add(s, site.ButtonContent{
			Text: text,
			Kind: site.KindButton,
			Type: firstNonEmpty(attr(s, "type"), "button"),
			Href: href,
		})
	})

	doc.Find(selLinks).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		set.add(s, site.ButtonContent{
			Text: text,
			Kind: site.KindLink,
			Type: "link",
			Href: attr(s, "href"),
		})
	})

	doc.Find(selInputs).Each(func(_ int, s *goquery.Selection) {
		text := firstNonEmpty(attr(s, "value"), attr(s, "placeholder"))
		if text == "" {
			return
		}
		set.add(s, site.ButtonContent{
			Text: text,
			Kind: site.KindInput,
			Type: firstNonEmpty(attr(s, "type"), "input"),
			Href: firstNonEmpty(
				onclickTarget(s),
				attr(s, "data-href"),
				attr(s.Closest("form"), "action"),
			),
		})
	})

	doc.Find(selContainers).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || utf8.RuneCountInString(text) >= maxContainerText {
			return
		}
		set.add(s, site.ButtonContent{
			Text: text,
			Kind: site.KindContainer,
			Type: string(site.KindContainer),
			Href: firstNonEmpty(
				attr(s.Find("a").First(), "href"),
				onclickTarget(s),
				attr(s, "data-href"),
			),
		})
	})

	return set.out
}

func onclickTarget(s *goquery.Selection) string {
	if m := reOnclickNav.FindStringSubmatch(attr(s, "onclick")); m != nil {
		return m[1]
	}
	return ""
}

// attr returns the attribute of the first element in s, or "" when absent or s is empty.
func attr(s *goquery.Selection, name string) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	v, _ := s.Attr(name)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
