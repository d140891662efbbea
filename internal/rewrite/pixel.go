package rewrite

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/atom"

	"github.com/JakeFAU/sitecopier/internal/site"
)

// PixelEdit swaps a tracking snippet for new markup or re-points it at a new id.
// NewHTML takes precedence over NewToken.
type PixelEdit struct {
	Selector string
	Vendor   site.PixelVendor
	NewHTML  string
	NewToken string
}

var (
	reFbInitCall    = regexp.MustCompile(`fbq\s*\(\s*['"]init['"]\s*,\s*['"]?\d{15,16}['"]?`)
	reFbNetTrack    = regexp.MustCompile(`facebook\.net/tr\?id=\d{15,16}`)
	reFbComTrack    = regexp.MustCompile(`facebook\.com/tr\?id=\d{15,16}`)
	reIDParam       = regexp.MustCompile(`id=\d{15,16}`)
	reBareFbID      = regexp.MustCompile(`^\d{15,16}$`)
	reAnyFbID       = regexp.MustCompile(`\d{15,16}`)
	reFbScriptHint  = regexp.MustCompile(`fbq\s*\(|connect\.facebook\.net`)
	reGtagConfigArg = regexp.MustCompile(`gtag\(['"]config['"]\s*,\s*['"][^'"]+['"]`)
	reGaCreateArg   = regexp.MustCompile(`ga\(['"]create['"]\s*,\s*['"]UA-[^'"]+['"]`)
	// Bare id shapes, with any surrounding quotes captured so they survive the swap.
	reGoogleIDShapes = []*regexp.Regexp{
		regexp.MustCompile(`(['"]?)\b(UA-\d+-\d+)\b(['"]?)`),
		regexp.MustCompile(`(['"]?)\b(G-[A-Z0-9]+)\b(['"]?)`),
		regexp.MustCompile(`(['"]?)\b(GTM-[A-Z0-9]+)\b(['"]?)`),
	}
)

// ReplacePixel applies e to the first element matched by e.Selector.
func (d *Document) ReplacePixel(e PixelEdit) (Outcome, error) {
	el, err := d.first(e.Selector)
	if err != nil {
		return NoMatch, err
	}
	if el == nil {
		return d.observe("pixel", NoMatch), nil
	}
	return d.edit("pixel", el, func(el *goquery.Selection) error {
		switch {
		case e.Vendor == site.VendorFacebook && e.NewHTML != "":
			facebookTemplate(el, e.NewHTML)
		case e.Vendor == site.VendorFacebook && e.NewToken != "":
			facebookToken(el, e.NewToken)
		case e.NewHTML != "":
			replaceInner(el, e.NewHTML)
		case e.Vendor == site.VendorGoogle && e.NewToken != "":
			googleToken(el, e.NewToken)
		}
		return nil
	})
}

// facebookTemplate rewrites a script/noscript pair from the template's script and noscript bodies.
// A missing partner element is created when the template supplies its body.
func facebookTemplate(el *goquery.Selection, tpl string) {
	scriptBody, hasScript := templateBody(reTemplateScript, tpl)
	noscriptBody, hasNoscript := templateBody(reTemplateNoscript, tpl)
	if !hasScript && !hasNoscript {
		replaceInner(el, tpl)
		return
	}
	switch {
	case is(el, "script"):
		if hasScript {
			setText(el, scriptBody)
		}
		if !hasNoscript {
			return
		}
		if ns := el.NextFiltered("noscript"); ns.Length() > 0 {
			setText(ns, noscriptBody)
		} else {
			el.AfterNodes(newElement(atom.Noscript, noscriptBody))
		}
	case is(el, "noscript"):
		if hasNoscript {
			setText(el, noscriptBody)
		}
		if !hasScript {
			return
		}
		if script := pairedScript(el); script.Length() > 0 {
			setText(script, scriptBody)
		} else {
			el.BeforeNodes(newElement(atom.Script, scriptBody))
		}
	default:
		replaceInner(el, tpl)
	}
}

// pairedScript finds the script belonging to a Facebook noscript: the preceding sibling script,
// else the last Facebook-looking script under the same parent.
func pairedScript(noscript *goquery.Selection) *goquery.Selection {
	if prev := noscript.PrevFiltered("script"); prev.Length() > 0 {
		return prev
	}
	return noscript.Parent().Find("script").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return reFbScriptHint.MatchString(s.Text())
	}).Last()
}

// facebookToken substitutes the pixel id in whichever shape el stores it.
func facebookToken(el *goquery.Selection, token string) {
	switch {
	case is(el, "script"):
		setText(el, facebookScriptID(el.Text(), token, true))
		if ns := el.NextFiltered("noscript"); ns.Length() > 0 {
			setText(ns, facebookNoscriptID(ns.Text(), token))
		}
	case is(el, "noscript"):
		setText(el, facebookNoscriptID(el.Text(), token))
		if script := pairedScript(el); script.Length() > 0 {
			setText(script, facebookScriptID(script.Text(), token, false))
		}
	case is(el, "meta"):
		content, _ := el.Attr("content")
		if reBareFbID.MatchString(content) {
			el.SetAttr("content", token)
		} else {
			el.SetAttr("content", reAnyFbID.ReplaceAllLiteralString(content, token))
		}
	case is(el, "img"):
		src, _ := el.Attr("src")
		el.SetAttr("src", reIDParam.ReplaceAllLiteralString(src, "id="+token))
	}
}

func facebookScriptID(code, token string, withLoader bool) string {
	code = reFbInitCall.ReplaceAllLiteralString(code, "fbq('init', '"+token+"'")
	if withLoader {
		code = reFbNetTrack.ReplaceAllLiteralString(code, "facebook.net/tr?id="+token)
	}
	return code
}

func facebookNoscriptID(body, token string) string {
	body = reFbComTrack.ReplaceAllLiteralString(body, "facebook.com/tr?id="+token)
	return reIDParam.ReplaceAllLiteralString(body, "id="+token)
}

// googleToken rewrites config/create call arguments and bare UA-, G-, and GTM- ids in a script or
// noscript body.
func googleToken(el *goquery.Selection, token string) {
	if !is(el, "script") && !is(el, "noscript") {
		return
	}
	code := el.Text()
	code = reGtagConfigArg.ReplaceAllLiteralString(code, "gtag('config', '"+token+"'")
	code = reGaCreateArg.ReplaceAllLiteralString(code, "ga('create', '"+token+"'")
	for _, re := range reGoogleIDShapes {
		code = re.ReplaceAllString(code, "${1}"+strings.ReplaceAll(token, "$", "$$")+"${3}")
	}
	setText(el, code)
}
