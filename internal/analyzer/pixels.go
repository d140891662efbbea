package analyzer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sitecopier/internal/site"
)

var (
	reFbq       = regexp.MustCompile(`fbq\s*\(`)
	reFbLoader  = regexp.MustCompile(`connect\.facebook\.net.*fbevents\.js`)
	reFbComment = regexp.MustCompile(`(?i)Facebook\s*Pixel|Meta\s*Pixel`)

	reGtag       = regexp.MustCompile(`gtag\s*\(`)
	reGa         = regexp.MustCompile(`ga\s*\(`)
	reGAScript   = regexp.MustCompile(`google-analytics\.com/ga\.js`)
	reGTMScript  = regexp.MustCompile(`googletagmanager\.com/gtm\.js`)
	reGtagConfig = regexp.MustCompile(`gtag\(['"]config['"]`)

	reTikTok    = regexp.MustCompile(`(?i)tiktok.*pixel|analytics\.tiktok\.com`)
	rePinterest = regexp.MustCompile(`(?i)pinterest.*tag|pinimg\.com/js/pinit`)
	reLinkedIn  = regexp.MustCompile(`(?i)linkedin.*insight|snap\.licdn\.com`)

	reBarePixelID = regexp.MustCompile(`^\d{15,16}$`)
	reDigits      = regexp.MustCompile(`\d{15,16}`)
	reImgPixelID  = regexp.MustCompile(`id=(\d{15,16})`)
)

const selFacebookImg = `img[src*="facebook.com/tr"]`

// pixelSet collects pixels, rejecting a repeated selector and, for Facebook, a repeated id.
type pixelSet struct {
	url       string
	selectors map[string]struct{}
	fbIDs     map[string]struct{}
	out       []site.PixelTracking
}

func newPixelSet(pageURL string) *pixelSet {
	return &pixelSet{
		url:       pageURL,
		selectors: make(map[string]struct{}),
		fbIDs:     make(map[string]struct{}),
	}
}

func (p *pixelSet) hasSelector(sel string) bool {
	_, ok := p.selectors[sel]
	return ok
}

func (p *pixelSet) hasFacebookID(id string) bool {
	_, ok := p.fbIDs[id]
	return id != "" && ok
}

func (p *pixelSet) add(px site.PixelTracking) bool {
	if p.hasSelector(px.Selector) {
		return false
	}
	if px.Vendor == site.VendorFacebook && p.hasFacebookID(px.ID) {
		return false
	}
	px.URL = p.url
	p.selectors[px.Selector] = struct{}{}
	if px.Vendor == site.VendorFacebook && px.ID != "" {
		p.fbIDs[px.ID] = struct{}{}
	}
	p.out = append(p.out, px)
	return true
}

// scriptSignals are the vendor fingerprints found in one script body.
type scriptSignals struct {
	fbq, fbLoader, fbComment, fbInit bool
	gtag, google                     bool
	tiktok, pinterest, linkedin      bool
}

func sniffScript(code string) scriptSignals {
	return scriptSignals{
		fbq:       reFbq.MatchString(code),
		fbLoader:  reFbLoader.MatchString(code),
		fbComment: reFbComment.MatchString(code),
		fbInit:    reFbInit.MatchString(code),
		gtag:      reGtag.MatchString(code),
		google: reGtag.MatchString(code) || reGa.MatchString(code) || reGAScript.MatchString(code) ||
			reGTMScript.MatchString(code) || reGtagConfig.MatchString(code),
		tiktok:    reTikTok.MatchString(code),
		pinterest: rePinterest.MatchString(code),
		linkedin:  reLinkedIn.MatchString(code),
	}
}

func (s scriptSignals) facebook() bool {
	return (s.fbq && s.fbLoader) || (s.fbq && s.fbInit) || (s.fbComment && s.fbInit)
}

// Google yields to any Facebook marker; the smaller vendors yield to Facebook and gtag.
func (s scriptSignals) googleOnly() bool { return s.google && !s.fbq && !s.fbLoader }
func (s scriptSignals) minor() bool       { return !s.fbq && !s.gtag }

// extractPixels scans scripts, meta tags, noscript fallbacks, and tracking images, in that order.
func extractPixels(doc *goquery.Document, pageURL string) []site.PixelTracking {
	set := newPixelSet(pageURL)
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		scriptPixels(set, s, nthOfType("script", i))
	})
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		metaPixel(set, s)
	})
	doc.Find("noscript").Each(func(i int, s *goquery.Selection) {
		noscriptPixel(set, s, nthOfType("noscript", i))
	})
	doc.Find(selFacebookImg).Each(func(i int, s *goquery.Selection) {
		imagePixel(set, s, nthOfType(selFacebookImg, i))
	})
	return set.out
}

func scriptPixels(set *pixelSet, s *goquery.Selection, selector string) {
	// Script and noscript bodies parse as a single raw text node.
	body := s.Text()
	sig := sniffScript(body)
	outer := outerHTML(s)

	if sig.facebook() {
		if id := FacebookPixelID(body); id != "" && !set.hasFacebookID(id) {
			px := site.PixelTracking{Vendor: site.VendorFacebook, Code: body, Selector: selector, HTML: outer, ID: id}
			if ns := s.NextFiltered("noscript"); ns.Length() > 0 {
				if nsBody := ns.Text(); strings.Contains(nsBody, "facebook.com/tr") {
					px.Code = body + "\n" + nsBody
					px.HTML = outer + "\n" + outerHTML(ns)
				}
			}
			set.add(px)
		}
	}
	if sig.googleOnly() {
		set.add(site.PixelTracking{Vendor: site.VendorGoogle, Code: body, Selector: selector, HTML: outer, ID: GoogleTagID(body)})
	}
	if !sig.minor() {
		return
	}
	for _, v := range []struct {
		hit    bool
		vendor site.PixelVendor
	}{
		{sig.tiktok, site.VendorTikTok},
		{sig.pinterest, site.VendorPinterest},
		{sig.linkedin, site.VendorLinkedIn},
	} {
		if v.hit {
			set.add(site.PixelTracking{Vendor: v.vendor, Code: body, Selector: selector, HTML: outer})
		}
	}
}

func metaPixel(set *pixelSet, s *goquery.Selection) {
	property, name, content := attr(s, "property"), attr(s, "name"), attr(s, "content")
	isFacebook := strings.Contains(property, "fb:app_id") ||
		strings.Contains(property, "fb:admins") ||
		(strings.Contains(name, "facebook") && reBarePixelID.MatchString(content)) ||
		(strings.Contains(property, "og:") && strings.Contains(content, "facebook"))
	hasID := reBarePixelID.MatchString(content) || reFbTrackID.MatchString(content)
	if !isFacebook || !hasID {
		return
	}
	selector := attrSelector("meta", "name", name)
	if property != "" {
		selector = attrSelector("meta", "property", property)
	}
	set.add(site.PixelTracking{
		Vendor:   site.VendorFacebook,
		Code:     content,
		Selector: selector,
		HTML:     outerHTML(s),
		ID:       reDigits.FindString(content),
	})
}

func noscriptPixel(set *pixelSet, s *goquery.Selection, selector string) {
	body := s.Text()
	if m := reFbTrackID.FindStringSubmatch(body); m != nil {
		set.add(site.PixelTracking{Vendor: site.VendorFacebook, Code: body, Selector: selector, HTML: outerHTML(s), ID: m[1]})
		return
	}
	if reGAScript.MatchString(body) {
		set.add(site.PixelTracking{Vendor: site.VendorGoogle, Code: body, Selector: selector, HTML: outerHTML(s)})
	}
}

func imagePixel(set *pixelSet, s *goquery.Selection, selector string) {
	src := attr(s, "src")
	m := reImgPixelID.FindStringSubmatch(src)
	if m == nil {
		return
	}
	set.add(site.PixelTracking{Vendor: site.VendorFacebook, Code: src, Selector: selector, HTML: outerHTML(s), ID: m[1]})
}

func outerHTML(s *goquery.Selection) string {
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return html
}
