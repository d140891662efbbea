package analyzer

import (
	"regexp"
	"strings"
)

// idMatcher extracts a vendor id from script or markup text, or returns "".
type idMatcher func(code string) string

// submatch builds an idMatcher returning the first capture group of re.
func submatch(re *regexp.Regexp) idMatcher {
	return func(code string) string {
		if m := re.FindStringSubmatch(code); m != nil {
			return m[1]
		}
		return ""
	}
}

var (
	reFbInit      = regexp.MustCompile(`fbq\s*\(\s*['"]init['"]\s*,\s*['"]?(\d{15,16})['"]?`)
	reFbNetID     = regexp.MustCompile(`facebook\.net/tr\?id=(\d{15,16})`)
	reFbTrackID   = regexp.MustCompile(`facebook\.com/tr\?id=(\d{15,16})`)
	reFbPixelKey  = regexp.MustCompile(`pixelId['":\s]*['"]?(\d{15,16})['"]?`)
	reQuotedDigit = regexp.MustCompile(`['"](\d{15,16})['"]`)

	reUniversalID  = regexp.MustCompile(`['"]?(UA-\d{4,10}-\d{1,4})['"]?`)
	reGA4ID        = regexp.MustCompile(`['"]?(G-[A-Z0-9]{10,})['"]?`)
	reGtagConfigID = regexp.MustCompile(`gtag\(['"]config['"]\s*,\s*['"]([^'"]+)['"]`)
	reGaCreateID   = regexp.MustCompile(`ga\(['"]create['"]\s*,\s*['"](UA-[^'"]+)['"]`)
	reGTMID        = regexp.MustCompile(`['"]?(GTM-[A-Z0-9]{4,})['"]?`)
)

// quotedPixelID accepts a bare quoted 15-16 digit literal. Only the first literal is considered,
// and one with a leading zero is rejected.
func quotedPixelID(code string) string {
	id := submatch(reQuotedDigit)(code)
	if strings.HasPrefix(id, "0") {
		return ""
	}
	return id
}

// facebookIDMatchers are tried in priority order.
var facebookIDMatchers = []idMatcher{
	submatch(reFbInit),
	submatch(reFbNetID),
	submatch(reFbTrackID),
	submatch(reFbPixelKey),
	quotedPixelID,
}

// googleIDMatchers are tried in priority order.
var googleIDMatchers = []idMatcher{
	submatch(reUniversalID),
	submatch(reGA4ID),
	submatch(reGtagConfigID),
	submatch(reGaCreateID),
	submatch(reGTMID),
}

// firstID returns the result of the first matcher that finds an id.
func firstID(code string, matchers []idMatcher) string {
	for _, match := range matchers {
		if id := match(code); id != "" {
			return id
		}
	}
	return ""
}

// FacebookPixelID extracts a Facebook pixel id from code.
func FacebookPixelID(code string) string {
	return firstID(code, facebookIDMatchers)
}

// GoogleTagID extracts a Google Analytics, GA4, or Tag Manager id from code.
func GoogleTagID(code string) string {
	return firstID(code, googleIDMatchers)
}
