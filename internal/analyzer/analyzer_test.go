package analyzer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecopier/internal/fetcher"
	"github.com/JakeFAU/sitecopier/internal/rewrite"
	"github.com/JakeFAU/sitecopier/internal/site"
)

const pageURL = "https://example.com/landing"

func analyze(t *testing.T, markup string) site.ContentAnalysis {
	t.Helper()
	analysis, err := AnalyzeDocument(pageURL, []byte(markup))
	require.NoError(t, err)
	return analysis
}

func TestButtonsPassOrderAndDedup(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
		<button id="buy" onclick="window.location.href='/checkout'">Buy now</button>
		<a href="/signup"><button class="cta big">Sign up</button></a>
		<button><i class="icon"></i></button>
		<a class="btn btn-primary" href="/pricing">See pricing</a>
		<a role="button" href="/empty"></a>
		<input type="submit" value="Send">
		<form action="/subscribe"><input type="button" placeholder="Subscribe" class="sub"></form>
		<div class="hero-button"><a href="/start">Start</a></div>
		<span class="btn" data-href="/go">Go</span>
		<div class="button-wrap">` + strings.Repeat("x", 120) + `</div>
		<button class="cta">Sign up</button>
	</body></html>`

	got := analyze(t, markup).Buttons
	want := []site.ButtonContent{
		{Text: "Buy now", Selector: "#buy", Kind: site.KindButton, Type: "button", Href: "/checkout"},
		{Text: "Sign up", Selector: ".cta", Kind: site.KindButton, Type: "button", Href: "/signup", Classes: []string{"cta", "big"}},
		{Text: NoText, Selector: "button", Kind: site.KindButton, Type: "button"},
		{Text: "See pricing", Selector: ".btn", Kind: site.KindLink, Type: "link", Href: "/pricing", Classes: []string{"btn", "btn-primary"}},
		{Text: "Send", Selector: "input", Kind: site.KindInput, Type: "submit"},
		{Text: "Subscribe", Selector: ".sub", Kind: site.KindInput, Type: "button", Href: "/subscribe", Classes: []string{"sub"}},
		{Text: "Start", Selector: ".hero-button", Kind: site.KindContainer, Type: "div/span", Href: "/start", Classes: []string{"hero-button"}},
		{Text: "Go", Selector: ".btn", Kind: site.KindContainer, Type: "div/span", Href: "/go", Classes: []string{"btn"}},
	}
	opts := []cmp.Option{cmpopts.IgnoreFields(site.ButtonContent{}, "HTML", "URL"), cmpopts.EquateEmpty()}
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Fatalf("buttons mismatch (-want +got):\n%s", diff)
	}
	for _, b := range got {
		assert.Equal(t, pageURL, b.URL)
		assert.True(t, strings.HasPrefix(b.HTML, "<"), b.HTML)
	}
}

func TestButtonOnclickVariants(t *testing.T) {
	t.Parallel()

	markup := `<button id="a" onclick="window.location = '/plain'">A</button>
		<button id="b" onclick="window.location.href=&quot;/quoted&quot;">B</button>
		<button id="c" data-href="/data">C</button>`
	buttons := analyze(t, markup).Buttons
	require.Len(t, buttons, 3)
	assert.Equal(t, "/plain", buttons[0].Href)
	assert.Equal(t, "/quoted", buttons[1].Href)
	assert.Equal(t, "/data", buttons[2].Href)
}

func TestButtonTextTrimmedNotCollapsed(t *testing.T) {
	t.Parallel()

	markup := "<button id=\"buy\">  Buy\n   now  </button><button id=\"blank\">   </button>" +
		"<a class=\"btn\" href=\"/empty\">  </a>"
	buttons := analyze(t, markup).Buttons
	require.Len(t, buttons, 2)
	assert.Equal(t, "Buy\n   now", buttons[0].Text)
	assert.Equal(t, NoText, buttons[1].Text)
	assert.Equal(t, "#blank", buttons[1].Selector)
}

const facebookPixel = `<script>
!function(f,b,e,v,n,t,s){if(f.fbq)return;n=f.fbq=function(){n.callMethod?
n.callMethod.apply(n,arguments):n.queue.push(arguments)};}(window, document,'script',
'https://connect.facebook.net/en_US/fbevents.js');
fbq('init', '123456789012345');
fbq('track', 'PageView');
</script>
<noscript><img height="1" width="1" style="display:none"
src="https://www.facebook.com/tr?id=123456789012345&ev=PageView&noscript=1"/></noscript>`

func TestFacebookScriptAndNoscriptMerge(t *testing.T) {
	t.Parallel()

	pixels := analyze(t, "<html><head>"+facebookPixel+"</head><body><p>hi</p></body></html>").Pixels
	require.Len(t, pixels, 1)
	px := pixels[0]
	assert.Equal(t, site.VendorFacebook, px.Vendor)
	assert.Equal(t, "123456789012345", px.ID)
	assert.Equal(t, "script:nth-of-type(1)", px.Selector)
	assert.Contains(t, px.Code, "fbq('init', '123456789012345')")
	assert.Contains(t, px.Code, "facebook.com/tr?id=123456789012345")
	assert.Contains(t, px.HTML, "<script>")
	assert.Contains(t, px.HTML, "<noscript>")
}

func TestFacebookIDReportedOnce(t *testing.T) {
	t.Parallel()

	markup := `<html><head>
		<meta property="fb:app_id" content="123456789012345">
		` + facebookPixel + `
		<script>fbq('init', '123456789012345');</script>
		</head><body>
		<noscript><img src="https://www.facebook.com/tr?id=123456789012345&ev=PageView"></noscript>
		<img src="https://www.facebook.com/tr?id=123456789012345&ev=Lead">
		</body></html>`
	pixels := analyze(t, markup).Pixels
	require.Len(t, pixels, 1)
	assert.Equal(t, "script:nth-of-type(1)", pixels[0].Selector)
}

func TestPixelSelectorRemovesReportedElement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		markup string
		id     string
		want   string
		gone   string
		keep   []string
	}{
		{
			name: "scripts split across head and body",
			markup: `<html><head><script>var a=1;</script></head><body>` + facebookPixel +
				`<script>keepMe();</script></body></html>`,
			id:   "123456789012345",
			want: "script:nth-of-type(2)",
			gone: "fbq('init'",
			keep: []string{"var a=1;", "keepMe();"},
		},
		{
			name: "tracking images in different parents",
			markup: `<html><body>
				<div><img src="/logo.png"><img src="https://www.facebook.com/tr?id=333333333333333&ev=PageView"></div>
				<p><img src="https://www.facebook.com/tr?id=444444444444444&ev=Lead"></p>
				</body></html>`,
			id:   "444444444444444",
			want: `img[src*="facebook.com/tr"]:nth-of-type(2)`,
			gone: "id=444444444444444",
			keep: []string{"id=333333333333333", "/logo.png"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var px *site.PixelTracking
			pixels := analyze(t, tt.markup).Pixels
			for i := range pixels {
				if pixels[i].ID == tt.id {
					px = &pixels[i]
				}
			}
			require.NotNil(t, px, "pixel %s not reported", tt.id)
			assert.Equal(t, tt.want, px.Selector)

			res, err := rewrite.RemoveHTML(tt.markup, px.Selector)
			require.NoError(t, err)
			require.Equal(t, rewrite.Applied, res.Outcome)
			assert.NotContains(t, res.HTML, tt.gone)
			for _, k := range tt.keep {
				assert.Contains(t, res.HTML, k)
			}
		})
	}
}

func TestStandaloneFacebookManifestations(t *testing.T) {
	t.Parallel()

	markup := `<html><head>
		<meta property="fb:app_id" content="111111111111111">
		<meta name="facebook-domain-verification" content="abcdef">
		</head><body>
		<noscript><img src="https://www.facebook.com/tr?id=222222222222222&ev=PageView"></noscript>
		<img src="https://www.facebook.com/tr?id=333333333333333&ev=PageView" height="1">
		</body></html>`
	got := analyze(t, markup).Pixels
	want := []site.PixelTracking{
		{Vendor: site.VendorFacebook, Selector: `meta[property="fb:app_id"]`, ID: "111111111111111", Code: "111111111111111"},
		{Vendor: site.VendorFacebook, Selector: "noscript:nth-of-type(1)", ID: "222222222222222"},
		{Vendor: site.VendorFacebook, Selector: `img[src*="facebook.com/tr"]:nth-of-type(1)`, ID: "333333333333333",
			Code: "https://www.facebook.com/tr?id=333333333333333&ev=PageView"},
	}
	opts := []cmp.Option{
		cmpopts.IgnoreFields(site.PixelTracking{}, "HTML", "URL"),
		cmp.FilterPath(func(p cmp.Path) bool {
			return p.Last().String() == ".Code"
		}, cmp.Comparer(func(a, b string) bool {
			// The noscript body is compared loosely below.
			return a == b || a == "" || b == ""
		})),
	}
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Fatalf("pixels mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, got[1].Code, "facebook.com/tr?id=222222222222222")
}

func TestGooglePixel(t *testing.T) {
	t.Parallel()

	markup := `<html><head>
		<script async src="https://www.googletagmanager.com/gtag/js?id=G-ABCDEF1234"></script>
		<script>
		window.dataLayer = window.dataLayer || [];
		function gtag(){dataLayer.push(arguments);}
		gtag('js', new Date());
		gtag('config', 'G-ABCDEF1234');
		</script>
		</head><body><noscript>see google-analytics.com/ga.js</noscript></body></html>`
	pixels := analyze(t, markup).Pixels
	require.Len(t, pixels, 2)
	assert.Equal(t, site.VendorGoogle, pixels[0].Vendor)
	assert.Equal(t, "G-ABCDEF1234", pixels[0].ID)
	assert.Equal(t, "script:nth-of-type(2)", pixels[0].Selector)
	assert.Equal(t, site.VendorGoogle, pixels[1].Vendor)
	assert.Equal(t, "noscript:nth-of-type(1)", pixels[1].Selector)
	assert.Empty(t, pixels[1].ID)
}

func TestVendorPrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		script string
		want   []site.PixelVendor
	}{
		{"facebook beats google", `fbq('init', '123456789012345'); gtag('config', 'G-ABCDEF1234');`, []site.PixelVendor{site.VendorFacebook}},
		{"bare fbq blocks google", `fbq('track'); gtag('config', 'G-ABCDEF1234');`, nil},
		{"comment plus id", `/* Meta Pixel Code */ init('123456789012345'); var id = "123456789012345"; fbq_like = 1; x = fbq_init;`, nil},
		{"tiktok", `ttq.load('C4ABC'); // analytics.tiktok.com/i18n/pixel/events.js`, []site.PixelVendor{site.VendorTikTok}},
		{"pinterest", `// Pinterest Tag
			pintrk('load', '2612345678901');`, []site.PixelVendor{site.VendorPinterest}},
		{"linkedin", `_linkedin_partner_id = "123"; // snap.licdn.com/li.lms-analytics/insight.min.js`, []site.PixelVendor{site.VendorLinkedIn}},
		{"gtag blocks tiktok", `gtag('event'); // analytics.tiktok.com`, []site.PixelVendor{site.VendorGoogle}},
		{"first vendor keeps the selector", `// analytics.tiktok.com and snap.licdn.com`, []site.PixelVendor{site.VendorTikTok}},
		{"plain script", `console.log("hello")`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			pixels := analyze(t, "<script>"+tc.script+"</script>").Pixels
			var got []site.PixelVendor
			for _, px := range pixels {
				got = append(got, px.Vendor)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSelectorFallbacks(t *testing.T) {
	t.Parallel()

	markup := `<button id="x" class="a b">1</button><button class="  first second">2</button><button>3</button>`
	buttons := analyze(t, markup).Buttons
	require.Len(t, buttons, 3)
	assert.Equal(t, "#x", buttons[0].Selector)
	assert.Equal(t, ".first", buttons[1].Selector)
	assert.Equal(t, "button", buttons[2].Selector)
}

func TestAttrSelectorQuotes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `meta[name="a\"b"]`, attrSelector("meta", "name", `a"b`))
}

func TestDetectNeverNil(t *testing.T) {
	t.Parallel()

	analysis := analyze(t, "")
	assert.NotNil(t, analysis.Buttons)
	assert.NotNil(t, analysis.Pixels)
	assert.Equal(t, pageURL, analysis.URL)
}

type stubFetcher struct {
	page fetcher.Page
	err  error
}

func (s stubFetcher) Fetch(context.Context, string) (fetcher.Page, error) {
	return s.page, s.err
}

func TestAnalyzeFetchesPage(t *testing.T) {
	t.Parallel()

	a, err := New(stubFetcher{page: fetcher.Page{Body: []byte(`<button>Hi</button>`)}}, nil)
	require.NoError(t, err)
	analysis, err := a.Analyze(context.Background(), pageURL)
	require.NoError(t, err)
	require.Len(t, analysis.Buttons, 1)
	assert.Equal(t, "Hi", analysis.Buttons[0].Text)
}

func TestAnalyzeFetchFailure(t *testing.T) {
	t.Parallel()

	cause := &fetcher.NetworkError{URL: pageURL, Op: http.MethodGet, StatusCode: http.StatusNotFound}
	a, err := New(stubFetcher{err: cause}, nil)
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), pageURL)
	var netErr *fetcher.NetworkError
	require.True(t, errors.As(err, &netErr))

	_, err = New(nil, nil)
	require.Error(t, err)
}
