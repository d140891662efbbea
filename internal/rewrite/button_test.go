package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replaceButton(t *testing.T, src string, e ButtonEdit) Result {
	t.Helper()
	res, err := ReplaceButtonHTML(src, e)
	require.NoError(t, err)
	return res
}

func TestReplaceButtonShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		edit ButtonEdit
		want string
	}{
		{
			name: "link text and href",
			src:  `<a id="cta" href="/old">Old</a>`,
			edit: ButtonEdit{Selector: "#cta", NewText: "New", NewHref: "/new"},
			want: `<a id="cta" href="/new">New</a>`,
		},
		{
			name: "link text only keeps href",
			src:  `<a id="cta" href="/old">Old</a>`,
			edit: ButtonEdit{Selector: "#cta", NewText: "New"},
			want: `<a id="cta" href="/old">New</a>`,
		},
		{
			name: "text only replaces children",
			src:  `<span id="s"><b>Old</b> text</span>`,
			edit: ButtonEdit{Selector: "#s", NewText: "New"},
			want: `<span id="s">New</span>`,
		},
		{
			name: "button gets navigation",
			src:  `<button id="b">Old</button>`,
			edit: ButtonEdit{Selector: "#b", NewText: "Go", NewHref: "/next"},
			want: `">Go</button>`,
		},
		{
			name: "input sets value",
			src:  `<input id="i" type="submit" value="Old">`,
			edit: ButtonEdit{Selector: "#i", NewText: "Send"},
			want: `<input id="i" type="submit" value="Send"/>`,
		},
		{
			name: "nested link is retargeted",
			src:  `<div class="hero"><a href="/old"><i></i>Old</a></div>`,
			edit: ButtonEdit{Selector: ".hero", NewText: "Start", NewHref: "/start"},
			want: `<div class="hero"><a href="/start">Start</a></div>`,
		},
		{
			name: "container is wrapped in a link",
			src:  `<div class="hero">Old</div>`,
			edit: ButtonEdit{Selector: ".hero", NewText: "Start", NewHref: " /start "},
			want: `<div class="hero"><a href="/start">Start</a></div>`,
		},
		{
			name: "text is escaped",
			src:  `<button id="b">Old</button>`,
			edit: ButtonEdit{Selector: "#b", NewText: "<b>Bold</b>"},
			want: `<button id="b">&lt;b&gt;Bold&lt;/b&gt;</button>`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := replaceButton(t, tc.src, tc.edit)
			assert.Equal(t, Applied, res.Outcome)
			assert.Contains(t, res.HTML, tc.want)
		})
	}
}

func TestReplaceButtonNavigationHandler(t *testing.T) {
	t.Parallel()

	d, err := Parse(`<button id="b">Old</button><input id="i" value="Old">`)
	require.NoError(t, err)
	for _, sel := range []string{"#b", "#i"} {
		o, err := d.ReplaceButton(ButtonEdit{Selector: sel, NewText: "Go", NewHref: "/next"})
		require.NoError(t, err)
		assert.Equal(t, Applied, o)
		onclick, ok := d.doc.Find(sel).Attr("onclick")
		require.True(t, ok, sel)
		assert.Equal(t, "window.location.href='/next'", onclick)
	}
}

func TestReplaceButtonIdempotent(t *testing.T) {
	t.Parallel()

	srcs := []string{
		`<div class="hero">Old</div>`,
		`<button id="b">Old</button>`,
		`<a id="b" href="/x">Old</a>`,
		`<input id="b" value="Old">`,
	}
	for _, src := range srcs {
		edit := ButtonEdit{Selector: ".hero, #b", NewText: "Start", NewHref: "/start"}
		first := replaceButton(t, src, edit)
		require.Equal(t, Applied, first.Outcome, src)
		second := replaceButton(t, first.HTML, edit)
		assert.Equal(t, Unchanged, second.Outcome, src)
		assert.Equal(t, first.HTML, second.HTML, src)
	}
}

func TestReplaceButtonFirstMatchOnly(t *testing.T) {
	t.Parallel()

	res := replaceButton(t, `<button class="c">A</button><button class="c">B</button>`,
		ButtonEdit{Selector: ".c", NewText: "Z"})
	assert.Contains(t, res.HTML, `<button class="c">Z</button><button class="c">B</button>`)
}

func TestNavigateToEscapesQuotes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `window.location.href='/it\'s'`, navigateTo("/it's"))
}
