package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecopier/internal/site"
)

func TestReadInventoryAcceptsArrayAndSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "json array", file: "inv.json", body: `[{"url":"https://a.test/","path":"/","category":"html"}]`},
		{name: "json summary", file: "scan.json", body: `{"domain":"a.test","files":[{"url":"https://a.test/","path":"/","category":"html"}]}`},
		{name: "yaml array", file: "inv.yaml", body: "- url: https://a.test/\n  path: /\n  category: html\n"},
		{name: "yaml summary", file: "scan.yml", body: "domain: a.test\nfiles:\n  - url: https://a.test/\n    path: /\n    category: html\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			inv, err := readInventory(path)
			require.NoError(t, err)
			got, ok := inv.Get("https://a.test/")
			require.True(t, ok)
			assert.Equal(t, site.CategoryHTML, got.Category)
		})
	}
}

func TestReadInventoryErrors(t *testing.T) {
	t.Parallel()

	_, err := readInventory(filepath.Join(t.TempDir(), "absent.json"))
	require.ErrorContains(t, err, "read inventory")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	_, err = readInventory(path)
	require.ErrorContains(t, err, "decode inventory")
}

func TestReadReplacementsYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "r.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
buttons:
  - url: https://a.test/
    selector: "#cta"
    newText: Go
pixels:
  - url: https://a.test/
    selector: script
    newPixelToken: "999999999999999"
`), 0o600))

	r, err := readReplacements(path)
	require.NoError(t, err)
	require.Len(t, r.Buttons, 1)
	assert.Equal(t, "Go", r.Buttons[0].NewText)
	require.Len(t, r.Pixels, 1)
	assert.Equal(t, site.VendorFacebook, r.Pixels[0].Vendor)
	assert.Equal(t, site.ActionReplace, r.Pixels[0].Action)
}

func TestWriteInventoryRoundTrips(t *testing.T) {
	t.Parallel()

	inv := site.FromFiles([]site.ScannedFile{
		{URL: "https://a.test/", Path: "/", Type: "text/html", Category: site.CategoryHTML},
		{URL: "https://a.test/a.css", Path: "/a.css", Type: "text/css", Category: site.CategoryCSS},
	})
	for _, name := range []string{"inv.json", "inv.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, writeInventory(path, inv))
		got, err := readInventory(path)
		require.NoError(t, err)
		assert.Equal(t, inv.Files(), got.Files(), name)
	}
}
