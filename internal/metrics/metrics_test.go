package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObservePage(t *testing.T) {
	before := testutil.ToFloat64(pagesTotal.WithLabelValues("pages.test", StatusFetched))
	beforeBytes := testutil.ToFloat64(bytesTotal.WithLabelValues("pages.test"))

	ObservePage("https://pages.test/a", StatusFetched, 128)
	ObservePage("https://pages.test/b", StatusFetched, 0)

	if got := testutil.ToFloat64(pagesTotal.WithLabelValues("pages.test", StatusFetched)) - before; got != 2 {
		t.Errorf("expected 2 pages recorded, got %f", got)
	}
	if got := testutil.ToFloat64(bytesTotal.WithLabelValues("pages.test")) - beforeBytes; got != 128 {
		t.Errorf("expected 128 bytes recorded, got %f", got)
	}
}

func TestObserveDetectionCounters(t *testing.T) {
	beforePixels := testutil.ToFloat64(pixelsTotal.WithLabelValues("facebook"))
	beforeButtons := testutil.ToFloat64(buttonsTotal)
	beforeEntries := testutil.ToFloat64(archiveEntriesTotal.WithLabelValues(OutcomeSkipped))

	ObservePixel("facebook")
	ObserveButtons(3)
	ObserveButtons(0)
	ObserveArchiveEntry(OutcomeSkipped)
	ObserveRewrite("button", "applied")
	ObserveAsset("image")
	ObserveProbeFailure()
	ObserveRateLimitDelay("pages.test", 20*time.Millisecond)

	if got := testutil.ToFloat64(pixelsTotal.WithLabelValues("facebook")) - beforePixels; got != 1 {
		t.Errorf("expected 1 pixel, got %f", got)
	}
	if got := testutil.ToFloat64(buttonsTotal) - beforeButtons; got != 3 {
		t.Errorf("expected 3 buttons, got %f", got)
	}
	if got := testutil.ToFloat64(archiveEntriesTotal.WithLabelValues(OutcomeSkipped)) - beforeEntries; got != 1 {
		t.Errorf("expected 1 skipped entry, got %f", got)
	}
	if val := testutil.CollectAndCount(rateLimitDelaySeconds); val <= 0 {
		t.Errorf("expected rate limit histogram to be observed, got %d", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
