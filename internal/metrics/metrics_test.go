package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://www.Gesetze-Bayern.de/Search", "www.gesetze-bayern.de"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := recordsSavedTotal
	Init()
	assert.Same(t, first, recordsSavedTotal)
}

func TestObservers(t *testing.T) {
	Init()
	const job = "observer_test_job"

	ObserveListingPage(job)
	ObserveDetailPage(job)
	ObserveDetailPage(job)
	ObserveSaved(job)
	ObserveSkip(job, ReasonExtract)
	ObserveFetchError(job, "https://www.gesetze-bayern.de/x", 503)
	ObserveFetchError(job, "https://www.gesetze-bayern.de/y", 0)
	ObserveCrawl(job, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(listingPagesTotal.WithLabelValues(job)))
	assert.Equal(t, 2.0, testutil.ToFloat64(detailPagesTotal.WithLabelValues(job)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recordsSavedTotal.WithLabelValues(job)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pagesSkippedTotal.WithLabelValues(job, ReasonExtract)))
	assert.Equal(t, 1.0, testutil.ToFloat64(fetchErrorsTotal.WithLabelValues(job, "www.gesetze-bayern.de", "503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fetchErrorsTotal.WithLabelValues(job, "www.gesetze-bayern.de", "none")))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://www.gesetze-bayern.de", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
