// Package metrics exposes Prometheus collectors for the decisions crawler.
package metrics

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons recorded by ObserveSkip.
const (
	ReasonExtract = "extract"
	ReasonPersist = "persist"
)

var (
	listingPagesTotal          *prometheus.CounterVec
	detailPagesTotal           *prometheus.CounterVec
	recordsSavedTotal          *prometheus.CounterVec
	pagesSkippedTotal          *prometheus.CounterVec
	fetchErrorsTotal           *prometheus.CounterVec
	crawlDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		listingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisions_listing_pages_total",
				Help: "Total number of listing pages fetched, labeled by job.",
			},
			[]string{"job"},
		)

		detailPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisions_detail_pages_total",
				Help: "Total number of decision pages fetched, labeled by job.",
			},
			[]string{"job"},
		)

		recordsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisions_records_saved_total",
				Help: "Total number of records written, labeled by job.",
			},
			[]string{"job"},
		)

		pagesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisions_pages_skipped_total",
				Help: "Total number of decision pages skipped, labeled by job and reason.",
			},
			[]string{"job", "reason"},
		)

		fetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisions_fetch_errors_total",
				Help: "Total number of failed fetches, labeled by job, site and status.",
			},
			[]string{"job", "site", "status"},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "decisions_crawl_duration_seconds",
				Help:    "Histogram of complete crawl run durations, labeled by job.",
				Buckets: []float64{1, 10, 60, 300, 900, 3600, 4 * 3600},
			},
			[]string{"job"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveListingPage counts a fetched listing page.
func ObserveListingPage(job string) {
	listingPagesTotal.WithLabelValues(job).Inc()
}

// ObserveDetailPage counts a fetched decision page.
func ObserveDetailPage(job string) {
	detailPagesTotal.WithLabelValues(job).Inc()
}

// ObserveSaved counts a written record.
func ObserveSaved(job string) {
	recordsSavedTotal.WithLabelValues(job).Inc()
}

// ObserveSkip counts a decision page that produced no record.
func ObserveSkip(job, reason string) {
	pagesSkippedTotal.WithLabelValues(job, reason).Inc()
}

// ObserveFetchError counts a failed fetch. A zero status means the request
// never produced a response.
func ObserveFetchError(job, rawURL string, status int) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	fetchErrorsTotal.WithLabelValues(job, SanitizeSite(rawURL), code).Inc()
}

// ObserveCrawl records the duration of a finished run.
func ObserveCrawl(job string, duration time.Duration) {
	crawlDurationSeconds.WithLabelValues(job).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
