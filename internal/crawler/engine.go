package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-decisions-crawler/internal/decision"
	"github.com/JakeFAU/legal-decisions-crawler/internal/metrics"
)

// Config governs fetching and pagination for a crawl.
type Config struct {
	StartURL        string
	BaseURL         string
	UserAgent       string
	Parallelism     int
	Delay           time.Duration
	RequestTimeout  time.Duration
	IgnoreRobots    bool
	MaxListingPages int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithIndexer upserts every saved record into ix.
func WithIndexer(ix Indexer) Option {
	return func(e *Engine) { e.indexer = ix }
}

// WithNotifier publishes every saved record through n.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source used for SavedAt stamps.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRunID tags saved records and notifications with id.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// Engine runs one job against the decision site.
type Engine struct {
	cfg      Config
	job      Job
	base     *url.URL
	store    RecordSaver
	indexer  Indexer
	notifier Notifier
	logger   *zap.Logger
	clock    Clock
	runID    string
}

// NewEngine validates cfg and returns an Engine for job.
func NewEngine(cfg Config, job Job, store RecordSaver, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if job.Extract == nil || job.Listing.Entries == "" {
		return nil, fmt.Errorf("job %q is incomplete", job.Name)
	}
	if cfg.StartURL == "" {
		cfg.StartURL = DefaultStartURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if _, err := absoluteURL(cfg.StartURL); err != nil {
		return nil, fmt.Errorf("start url: %w", err)
	}
	base, err := absoluteURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}

	e := &Engine{
		cfg:    cfg,
		job:    job,
		base:   base,
		store:  store,
		logger: zap.NewNop(),
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("job", job.Name))
	if e.runID != "" {
		e.logger = e.logger.With(zap.String("run_id", e.runID))
	}
	metrics.Init()
	return e, nil
}

func absoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return u, nil
}

// Run crawls until pagination is exhausted and every scheduled decision page
// has been processed. Page-level failures are logged and counted; Run only
// returns an error when the crawl cannot start or ctx ends early.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	listing, detail, err := e.collectors(ctx)
	if err != nil {
		return Stats{}, err
	}

	r := &run{Engine: e, ctx: ctx, detail: detail, seen: map[string]bool{}}
	listing.OnResponse(r.handleListing)
	listing.OnError(r.handleError("listing"))
	detail.OnResponse(r.handleDetail)
	detail.OnError(r.handleError("detail"))

	started := time.Now()
	e.logger.Info("crawl started", zap.String("start_url", e.cfg.StartURL))

	r.markListing(e.cfg.StartURL)
	if err := listing.Visit(e.cfg.StartURL); err != nil {
		return r.counters.snapshot(), fmt.Errorf("visit start url: %w", err)
	}
	listing.Wait()
	detail.Wait()

	stats := r.counters.snapshot()
	elapsed := time.Since(started)
	metrics.ObserveCrawl(e.job.Name, elapsed)
	e.logger.Info("crawl finished",
		zap.Int64("listing_pages", stats.ListingPages),
		zap.Int64("detail_pages", stats.DetailPages),
		zap.Int64("saved", stats.Saved),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("fetch_errors", stats.FetchErrors),
		zap.Duration("elapsed", elapsed),
	)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("crawl interrupted: %w", err)
	}
	return stats, nil
}

// collectors builds the listing collector and its detail clone. The clone
// shares the limit rules and transport.
func (e *Engine) collectors(ctx context.Context) (*colly.Collector, *colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.Async(true),
		colly.StdlibContext(ctx),
	}
	if e.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(e.cfg.UserAgent))
	}
	listing := colly.NewCollector(opts...)
	listing.AllowURLRevisit = true
	listing.IgnoreRobotsTxt = e.cfg.IgnoreRobots
	if e.cfg.RequestTimeout > 0 {
		listing.SetRequestTimeout(e.cfg.RequestTimeout)
	}
	if err := listing.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: e.cfg.Parallelism,
		Delay:       e.cfg.Delay,
	}); err != nil {
		return nil, nil, fmt.Errorf("set collector limits: %w", err)
	}

	detail := listing.Clone()
	detail.AllowURLRevisit = false
	colly.StdlibContext(ctx)(detail)
	return listing, detail, nil
}

// run holds the state of a single Run call.
type run struct {
	*Engine
	ctx      context.Context
	detail   *colly.Collector
	counters counters

	mu   sync.Mutex
	seen map[string]bool
}

// markListing reports whether u is a listing page not yet requested in this run.
func (r *run) markListing(u string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[u] {
		return false
	}
	r.seen[u] = true
	return true
}

func (r *run) handleListing(resp *colly.Response) {
	pageURL := resp.Request.URL.String()
	n := r.counters.listingPages.Add(1)
	metrics.ObserveListingPage(r.job.Name)
	r.markListing(pageURL)

	page, err := decision.NewPage(pageURL, resp.Body)
	if err != nil {
		r.logger.Warn("listing page unreadable", zap.String("url", pageURL), zap.Error(err))
		return
	}
	res := ParseListing(page, r.base, r.job.Listing)

	scheduled := 0
	for _, u := range res.DetailURLs {
		if err := r.detail.Visit(u); err != nil {
			r.logger.Debug("decision page not scheduled", zap.String("url", u), zap.Error(err))
			continue
		}
		scheduled++
	}
	r.counters.detailsScheduled.Add(int64(scheduled))
	r.logger.Info("listing page processed",
		zap.String("url", pageURL),
		zap.Int("links", len(res.DetailURLs)),
		zap.Int("scheduled", scheduled),
		zap.String("next", res.NextPage),
	)

	if !r.shouldFollow(pageURL, res.NextPage, n) {
		return
	}
	if err := resp.Request.Visit(res.NextPage); err != nil {
		r.logger.Warn("next listing page not scheduled", zap.String("url", res.NextPage), zap.Error(err))
	}
}

func (r *run) shouldFollow(current, next string, fetched int64) bool {
	switch {
	case next == "":
		r.logger.Info("last listing page reached", zap.String("url", current))
		return false
	case next == current:
		r.logger.Info("pagination links to the current page", zap.String("url", current))
		return false
	case r.cfg.MaxListingPages > 0 && fetched >= int64(r.cfg.MaxListingPages):
		r.logger.Info("listing page limit reached", zap.Int("max_listing_pages", r.cfg.MaxListingPages))
		return false
	case !r.markListing(next):
		r.logger.Warn("pagination cycle detected", zap.String("url", current), zap.String("next", next))
		return false
	}
	return true
}

func (r *run) handleDetail(resp *colly.Response) {
	pageURL := resp.Request.URL.String()
	r.counters.detailPages.Add(1)
	metrics.ObserveDetailPage(r.job.Name)

	page, err := decision.NewPage(pageURL, resp.Body)
	if err != nil {
		r.skip(pageURL, metrics.ReasonExtract, err)
		return
	}
	rec, err := r.job.Extract(page)
	if err != nil {
		r.skip(pageURL, metrics.ReasonExtract, err)
		return
	}
	uri, err := r.store.Save(r.ctx, rec)
	if err != nil {
		r.skip(pageURL, metrics.ReasonPersist, err)
		return
	}
	r.counters.saved.Add(1)
	metrics.ObserveSaved(r.job.Name)

	saved := SavedRecord{
		RunID:   r.runID,
		Job:     r.job.Name,
		URL:     pageURL,
		URI:     uri,
		SavedAt: r.clock.Now(),
		Summary: rec.Summary(),
	}
	r.logger.Debug("record saved", zap.String("url", pageURL), zap.String("key", saved.Summary.Key), zap.String("uri", uri))
	r.announce(saved)
}

// announce forwards a saved record to the optional index and notifier.
// Failures there never undo the save.
func (r *run) announce(saved SavedRecord) {
	if r.indexer != nil {
		if err := r.indexer.Upsert(r.ctx, saved); err != nil {
			r.counters.indexErrors.Add(1)
			r.logger.Error("index upsert failed", zap.String("key", saved.Summary.Key), zap.Error(err))
		}
	}
	if r.notifier != nil {
		attrs := map[string]string{"job": saved.Job, "run_id": saved.RunID}
		if _, err := r.notifier.Publish(r.ctx, saved, attrs); err != nil {
			r.counters.notifyErrors.Add(1)
			r.logger.Error("notification failed", zap.String("key", saved.Summary.Key), zap.Error(err))
		}
	}
}

func (r *run) skip(pageURL, reason string, err error) {
	r.counters.skipped.Add(1)
	metrics.ObserveSkip(r.job.Name, reason)
	fields := []zap.Field{zap.String("url", pageURL), zap.String("reason", reason), zap.Error(err)}
	if missing := decision.MissingFields(err); len(missing) > 0 {
		fields = append(fields, zap.Strings("field", missing))
	}
	r.logger.Warn("decision page skipped", fields...)
}

func (r *run) handleError(kind string) colly.ErrorCallback {
	return func(resp *colly.Response, err error) {
		var (
			pageURL string
			status  int
		)
		if resp != nil {
			status = resp.StatusCode
			if resp.Request != nil && resp.Request.URL != nil {
				pageURL = resp.Request.URL.String()
			}
		}
		r.counters.fetchErrors.Add(1)
		metrics.ObserveFetchError(r.job.Name, pageURL, status)
		r.logger.Warn("fetch failed",
			zap.String("page", kind),
			zap.String("url", pageURL),
			zap.Int("status_code", status),
			zap.Error(err),
		)
	}
}
