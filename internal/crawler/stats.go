package crawler

import "sync/atomic"

// Stats summarizes a crawl run.
type Stats struct {
	ListingPages     int64 `json:"listing_pages"`
	DetailsScheduled int64 `json:"details_scheduled"`
	DetailPages      int64 `json:"detail_pages"`
	Saved            int64 `json:"saved"`
	Skipped          int64 `json:"skipped"`
	FetchErrors      int64 `json:"fetch_errors"`
	IndexErrors      int64 `json:"index_errors"`
	NotifyErrors     int64 `json:"notify_errors"`
}

type counters struct {
	listingPages     atomic.Int64
	detailsScheduled atomic.Int64
	detailPages      atomic.Int64
	saved            atomic.Int64
	skipped          atomic.Int64
	fetchErrors      atomic.Int64
	indexErrors      atomic.Int64
	notifyErrors     atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		ListingPages:     c.listingPages.Load(),
		DetailsScheduled: c.detailsScheduled.Load(),
		DetailPages:      c.detailPages.Load(),
		Saved:            c.saved.Load(),
		Skipped:          c.skipped.Load(),
		FetchErrors:      c.fetchErrors.Load(),
		IndexErrors:      c.indexErrors.Load(),
		NotifyErrors:     c.notifyErrors.Load(),
	}
}
