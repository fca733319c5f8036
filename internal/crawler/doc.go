// Package crawler drives the decision crawls: it walks the search listing of
// gesetze-bayern.de through its pagination widget, fetches every decision page
// the listing links to and hands each page to the job's extractor. Records are
// persisted through a RecordSaver and optionally indexed and announced.
//
// Fetching and scheduling are delegated to colly. The listing collector allows
// revisits because the start URL redirects to itself; the detail collector is
// a clone that keeps colly's visited-URL filter, so every decision URL is
// fetched at most once per run.
package crawler
