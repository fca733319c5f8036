package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/legal-decisions-crawler/internal/decision"
)

// PaginationSelector selects the last item of the portal's pagination widget.
const PaginationSelector = "ul.pagination :last-child"

// ListingRule selects decision links on a listing page.
type ListingRule struct {
	// Entries selects the listing entries. Anchors are the entry itself when
	// it is an <a href>, otherwise its a[href] descendants.
	Entries string
	// Marker, when set, keeps only entries whose serialized markup contains it.
	Marker string
	// FirstLinkOnly takes a single link per entry.
	FirstLinkOnly bool
	// Pagination selects the nodes whose anchors hold the next-page link; the
	// last distinct link wins. Empty disables pagination.
	Pagination string
}

// ListingResult is what a listing page contributes to the crawl.
type ListingResult struct {
	DetailURLs []string
	// NextPage is empty when the listing has no further page.
	NextPage string
}

// ParseListing extracts detail links and the next listing page. Detail hrefs
// resolve against base, the fixed site origin; the pagination link resolves
// against the listing page's own URL.
func ParseListing(page *decision.Page, base *url.URL, rule ListingRule) ListingResult {
	doc := page.Document()
	res := ListingResult{DetailURLs: []string{}}

	doc.Find(rule.Entries).Each(func(_ int, entry *goquery.Selection) {
		if rule.Marker != "" {
			markup, err := goquery.OuterHtml(entry)
			if err != nil || !strings.Contains(markup, rule.Marker) {
				return
			}
		}
		for _, href := range anchors(entry) {
			if u, ok := resolve(base, href); ok {
				res.DetailURLs = append(res.DetailURLs, u)
				if rule.FirstLinkOnly {
					return
				}
			}
		}
	})

	if rule.Pagination == "" {
		return res
	}
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return res
	}
	var links []string
	seen := map[string]bool{}
	for _, href := range anchors(doc.Find(rule.Pagination)) {
		u, ok := resolve(pageURL, href)
		if !ok || seen[u] {
			continue
		}
		seen[u] = true
		links = append(links, u)
	}
	if len(links) > 0 {
		res.NextPage = links[len(links)-1]
	}
	return res
}

// anchors returns the hrefs of every anchor in sel, each node contributing
// itself (when it is an anchor) before its descendants.
func anchors(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "a" {
			if href, ok := s.Attr("href"); ok {
				out = append(out, href)
			}
		}
		s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			out = append(out, href)
		})
	})
	return out
}

// resolve makes href absolute against base and drops the fragment. Only
// http(s) targets are kept.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
