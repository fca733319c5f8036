package crawler

import (
	"fmt"
	"sort"

	"github.com/JakeFAU/legal-decisions-crawler/internal/decision"
)

// Site defaults.
const (
	DefaultStartURL = "https://www.gesetze-bayern.de/Search/Filter/DOKTYP/rspr"
	DefaultBaseURL  = "https://www.gesetze-bayern.de"
)

// JudgmentMarker selects judgment entries in the small job's listing filter.
const JudgmentMarker = "Urteil "

// Job names.
const (
	JobFull  = "legal_decisions_big"
	JobSmall = "legal_decisions_small"
)

// Extractor turns a decision page into a record.
type Extractor func(*decision.Page) (decision.Record, error)

// Job binds a listing rule to an extractor and a default output directory.
type Job struct {
	Name             string
	DefaultOutputDir string
	Listing          ListingRule
	Extract          Extractor
}

var registry = map[string]Job{
	JobFull: {
		Name:             JobFull,
		DefaultOutputDir: "decisions_big",
		Listing:          ListingRule{Entries: "div.hltitel", Pagination: PaginationSelector},
		Extract: func(p *decision.Page) (decision.Record, error) {
			rec, err := decision.ExtractFull(p)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	},
	JobSmall: {
		Name:             JobSmall,
		DefaultOutputDir: "decisions",
		Listing:          ListingRule{
			Entries:       "li.hitlistItem",
			Marker:        JudgmentMarker,
			FirstLinkOnly: true,
			Pagination:    PaginationSelector,
		},
		Extract: func(p *decision.Page) (decision.Record, error) {
			rec, err := decision.ExtractSmall(p)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	},
}

// JobNames lists the registered jobs in lexical order.
func JobNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the job registered under name.
func Lookup(name string) (Job, error) {
	job, ok := registry[name]
	if !ok {
		return Job{}, fmt.Errorf("unknown job %q (known: %v)", name, JobNames())
	}
	return job, nil
}
