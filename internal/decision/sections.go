package decision

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Section describes how one part of a decision page is located.
type Section struct {
	Name string
	// Markers are header text fragments, any of which identifies the section.
	Markers []string
	// Until bounds a sidebar block: only lines followed by a header matching
	// one of these fragments belong to it.
	Until []string
	// Class is the paragraph style class of opinion text sections.
	Class string
}

// Section table. Fragments are deliberately partial: the portal spells its
// headings inconsistently.
var (
	NormChains = Section{
		Name:    "norm_chains",
		Markers: []string{"menkette"},
		Until:   []string{"chlagw", "eits"},
	}
	Keywords              = Section{Name: "keywords", Markers: []string{"lagwort"}}
	LowerCourt            = Section{Name: "lower_court", Markers: []string{"instan"}, Until: []string{"undstell"}}
	AdditionalInformation = Section{Name: "additional_information", Markers: []string{"eiterf"}}
	DecisionReference     = Section{Name: "decision_reference", Markers: []string{"undstell"}}
	Tenor                 = Section{Name: "tenor", Markers: []string{"enor"}, Class: "absatz tenor"}
	LegalFacts            = Section{Name: "legal_facts", Markers: []string{"bestand"}, Class: "absatz tatbestand"}
	DecisionReasons       = Section{Name: "decision_reasons", Markers: []string{"ründe"}, Class: "absatz gruende"}
)

const (
	sidebarHeader = "div.rsprboxueber"
	sidebarLine   = "div.rsprboxzeile"
)

// MatchesHeader reports whether heading text identifies the section.
func (s Section) MatchesHeader(heading string) bool {
	return containsAnyOf(heading, s.Markers)
}

func (s Section) endsAt(heading string) bool {
	return containsAnyOf(heading, s.Until)
}

func containsAnyOf(text string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(text, f) {
			return true
		}
	}
	return false
}

// SidebarLines returns the text of the sidebar lines that follow the first
// header matching s, in document order. For a bounded section a line is kept
// only if some later sibling header matches one of the Until fragments;
// lines after the last such header are dropped.
func (p *Page) SidebarLines(s Section) []string {
	out := []string{}
	header := p.doc.Find(sidebarHeader).FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return s.MatchesHeader(sel.Text())
	}).First()
	if header.Length() == 0 {
		return out
	}

	var pending []string
	header.NextAll().Each(func(_ int, sib *goquery.Selection) {
		switch {
		case sib.Is(sidebarLine):
			lines := directTexts(sib)
			if len(s.Until) == 0 {
				out = append(out, lines...)
				return
			}
			pending = append(pending, lines...)
		case sib.Is(sidebarHeader) && len(s.Until) > 0 && s.endsAt(sib.Text()):
			out = append(out, pending...)
			pending = pending[:0]
		}
	})
	return out
}

// ParagraphsXPath selects opinion paragraphs of the given style class that
// follow a level-2 heading matching the section.
func (s Section) ParagraphsXPath() string {
	return fmt.Sprintf(`//h2[%s]/following-sibling::div/div[@class=%q]/text()`, containsAny(s.Markers), s.Class)
}

func containsAny(fragments []string) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, fmt.Sprintf(`contains(., %q)`, f))
	}
	return strings.Join(parts, " or ")
}
