package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionMatchesHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		section Section
		heading string
		want    bool
	}{
		{DecisionReasons, "Gründe", true},
		{DecisionReasons, "Entscheidungsgründe", true},
		{DecisionReasons, "Tatbestand", false},
		{Tenor, "Tenor", true},
		{LegalFacts, "Tatbestand", true},
		{Keywords, "Schlagworte:", true},
		{NormChains, "Normenkette:", true},
		{NormChains, "Normenketten:", true},
		{LowerCourt, "Vorinstanzen:", true},
		{LowerCourt, "Vorinstanz:", true},
		{AdditionalInformation, "Weiterführende Hinweise:", true},
		{DecisionReference, "Fundstelle:", true},
		{DecisionReference, "Schlagworte:", false},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, tt.section.MatchesHeader(tt.heading), "%s / %q", tt.section.Name, tt.heading)
	}
}

func TestParagraphsXPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		`//h2[contains(., "ründe")]/following-sibling::div/div[@class="absatz gruende"]/text()`,
		DecisionReasons.ParagraphsXPath(),
	)
}

const sidebar = `<html><body><div class="rsprbox">
<div class="rsprboxueber">Normenkette:</div>
<div class="rsprboxzeile">N1</div>
<div class="rsprboxzeile">N2</div>
<div class="rsprboxzeile">N3</div>
<div class="rsprboxzeile">N4</div>
<div class="rsprboxzeile">N5</div>
<div class="rsprboxueber">Schlagworte:</div>
<div class="rsprboxzeile">K1</div>
<div class="rsprboxueber">Vorinstanz:</div>
<div class="rsprboxzeile">L1</div>
<div class="rsprboxzeile">L2</div>
<div class="rsprboxzeile">L3</div>
<div class="rsprboxzeile">L4</div>
<div class="rsprboxueber">Fundstelle:</div>
<div class="rsprboxzeile">F1</div>
</div></body></html>`

func TestSidebarLines(t *testing.T) {
	t.Parallel()

	page, err := NewPage("https://example.test/d", []byte(sidebar))
	require.NoError(t, err)

	tests := []struct {
		section Section
		want    []string
	}{
		{NormChains, []string{"N1", "N2", "N3", "N4", "N5"}},
		{LowerCourt, []string{"L1", "L2", "L3", "L4"}},
		{Keywords, []string{"K1", "L1", "L2", "L3", "L4", "F1"}},
		{DecisionReference, []string{"F1"}},
		{AdditionalInformation, []string{}},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, page.SidebarLines(tt.section), "section %s", tt.section.Name)
	}
}

func TestSidebarLinesBoundedWithoutClosingHeader(t *testing.T) {
	t.Parallel()

	page, err := NewPage("https://example.test/d", []byte(`<html><body>
<div class="rsprboxueber">Vorinstanzen:</div>
<div class="rsprboxzeile">L1</div>
<div class="rsprboxzeile">L2</div>
<div class="rsprboxueber">Weiterführende Hinweise:</div>
<div class="rsprboxzeile">W1</div>
</body></html>`))
	require.NoError(t, err)

	assert.Equal(t, []string{}, page.SidebarLines(LowerCourt))
}

func TestSidebarLinesKeepLinesUpToLastClosingHeader(t *testing.T) {
	t.Parallel()

	page, err := NewPage("https://example.test/d", []byte(`<html><body>
<div class="rsprboxueber">Normenketten:</div>
<div class="rsprboxzeile">N1</div>
<div class="rsprboxueber">Leitsätze:</div>
<div class="rsprboxueber">Sonstiges:</div>
<div class="rsprboxzeile">S1</div>
<div class="rsprboxueber">Schlagworte:</div>
<div class="rsprboxzeile">K1</div>
</body></html>`))
	require.NoError(t, err)

	assert.Equal(t, []string{"N1", "S1"}, page.SidebarLines(NormChains))
}
