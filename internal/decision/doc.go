// Package decision turns fetched decision pages of the Bavarian case-law portal
// into structured records.
//
// Section lookup is driven by the Section table: the portal is inconsistent
// about its heading spelling, so each section is located by substring markers
// ("ründe" matches both "Gründe" and "Entscheidungsgründe") rather than by
// structural identifiers. The free-text metadata line ("Court, Urt. v. DATE –
// FILE NUMBER") is parsed by ParseMetaLine into four independently fallible
// fields.
package decision
