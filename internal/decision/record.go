package decision

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParagraphSeparator joins reasoning paragraphs in the small record's text field.
const ParagraphSeparator = " \n "

var keyReplacer = strings.NewReplacer("/", "$", `\`, "$")

// SanitizeKey makes a metadata line usable as a flat file name by replacing
// every path separator with "$".
func SanitizeKey(s string) string {
	return keyReplacer.Replace(s)
}

// Record is a decision ready to be persisted.
type Record interface {
	// Key is the sanitized metadata line identifying the decision.
	Key() string
	Summary() Summary
}

// Summary carries the identifying fields shared by both record shapes.
type Summary struct {
	Key           string `json:"key"`
	Title         string `json:"title"`
	Court         string `json:"court,omitempty"`
	DecisionStyle string `json:"decision_style,omitempty"`
	Date          string `json:"date,omitempty"`
	FileNumber    string `json:"file_number,omitempty"`
}

// Meta holds the metadata block of a full record.
type Meta struct {
	MetaTitle             string   `json:"meta_title"`
	Court                 string   `json:"court"`
	DecisionStyle         string   `json:"decision_style"`
	Date                  string   `json:"date"`
	FileNumber            string   `json:"file_number"`
	Title                 string   `json:"title"`
	NormChains            []string `json:"norm_chains"`
	DecisionGuidelines    []string `json:"decision_guidelines"`
	Keywords              string   `json:"keywords"`
	LowerCourt            []string `json:"lower_court"`
	AdditionalInformation string   `json:"additional_information"`
	DecisionReference     string   `json:"decision_reference"`
}

// DecisionText holds the three opinion sections in document order.
type DecisionText struct {
	Tenor           []string `json:"tenor"`
	LegalFacts      []string `json:"legal_facts"`
	DecisionReasons []string `json:"decision_reasons"`
}

// FullRecord is the output of the full extractor.
type FullRecord struct {
	Meta         Meta         `json:"meta"`
	DecisionText DecisionText `json:"decision_text"`
}

// Key implements Record.
func (r *FullRecord) Key() string {
	return r.Meta.MetaTitle
}

// Summary implements Record.
func (r *FullRecord) Summary() Summary {
	return Summary{
		Key:           r.Meta.MetaTitle,
		Title:         r.Meta.Title,
		Court:         r.Meta.Court,
		DecisionStyle: r.Meta.DecisionStyle,
		Date:          r.Meta.Date,
		FileNumber:    r.Meta.FileNumber,
	}
}

// normalize replaces nil sequences so every documented key serializes as [].
func (r *FullRecord) normalize() {
	r.Meta.NormChains = nonNil(r.Meta.NormChains)
	r.Meta.DecisionGuidelines = nonNil(r.Meta.DecisionGuidelines)
	r.Meta.LowerCourt = nonNil(r.Meta.LowerCourt)
	r.DecisionText.Tenor = nonNil(r.DecisionText.Tenor)
	r.DecisionText.LegalFacts = nonNil(r.DecisionText.LegalFacts)
	r.DecisionText.DecisionReasons = nonNil(r.DecisionText.DecisionReasons)
}

// MarshalJSON writes nil sequences as [].
func (r FullRecord) MarshalJSON() ([]byte, error) {
	r.normalize()
	type plain FullRecord
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plain(r)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SmallRecord is the output of the small extractor.
type SmallRecord struct {
	Title string `json:"title"`
	Name  string `json:"name"`
	Text  string `json:"text"`
}

// Key implements Record.
func (r *SmallRecord) Key() string {
	return r.Title
}

// Summary implements Record.
func (r *SmallRecord) Summary() Summary {
	return Summary{Key: r.Title, Title: r.Name}
}

// Paragraphs splits Text back into the reasoning paragraphs it was joined from.
func (r *SmallRecord) Paragraphs() []string {
	if r.Text == "" {
		return []string{}
	}
	return strings.Split(r.Text, ParagraphSeparator)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
