package decision

import "strings"

const (
	headingSelector   = "h1.titelzeile"
	guidelineSelector = "div.leitsatz"
	metaLineXPath     = `//div[@id="doc-metadata"]/div/div/b/text()`
)

// strayLowerCourtToken leaks into the lower-court block from the adjacent
// notice on some pages; the bounding rule cannot exclude it.
const strayLowerCourtToken = "Revision zugelassen"

// ExtractFull builds a FullRecord from a decision page. It fails when the
// heading or the metadata line is missing or one of the line's four fields
// cannot be parsed; absent optional sections yield empty values.
func ExtractFull(p *Page) (*FullRecord, error) {
	line, err := metaLine(p)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseMetaLine(line)
	if err != nil {
		return nil, err
	}
	title, err := heading(p)
	if err != nil {
		return nil, err
	}

	rec := &FullRecord{
		Meta: Meta{
			MetaTitle:          SanitizeKey(line),
			Court:              parsed.Court,
			DecisionStyle:      parsed.Style,
			Date:               parsed.Date,
			FileNumber:         parsed.FileNumber,
			Title:              title,
			DecisionGuidelines: p.OwnTexts(guidelineSelector),
		},
	}

	x := sectionReader{page: p}
	rec.Meta.NormChains = x.lines(NormChains)
	rec.Meta.Keywords = x.firstLine(Keywords)
	rec.Meta.LowerCourt = removeAll(x.lines(LowerCourt), strayLowerCourtToken)
	rec.Meta.AdditionalInformation = x.firstLine(AdditionalInformation)
	rec.Meta.DecisionReference = x.firstLine(DecisionReference)
	rec.DecisionText.Tenor = x.paragraphs(Tenor)
	rec.DecisionText.LegalFacts = x.paragraphs(LegalFacts)
	rec.DecisionText.DecisionReasons = x.paragraphs(DecisionReasons)
	if x.err != nil {
		return nil, x.err
	}
	rec.normalize()
	return rec, nil
}

// ExtractSmall builds a SmallRecord holding only the heading, the metadata
// line and the reasoning paragraphs. The metadata line is not parsed.
func ExtractSmall(p *Page) (*SmallRecord, error) {
	line, err := metaLine(p)
	if err != nil {
		return nil, err
	}
	name, err := heading(p)
	if err != nil {
		return nil, err
	}
	x := sectionReader{page: p}
	reasons := x.paragraphs(DecisionReasons)
	if x.err != nil {
		return nil, x.err
	}
	return &SmallRecord{
		Title: SanitizeKey(line),
		Name:  name,
		Text:  strings.Join(reasons, ParagraphSeparator),
	}, nil
}

func metaLine(p *Page) (string, error) {
	line, err := p.FirstXPathText(metaLineXPath)
	if err != nil {
		return "", err
	}
	if line == "" {
		return "", &FieldError{Field: FieldMetaTitle, Err: ErrMissingElement}
	}
	return line, nil
}

func heading(p *Page) (string, error) {
	if title := p.OwnText(headingSelector); title != "" {
		return title, nil
	}
	return "", &FieldError{Field: FieldTitle, Err: ErrMissingElement}
}

// sectionReader keeps the first XPath evaluation error so extraction rules
// read as a flat list.
type sectionReader struct {
	page *Page
	err  error
}

func (r *sectionReader) lines(s Section) []string {
	return r.page.SidebarLines(s)
}

func (r *sectionReader) firstLine(s Section) string {
	if lines := r.page.SidebarLines(s); len(lines) > 0 {
		return lines[0]
	}
	return ""
}

func (r *sectionReader) paragraphs(s Section) []string {
	return r.eval(s.ParagraphsXPath())
}

func (r *sectionReader) eval(expr string) []string {
	if r.err != nil {
		return []string{}
	}
	texts, err := r.page.XPathTexts(expr)
	if err != nil {
		r.err = err
		return []string{}
	}
	return texts
}

func removeAll(in []string, token string) []string {
	out := in[:0]
	for _, s := range in {
		if s != token {
			out = append(out, s)
		}
	}
	return out
}
